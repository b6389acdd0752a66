package opl

import (
	"fmt"
	"math"
)

// CommandKind identifies a dispatcher command.
type CommandKind int

const (
	CmdNoteOn        CommandKind = iota // Value: note, or NoteNone to retrigger
	CmdNoteOff                          // Key off
	CmdNoteOffEnv                       // Key off and release macros
	CmdInstrument                       // Value: instrument index
	CmdVolume                           // Value: 0 to GetVolMax
	CmdGetVolMax                        // Returns the channel's volume resolution
	CmdPanning                          // Value: left 0-255, Value2: right 0-255
	CmdPitch                            // Value: 1/64 semitone offset
	CmdArpeggio                         // Value: semitone offset
	CmdLegato                           // Value: note, without key-on
	CmdPortamento                       // Value: speed, Value2: target note
	CmdSampleTrigger                    // Value: sample index, Value2: rate in Hz
	CmdMacroTick                        // Advance macros one tick
	CmdRegisterPoke                     // Value: address, Value2: data
	CmdReset                            // Reset chip and channels
	CmdMute                             // Value: non-zero to mute
	CmdFMLFO                            // Value: bit 0 deep tremolo, bit 1 deep vibrato
	CmdFMParam                          // Value: FMParam, Value2: value, Op: operator or -1
	CmdHardReset                        // Value: non-zero to pulse key on retrigger
	CmdFourOp                           // Value: non-zero to pair with the next channel
	CmdDrumMode                         // Value: non-zero for rhythm mode
)

var commandNames = [...]string{
	"NOTE_ON", "NOTE_OFF", "NOTE_OFF_ENV", "INSTRUMENT", "VOLUME", "GET_VOLMAX",
	"PANNING", "PITCH", "ARPEGGIO", "LEGATO", "PORTAMENTO", "SAMPLE_TRIGGER",
	"MACRO_TICK", "REGISTER_POKE", "RESET", "MUTE", "FM_LFO", "FM_PARAM",
	"HARD_RESET", "FOUR_OP", "DRUM_MODE",
}

func (k CommandKind) String() string {
	if k >= 0 && int(k) < len(commandNames) {
		return commandNames[k]
	}
	return fmt.Sprintf("CMD(%d)", int(k))
}

// NoteNone in a NOTE_ON keeps the current note.
const NoteNone = math.MinInt32

// Command is one request to the dispatcher. FromMacro marks commands
// synthesized by the macro engine.
type Command struct {
	Kind      CommandKind
	Ch        int
	Value     int
	Value2    int
	Op        int
	FromMacro bool
}

// Dispatch results
const (
	Rejected    = 0
	Accepted    = 1
	PortaTarget = 2 // Portamento reached its target
)

// FMParam selects the parameter changed by CmdFMParam.
type FMParam int

const (
	ParamTL FMParam = iota
	ParamAR
	ParamDR
	ParamSL
	ParamRR
	ParamMULT
	ParamKSL
	ParamKSR
	ParamWS
	ParamAM
	ParamVIB
	ParamSUS
	ParamFB
	ParamALG
)
