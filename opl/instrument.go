package opl

// Operator holds the FM parameters of one operator.
type Operator struct {
	AM   bool  // Tremolo
	VIB  bool  // Vibrato
	SUS  bool  // Hold at sustain level (EGT)
	KSR  bool  // Key scale rate
	MULT uint8 // 0-15
	KSL  uint8 // 0-3
	TL   uint8 // 0-63, 0 is loudest
	AR   uint8 // 0-15
	DR   uint8 // 0-15
	SL   uint8 // 0-15
	RR   uint8 // 0-15
	WS   uint8 // 0-7, masked per chip
}

func (o *Operator) reg20() uint8 {
	v := o.MULT & 0x0F
	if o.AM {
		v |= 0x80
	}
	if o.VIB {
		v |= 0x40
	}
	if o.SUS {
		v |= 0x20
	}
	if o.KSR {
		v |= 0x10
	}
	return v
}

// Instrument is an FM patch, optionally with an ADPCM sample and macros.
type Instrument struct {
	Name string
	Ops  int   // 2 or 4
	ALG  uint8 // 2-op: 0-1, 4-op: 0-3
	FB   uint8 // 0-7
	Op   [4]Operator

	// Fixed rhythm frequencies in register form (block<<10 | fnum).
	FixedDrums   bool
	KickFreq     uint16
	SnareHatFreq uint16
	TomTopFreq   uint16

	Macros Macros

	// ADPCM
	Sample     int // -1 for none
	SampleRate int // Hz at note C-4
	SampleLoop bool
}

// Macro is a per-tick value sequence. Loop and Release are positions in
// Values, or -1 when unset; use NewMacro.
type Macro struct {
	Values  []int
	Loop    int
	Release int
}

// NewMacro returns a macro with the given loop and release points.
func NewMacro(values []int, loop, release int) Macro {
	return Macro{Values: values, Loop: loop, Release: release}
}

// Macros are the sequences an instrument drives each tick.
type Macros struct {
	Vol      Macro // 0-63, or 0-255 on the ADPCM channel
	Arp      Macro // Semitones, relative to the note unless ArpFixed
	Pitch    Macro // 1/64 semitone
	Pan      Macro // Bit 0 left, bit 1 right
	Alg      Macro
	FB       Macro
	ArpFixed bool
}

// InstrumentSource resolves instrument indices.
type InstrumentSource interface {
	Instrument(index int) *Instrument
}

// InstrumentList is an InstrumentSource backed by a slice.
type InstrumentList []*Instrument

// Instrument returns the instrument at index, or nil.
func (l InstrumentList) Instrument(index int) *Instrument {
	if index < 0 || index >= len(l) {
		return nil
	}
	return l[index]
}

// defaultSampleRate is used when neither the instrument nor the trigger
// names a rate.
const defaultSampleRate = 16000

// DefaultInstrument returns the patch used when a channel has none: a
// plain sine carrier with an unmodulated modulator.
func DefaultInstrument() *Instrument {
	return &Instrument{
		Name: "default",
		Ops:  2,
		Op: [4]Operator{
			{MULT: 1, TL: 63, AR: 15, DR: 0, SL: 0, RR: 15, SUS: true},
			{MULT: 1, TL: 0, AR: 15, DR: 0, SL: 0, RR: 15, SUS: true},
			{MULT: 1, TL: 63, AR: 15, RR: 15, SUS: true},
			{MULT: 1, TL: 0, AR: 15, RR: 15, SUS: true},
		},
		Sample:     -1,
		SampleRate: defaultSampleRate,
		Macros:     emptyMacros(),
	}
}

func emptyMacros() Macros {
	none := Macro{Loop: -1, Release: -1}
	return Macros{Vol: none, Arp: none, Pitch: none, Pan: none, Alg: none, FB: none}
}

// carriers lists which operators reach the output per algorithm.
var (
	carriers2 = [2][2]bool{{false, true}, {true, true}}
	carriers4 = [4][4]bool{
		{false, false, false, true},
		{false, true, false, true},
		{true, false, false, true},
		{true, false, true, true},
	}
)

// isCarrier reports whether operator op is a carrier for alg with ops
// operators. Single-operator rhythm voices are always carriers.
func isCarrier(alg, ops, op int) bool {
	switch ops {
	case 1:
		return true
	case 4:
		return carriers4[alg&3][op&3]
	}
	return carriers2[alg&1][op&1]
}

// drumFixedFreq returns the fixed frequency an instrument assigns to a
// rhythm voice.
func drumFixedFreq(ins *Instrument, drum int) uint16 {
	switch drum {
	case 0:
		return ins.KickFreq
	case 1, 4:
		return ins.SnareHatFreq
	}
	return ins.TomTopFreq
}
