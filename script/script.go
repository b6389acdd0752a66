// Package script compiles Lua sequencing scripts into a tick-stamped
// command timeline for the dispatcher.
//
// A script defines instruments and samples and then issues channel
// commands separated by wait calls:
//
//	local lead = instrument{alg = 0, fb = 4, op = {{tl = 28, mult = 2}, {}}}
//	ins(0, lead)
//	note_on(0, "A-4")
//	wait(30)
//	note_off(0)
//
// Channels and instrument and sample indices are zero based.
package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/user-none/emopl/adpcm"
	"github.com/user-none/emopl/opl"
	"github.com/user-none/emopl/wavout"
)

// Step is a command issued on a tick.
type Step struct {
	Tick int
	Cmd  opl.Command
}

// Song is the result of running a script.
type Song struct {
	Options     []string // key=value, for opl.Config.ApplyOptions
	Instruments opl.InstrumentList
	Samples     [][]byte // ADPCM-B
	SampleRates []int
	Steps       []Step
	Ticks       int // Tick of the last wait
}

type compiler struct {
	song *Song
	tick int
	dir  string
}

// LoadFile runs a script file. Sample paths resolve relative to it.
func LoadFile(ctx context.Context, path string) (*Song, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	return load(ctx, string(src), filepath.Dir(path))
}

// Load runs script source. Sample paths resolve relative to the working
// directory.
func Load(ctx context.Context, src string) (*Song, error) {
	return load(ctx, src, ".")
}

func load(ctx context.Context, src, dir string) (*Song, error) {
	c := &compiler{song: &Song{}, dir: dir}
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	for name, fn := range map[string]lua.LGFunction{
		"option":     c.option,
		"instrument": c.instrument,
		"sample":     c.sample,
		"ins":        c.ins,
		"note_on":    c.noteOn,
		"note_off":   c.noteOff,
		"legato":     c.legato,
		"volume":     c.volume,
		"pan":        c.pan,
		"pitch":      c.pitch,
		"arp":        c.arp,
		"porta":      c.porta,
		"trigger":    c.trigger,
		"poke":       c.poke,
		"four_op":    c.fourOp,
		"drums":      c.drums,
		"hard_reset": c.hardReset,
		"lfo":        c.lfo,
		"param":      c.param,
		"mute":       c.mute,
		"reset":      c.reset,
		"wait":       c.wait,
	} {
		L.SetGlobal(name, L.NewFunction(fn))
	}

	if err := L.DoString(src); err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	return c.song, nil
}

func (c *compiler) emit(cmd opl.Command) {
	c.song.Steps = append(c.song.Steps, Step{Tick: c.tick, Cmd: cmd})
}

// checkNote accepts a note number or a note name.
func checkNote(L *lua.LState, n int) int {
	switch v := L.CheckAny(n).(type) {
	case lua.LNumber:
		return int(v)
	case lua.LString:
		note, err := ParseNote(string(v))
		if err != nil {
			L.ArgError(n, err.Error())
		}
		return note
	}
	L.ArgError(n, "note number or name expected")
	return 0
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (c *compiler) option(L *lua.LState) int {
	key := L.CheckString(1)
	val := L.CheckAny(2).String()
	c.song.Options = append(c.song.Options, key+"="+val)
	return 0
}

func (c *compiler) ins(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdInstrument, Ch: L.CheckInt(1), Value: L.CheckInt(2)})
	return 0
}

func (c *compiler) noteOn(L *lua.LState) int {
	ch := L.CheckInt(1)
	note := opl.NoteNone
	if L.GetTop() >= 2 && L.Get(2) != lua.LNil {
		note = checkNote(L, 2)
	}
	c.emit(opl.Command{Kind: opl.CmdNoteOn, Ch: ch, Value: note})
	return 0
}

func (c *compiler) noteOff(L *lua.LState) int {
	kind := opl.CmdNoteOff
	if L.OptBool(2, false) {
		kind = opl.CmdNoteOffEnv
	}
	c.emit(opl.Command{Kind: kind, Ch: L.CheckInt(1)})
	return 0
}

func (c *compiler) legato(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdLegato, Ch: L.CheckInt(1), Value: checkNote(L, 2)})
	return 0
}

func (c *compiler) volume(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdVolume, Ch: L.CheckInt(1), Value: L.CheckInt(2)})
	return 0
}

func (c *compiler) pan(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdPanning, Ch: L.CheckInt(1), Value: L.CheckInt(2), Value2: L.CheckInt(3)})
	return 0
}

func (c *compiler) pitch(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdPitch, Ch: L.CheckInt(1), Value: L.CheckInt(2)})
	return 0
}

func (c *compiler) arp(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdArpeggio, Ch: L.CheckInt(1), Value: L.CheckInt(2)})
	return 0
}

// porta(ch, note, speed) slides toward note until it is reached.
func (c *compiler) porta(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdPortamento, Ch: L.CheckInt(1), Value: L.CheckInt(3), Value2: checkNote(L, 2)})
	return 0
}

func (c *compiler) trigger(L *lua.LState) int {
	ch := L.CheckInt(1)
	idx := L.CheckInt(2)
	rate := 0
	if idx >= 0 && idx < len(c.song.SampleRates) {
		rate = c.song.SampleRates[idx]
	}
	c.emit(opl.Command{Kind: opl.CmdSampleTrigger, Ch: ch, Value: idx, Value2: L.OptInt(3, rate)})
	return 0
}

func (c *compiler) poke(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdRegisterPoke, Value: L.CheckInt(1), Value2: L.CheckInt(2)})
	return 0
}

func (c *compiler) fourOp(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdFourOp, Ch: L.CheckInt(1), Value: boolInt(L.OptBool(2, true))})
	return 0
}

func (c *compiler) drums(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdDrumMode, Value: boolInt(L.OptBool(1, true))})
	return 0
}

func (c *compiler) hardReset(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdHardReset, Ch: L.CheckInt(1), Value: boolInt(L.OptBool(2, true))})
	return 0
}

func (c *compiler) lfo(L *lua.LState) int {
	v := boolInt(L.OptBool(1, false)) | boolInt(L.OptBool(2, false))<<1
	c.emit(opl.Command{Kind: opl.CmdFMLFO, Value: v})
	return 0
}

var paramNames = map[string]opl.FMParam{
	"tl": opl.ParamTL, "ar": opl.ParamAR, "dr": opl.ParamDR, "sl": opl.ParamSL,
	"rr": opl.ParamRR, "mult": opl.ParamMULT, "ksl": opl.ParamKSL, "ksr": opl.ParamKSR,
	"ws": opl.ParamWS, "am": opl.ParamAM, "vib": opl.ParamVIB, "sus": opl.ParamSUS,
	"fb": opl.ParamFB, "alg": opl.ParamALG,
}

// param(ch, name, op, value); op -1 changes every operator.
func (c *compiler) param(L *lua.LState) int {
	ch := L.CheckInt(1)
	p, ok := paramNames[strings.ToLower(L.CheckString(2))]
	if !ok {
		L.ArgError(2, "unknown parameter")
	}
	c.emit(opl.Command{Kind: opl.CmdFMParam, Ch: ch, Value: int(p), Op: L.CheckInt(3), Value2: L.CheckInt(4)})
	return 0
}

func (c *compiler) mute(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdMute, Ch: L.CheckInt(1), Value: boolInt(L.OptBool(2, true))})
	return 0
}

func (c *compiler) reset(L *lua.LState) int {
	c.emit(opl.Command{Kind: opl.CmdReset})
	return 0
}

func (c *compiler) wait(L *lua.LState) int {
	n := L.OptInt(1, 1)
	if n < 0 {
		L.ArgError(1, "negative wait")
	}
	c.tick += n
	c.song.Ticks = c.tick
	return 0
}

// sample(path) imports a WAV file; sample(pcm, rate) encodes a table of
// 16-bit values. Returns the sample index.
func (c *compiler) sample(L *lua.LState) int {
	var data []byte
	var rate int
	switch v := L.CheckAny(1).(type) {
	case lua.LString:
		path := string(v)
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.dir, path)
		}
		f, err := os.Open(path)
		if err != nil {
			L.RaiseError("sample: %v", err)
		}
		s, err := wavout.ReadSample(f)
		f.Close()
		if err != nil {
			L.RaiseError("sample %s: %v", path, err)
		}
		data, rate = s.Data, s.Rate
	case *lua.LTable:
		pcm := make([]int16, 0, v.Len())
		for i := 1; i <= v.Len(); i++ {
			s := int(lua.LVAsNumber(v.RawGetInt(i)))
			pcm = append(pcm, int16(max(min(s, 32767), -32768)))
		}
		data = adpcm.Encode(pcm)
		rate = L.OptInt(2, 16000)
	default:
		L.ArgError(1, "path or table expected")
	}
	c.song.Samples = append(c.song.Samples, data)
	c.song.SampleRates = append(c.song.SampleRates, rate)
	L.Push(lua.LNumber(len(c.song.Samples) - 1))
	return 1
}
