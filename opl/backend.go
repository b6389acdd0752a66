package opl

import (
	"errors"
	"fmt"
	"strings"

	"github.com/user-none/emopl/adpcm"
	"github.com/user-none/emopl/fm"
)

// Core selects the emulation backend.
type Core int

const (
	CoreNuked Core = iota // Sample-accurate, register writes apply immediately
	CoreYMFM              // Continuous panning and ADPCM support
	CoreLLE               // Models bus latency between writes
)

func (c Core) String() string {
	switch c {
	case CoreNuked:
		return "nuked"
	case CoreYMFM:
		return "ymfm"
	case CoreLLE:
		return "lle"
	}
	return fmt.Sprintf("core(%d)", int(c))
}

// ParseCore accepts a core name or its number.
func ParseCore(s string) (Core, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nuked", "0":
		return CoreNuked, nil
	case "ymfm", "1":
		return CoreYMFM, nil
	case "lle", "2":
		return CoreLLE, nil
	}
	return 0, fmt.Errorf("opl: unknown core %q", s)
}

// ErrUnsupportedVariant is returned when a core cannot emulate a chip.
var ErrUnsupportedVariant = errors.New("opl: chip variant not supported by core")

type panModel int

const (
	panBitsModel panModel = iota
	panContinuousModel
)

// frame is one native sample: outputs A-D and per logical channel levels.
type frame struct {
	out [4]int32
	ch  [maxChans]int32
}

// engine is the contract every backend implements.
type engine interface {
	core() Core
	applyWrite(w QueuedWrite)
	advance(frames []frame)
	panModel() panModel
	setPan(hw int, left, right uint8)
}

// newEngine constructs a backend for a layout.
func newEngine(core Core, l *Layout, mem *SampleMemory) (engine, error) {
	switch core {
	case CoreNuked:
		return newNukedCore(l)
	case CoreLLE:
		return newLLECore(l)
	}
	return newYMFMCore(l, mem), nil
}

// closedCore replaces the backend after Close. Writes are dropped and
// every frame is silent.
type closedCore struct {
	was Core
}

func (c closedCore) core() Core { return c.was }
func (closedCore) applyWrite(QueuedWrite) {}
func (closedCore) panModel() panModel { return panBitsModel }
func (closedCore) setPan(int, uint8, uint8) {}
func (closedCore) advance(frames []frame) {
	for i := range frames {
		frames[i] = frame{}
	}
}

// chipCore wraps the FM engine and maps its output to logical channels.
type chipCore struct {
	layout *Layout
	chip   *fm.Chip
	fmf    fm.Frame
}

func newChipCore(l *Layout) chipCore {
	return chipCore{layout: l, chip: fm.New(l.Mode)}
}

// collect copies per channel levels from the FM frame.
func (c *chipCore) collect(f *frame) {
	l := c.layout
	for ch := 0; ch < l.TotalChans; ch++ {
		switch {
		case l.hw[ch] >= 0:
			f.ch[ch] = c.fmf.Ch[l.hw[ch]]
		case l.drum[ch] >= 0:
			f.ch[ch] = c.fmf.Drum[l.drum[ch]]
		default:
			f.ch[ch] = 0
		}
	}
}

// isADPCMReg reports whether an address belongs to the delta-T unit. $08
// is shared with the FM engine's note select.
func isADPCMReg(addr uint16) bool {
	return addr >= 0x07 && addr <= 0x12
}

// sendADPCM routes a write to the delta-T unit and memory bank select.
// It reports whether the FM engine should also see the write.
func sendADPCM(dt *adpcm.Engine, mem *SampleMemory, w QueuedWrite) bool {
	if w.Addr == bankSelectReg {
		if mem != nil {
			mem.Select(int(w.Val))
		}
		return false
	}
	if !isADPCMReg(w.Addr) {
		return true
	}
	dt.Write(uint8(w.Addr), w.Val)
	return w.Addr == 0x08
}
