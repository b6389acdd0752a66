package opl

import (
	"fmt"

	"github.com/user-none/emopl/fm"
)

// lleWriteCycles is the master clock time one write holds the bus:
// address and data phases with the chip's required wait states.
const lleWriteCycles = 96

type timedWrite struct {
	at   uint64
	addr uint16
	val  uint8
}

// lleCore models the host bus. Each write lands when the bus frees up,
// spreading a burst across the native sample that follows the commit. A
// burst that would overrun that sample is squeezed into its last cycle,
// so committed state is always audible on the next frame. A write flagged
// Pair shares the cycle of the write that follows it.
type lleCore struct {
	chipCore
	cycle   uint64 // Master clock at the start of the next sample
	busFree uint64
	pairAt  uint64
	inPair  bool
	pending []timedWrite
}

func newLLECore(l *Layout) (*lleCore, error) {
	if l.Mode == fm.ModeOPL {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedVariant, l.Type, CoreLLE)
	}
	return &lleCore{chipCore: newChipCore(l)}, nil
}

func (c *lleCore) core() Core {
	return CoreLLE
}

func (c *lleCore) applyWrite(w QueuedWrite) {
	at := c.cycle
	if c.busFree > at {
		at = c.busFree
	}
	if c.inPair {
		at = c.pairAt
	} else {
		c.busFree = at + lleWriteCycles
	}
	last := c.cycle + uint64(c.layout.Divider) - 1
	at = min(at, last)
	c.busFree = min(c.busFree, last+1)
	c.pending = append(c.pending, timedWrite{at: at, addr: w.Addr, val: w.Val})
	c.inPair = w.Pair
	c.pairAt = at
}

func (c *lleCore) advance(frames []frame) {
	div := uint64(c.layout.Divider)
	for i := range frames {
		end := c.cycle + div
		n := 0
		for n < len(c.pending) && c.pending[n].at < end {
			c.chip.Write(c.pending[n].addr, c.pending[n].val)
			n++
		}
		if n > 0 {
			c.pending = append(c.pending[:0], c.pending[n:]...)
		}
		c.cycle = end

		c.chip.Clock(&c.fmf)
		frames[i].out = c.fmf.Out
		c.collect(&frames[i])
	}
}

// backlog returns the number of writes still waiting for the bus.
func (c *lleCore) backlog() int {
	return len(c.pending)
}

func (c *lleCore) panModel() panModel {
	return panBitsModel
}

func (c *lleCore) setPan(int, uint8, uint8) {}
