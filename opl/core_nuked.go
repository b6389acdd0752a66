package opl

import "fmt"

// nukedCore clocks the FM engine once per native sample and applies
// writes the moment they are committed. Output follows the pan bits.
type nukedCore struct {
	chipCore
}

func newNukedCore(l *Layout) (*nukedCore, error) {
	if l.ADPCMChan >= 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedVariant, l.Type, CoreNuked)
	}
	return &nukedCore{chipCore: newChipCore(l)}, nil
}

func (c *nukedCore) core() Core {
	return CoreNuked
}

func (c *nukedCore) applyWrite(w QueuedWrite) {
	c.chip.Write(w.Addr, w.Val)
}

func (c *nukedCore) advance(frames []frame) {
	for i := range frames {
		c.chip.Clock(&c.fmf)
		frames[i].out = c.fmf.Out
		c.collect(&frames[i])
	}
}

func (c *nukedCore) panModel() panModel {
	return panBitsModel
}

func (c *nukedCore) setPan(int, uint8, uint8) {}
