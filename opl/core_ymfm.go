package opl

import (
	"github.com/user-none/emopl/adpcm"
	"github.com/user-none/emopl/fm"
)

// ymfmCore supports every variant, including the Y8950 delta-T unit.
// On OPL3 outputs A and B are mixed from per channel levels with
// continuous panning; C and D keep the pan bits.
type ymfmCore struct {
	chipCore
	mem   *SampleMemory
	dt    *adpcm.Engine
	panL  [18]uint8
	panR  [18]uint8
	drums [5]int // Hardware channel whose pan a rhythm voice follows
}

func newYMFMCore(l *Layout, mem *SampleMemory) *ymfmCore {
	c := &ymfmCore{chipCore: newChipCore(l), mem: mem, drums: drumFreqHW}
	for i := range c.panL {
		c.panL[i], c.panR[i] = 0xFF, 0xFF
	}
	if l.ADPCMChan >= 0 {
		var m adpcm.Memory
		if mem != nil {
			m = mem
		}
		c.dt = adpcm.NewEngine(m)
	}
	return c
}

func (c *ymfmCore) core() Core {
	return CoreYMFM
}

func (c *ymfmCore) applyWrite(w QueuedWrite) {
	if c.dt != nil && !sendADPCM(c.dt, c.mem, w) {
		return
	}
	c.chip.Write(w.Addr, w.Val)
}

func (c *ymfmCore) advance(frames []frame) {
	l := c.layout
	for i := range frames {
		f := &frames[i]
		c.chip.Clock(&c.fmf)
		c.collect(f)

		if l.Mode == fm.ModeOPL3 {
			c.mixContinuous(f)
		} else {
			f.out = c.fmf.Out
		}
		if c.dt != nil {
			s := c.dt.Clock()
			f.ch[l.ADPCMChan] = s
			f.out[0] += s
		}
	}
}

// mixContinuous scales each channel by its left/right level into A and B.
func (c *ymfmCore) mixContinuous(f *frame) {
	var a, b int64
	for hw := 0; hw < 18; hw++ {
		s := int64(c.fmf.Ch[hw])
		a += s * int64(c.panL[hw]) / 255
		b += s * int64(c.panR[hw]) / 255
	}
	for d, hw := range c.drums {
		s := int64(c.fmf.Drum[d])
		a += s * int64(c.panL[hw]) / 255
		b += s * int64(c.panR[hw]) / 255
	}
	f.out[0] = int32(a)
	f.out[1] = int32(b)
	f.out[2] = c.fmf.Out[2]
	f.out[3] = c.fmf.Out[3]
}

func (c *ymfmCore) panModel() panModel {
	return panContinuousModel
}

func (c *ymfmCore) setPan(hw int, left, right uint8) {
	if hw < 0 || hw >= len(c.panL) {
		return
	}
	c.panL[hw] = left
	c.panR[hw] = right
}
