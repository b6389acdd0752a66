package opl

import "github.com/user-none/emopl/fm"

// Tick runs one sequencer tick. On a system tick every channel's macros
// advance first. Changed instrument, volume and pan registers are then
// flushed, frequency and key writes queued, and everything committed.
func (d *Dispatcher) Tick(sysTick bool) {
	l := &d.layout
	if sysTick {
		for ch := 0; ch < l.TotalChans; ch++ {
			if !d.isCompanion(ch) {
				d.Dispatch(Command{Kind: CmdMacroTick, Ch: ch})
			}
		}
	}

	if l.Mode == fm.ModeOPL3 {
		d.write(0x104, d.fourOpMask())
	}

	for ch := 0; ch < l.TotalChans; ch++ {
		c := &d.chans[ch]
		if ch == l.ADPCMChan || d.isCompanion(ch) {
			continue
		}
		if c.dirty || c.volChanged || c.panChanged {
			if !c.stateLoaded {
				d.loadInstrument(ch)
			}
			d.commitInstrument(ch)
			c.dirty = false
			c.volChanged = false
		}
	}
	d.flushStaged()
	d.write(0xBD, d.rhythmReg())

	for ch := 0; ch < l.TotalChans; ch++ {
		switch {
		case ch == l.ADPCMChan:
			d.tickADPCM(ch)
		case l.DrumIndex(ch) >= 0:
			d.tickDrum(ch)
		default:
			d.tickMelodic(ch)
		}
	}

	if d.eng.panModel() == panContinuousModel {
		for ch := 0; ch < l.TotalChans; ch++ {
			if d.chans[ch].panChanged {
				d.applyPan(ch)
			}
		}
	}
	for ch := range d.chans {
		d.chans[ch].panChanged = false
	}

	d.Commit()
}

// commitInstrument stages every operator and connection register of a
// channel from its working instrument. Unchanged values are elided when
// the stage is flushed.
func (d *Dispatcher) commitInstrument(ch int) {
	c := &d.chans[ch]
	l := &d.layout
	ins := &c.state

	ops, alg := 2, int(ins.ALG&1)
	four := c.FourOp && l.FourOpCapable(ch)
	if four {
		ops, alg = 4, int(ins.ALG&3)
	}
	if l.DrumIndex(ch) > 0 {
		ops = 1
	}
	wsMask := l.waveMask()

	for i := 0; i < ops; i++ {
		slot := l.Slot(ch, i)
		if slot < 0 {
			continue
		}
		op := &ins.Op[i]
		off := fm.SlotOffset(slot)
		d.stage(0x20+off, op.reg20())
		d.stage(0x40+off, (op.KSL&3)<<6|d.operatorTL(c, op, alg, ops, i))
		d.stage(0x60+off, (op.AR&0x0F)<<4|op.DR&0x0F)
		d.stage(0x80+off, (op.SL&0x0F)<<4|op.RR&0x0F)
		if wsMask != 0 {
			d.stage(0xE0+off, op.WS&wsMask)
		}
	}

	if l.DrumIndex(ch) > 0 {
		return
	}
	var pan uint8
	if l.Mode == fm.ModeOPL3 {
		pan = c.Pan << 4
	}
	reg := l.ChanReg(ch)
	if four {
		d.stage(0xC0+reg, pan|(ins.FB&7)<<1|uint8(alg>>1)&1)
		d.stage(0xC0+l.ChanReg(ch+1), pan|uint8(alg)&1)
		return
	}
	d.stage(0xC0+reg, pan|(ins.FB&7)<<1|uint8(alg)&1)
}

// operatorTL returns the total level of an operator. Carriers are
// attenuated by the channel's output volume, or silenced when muted.
func (d *Dispatcher) operatorTL(c *Channel, op *Operator, alg, ops, i int) uint8 {
	tl := int(op.TL & 0x3F)
	if !isCarrier(alg, ops, i) {
		return uint8(tl)
	}
	if c.Muted {
		return 63
	}
	return uint8(63 - clampInt((63-tl)+c.OutVol-63, 0, 63))
}

// tickMelodic queues the frequency and key writes of a melodic channel.
func (d *Dispatcher) tickMelodic(ch int) {
	c := &d.chans[ch]
	reg := d.layout.ChanReg(ch)
	if d.isCompanion(ch) {
		if c.keyOff {
			d.write(0xB0+reg, uint8(max(d.regs.pending[0xB0+reg], 0))&^0x20)
			c.keyOff = false
		}
		c.keyOn = false
		c.freqChanged = false
		return
	}
	if c.freqChanged {
		d.calcFreq(c)
	}

	if c.keyOff || (c.keyOn && c.HardReset && d.pendingKey(0xB0+reg)) {
		d.write(0xB0+reg, c.FreqH)
		c.keyOff = false
	}
	var key uint8
	if c.Active {
		key = 0x20
	}
	switch {
	case c.freqChanged:
		d.writePair(0xA0+reg, c.FreqL, 0xB0+reg, c.FreqH|key)
	case c.keyOn:
		d.write(0xB0+reg, c.FreqH|0x20)
	}
	c.freqChanged = false
	c.keyOn = false
}

// tickDrum queues the frequency of a rhythm voice's shared channel and
// pulses its bit in $BD on key on.
func (d *Dispatcher) tickDrum(ch int) {
	c := &d.chans[ch]
	bit := uint8(0x10) >> uint(d.layout.DrumIndex(ch))
	reg := d.layout.ChanReg(ch)

	if c.freqChanged {
		d.calcFreq(c)
		d.writePair(0xA0+reg, c.FreqL, 0xB0+reg, c.FreqH)
		c.freqChanged = false
	}
	if c.keyOff || c.keyOn {
		d.drumState &^= bit
		d.write(0xBD, d.rhythmReg())
		c.keyOff = false
	}
	if c.keyOn {
		d.drumState |= bit
		d.write(0xBD, d.rhythmReg())
		c.keyOn = false
	}
}
