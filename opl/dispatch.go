package opl

// Dispatch applies one command and returns Rejected, Accepted or, for
// portamento reaching its target, PortaTarget. CmdGetVolMax returns the
// channel's volume resolution instead.
//
// Channel commands to an out of range channel or to the companion of an
// active 4-op pair are rejected.
func (d *Dispatcher) Dispatch(c Command) int {
	switch c.Kind {
	case CmdReset:
		d.Reset()
		return Accepted
	case CmdRegisterPoke:
		if c.Value < 0 || c.Value >= d.layout.PoolSize || c.Value2 < 0 || c.Value2 > 0xFF {
			return Rejected
		}
		d.Poke(uint16(c.Value), uint8(c.Value2))
		return Accepted
	case CmdFMLFO:
		d.dam = c.Value&1 != 0
		d.dvb = c.Value&2 != 0
		return Accepted
	case CmdDrumMode:
		d.setDrums(c.Value != 0)
		return Accepted
	}

	if !d.addressable(c.Ch) {
		return Rejected
	}
	ch := &d.chans[c.Ch]

	switch c.Kind {
	case CmdNoteOn:
		return d.noteOn(c.Ch, c.Value)
	case CmdNoteOff, CmdNoteOffEnv:
		ch.keyOff = true
		ch.keyOn = false
		ch.Active = false
		if c.Kind == CmdNoteOffEnv {
			ch.macros.release()
		}
		return Accepted
	case CmdInstrument:
		if ch.Ins != c.Value || !ch.stateLoaded {
			ch.Ins = c.Value
			d.loadInstrument(c.Ch)
			ins := &ch.state
			if c.Ch == d.layout.ADPCMChan {
				d.useSample(ch, ins)
			}
			if ch.Active {
				ch.macros.init(ins)
				if ch.HardReset {
					ch.keyOn = true
				}
			}
		}
		return Accepted
	case CmdVolume:
		d.setVolume(c.Ch, c.Value, c.FromMacro)
		return Accepted
	case CmdGetVolMax:
		return d.layout.VolMax(c.Ch)
	case CmdPanning:
		l := uint8(clampInt(c.Value, 0, 255))
		r := uint8(clampInt(c.Value2, 0, 255))
		ch.PanL, ch.PanR = l, r
		ch.Pan = panBits(l, r, d.cfg.CompatPan)
		ch.panChanged = true
		return Accepted
	case CmdPitch:
		if c.FromMacro {
			ch.Pitch2 = c.Value
		} else {
			ch.Pitch = c.Value
		}
		ch.freqChanged = true
		return Accepted
	case CmdArpeggio:
		if c.FromMacro {
			ch.MacroArp = c.Value
		} else {
			ch.Arp = c.Value
		}
		if !ch.InPorta {
			d.refreshBaseFreq(ch)
		}
		return Accepted
	case CmdLegato:
		if c.Value == NoteNone {
			return Accepted
		}
		ch.Note = c.Value
		d.refreshBaseFreq(ch)
		return Accepted
	case CmdPortamento:
		return d.portamento(ch, c.Value, c.Value2)
	case CmdSampleTrigger:
		if c.Ch != d.layout.ADPCMChan {
			return Rejected
		}
		d.sampleTrigger(c.Ch, c.Value, c.Value2)
		return Accepted
	case CmdMacroTick:
		d.macroTick(c.Ch)
		return Accepted
	case CmdMute:
		d.MuteChannel(c.Ch, c.Value != 0)
		return Accepted
	case CmdFMParam:
		if !d.setParam(ch, FMParam(c.Value), c.Op, c.Value2) {
			return Rejected
		}
		return Accepted
	case CmdHardReset:
		ch.HardReset = c.Value != 0
		return Accepted
	case CmdFourOp:
		if !d.layout.FourOpCapable(c.Ch) {
			return Rejected
		}
		d.setFourOp(c.Ch, c.Value != 0)
		return Accepted
	}
	return Rejected
}

// addressable reports whether channel commands may target ch.
func (d *Dispatcher) addressable(ch int) bool {
	return ch >= 0 && ch < d.layout.TotalChans && !d.isCompanion(ch)
}

// isCompanion reports whether ch is the second half of an active 4-op pair.
func (d *Dispatcher) isCompanion(ch int) bool {
	return ch > 0 && d.layout.FourOpCapable(ch-1) && d.chans[ch-1].FourOp
}

func (d *Dispatcher) noteOn(ch, note int) int {
	c := &d.chans[ch]
	if !c.stateLoaded {
		d.loadInstrument(ch)
	}
	ins := &c.state

	if ch == d.layout.ADPCMChan {
		d.useSample(c, ins)
		d.checkResident(ch)
	} else {
		if d.layout.FourOpCapable(ch) && (ins.Ops == 4) != c.FourOp {
			d.setFourOp(ch, ins.Ops == 4)
		}
		c.FixedFreq = 0
		if drum := d.layout.DrumIndex(ch); drum >= 0 && ins.FixedDrums {
			c.FixedFreq = drumFixedFreq(ins, drum)
			c.freqChanged = true
		}
	}

	c.macros.init(ins)
	if note != NoteNone {
		c.Note = note
		c.MacroArp = 0
		d.refreshBaseFreq(c)
	}
	c.InPorta = false
	c.keyOn = true
	c.Active = true
	if !c.macros.vol.active() {
		c.OutVol = c.Vol
	}
	c.volChanged = true
	return Accepted
}

// setVolume sets the channel volume, or with fromMacro applies the volume
// macro's current value on top of it.
func (d *Dispatcher) setVolume(ch, vol int, fromMacro bool) {
	c := &d.chans[ch]
	max := d.layout.VolMax(ch)
	c.Vol = clampInt(vol, 0, max)
	switch {
	case (fromMacro || c.macros.vol.active()) && ch == d.layout.ADPCMChan:
		c.OutVol = volScaleLinear(c.Vol, c.macros.vol.val, c.MacroVol-1)
	case fromMacro || c.macros.vol.active():
		c.OutVol = volScale(c.Vol, c.macros.vol.val, c.MacroVol-1)
	default:
		c.OutVol = c.Vol
	}
	c.volChanged = true
}

// portamento slides the base frequency toward target by speed scaled to
// the current block.
func (d *Dispatcher) portamento(c *Channel, speed, target int) int {
	dest := noteFreq(target, d.nativeRate())
	if speed <= 0 {
		return Accepted
	}
	block, _ := toFreq(c.BaseFreq)
	step := speed << block
	reached := false
	if dest > c.BaseFreq {
		c.BaseFreq += step
		if c.BaseFreq >= dest {
			reached = true
		}
	} else {
		c.BaseFreq -= step
		if c.BaseFreq <= dest {
			reached = true
		}
	}
	c.InPorta = true
	c.freqChanged = true
	if reached {
		c.BaseFreq = dest
		c.Note = target
		c.InPorta = false
		return PortaTarget
	}
	return Accepted
}

// macroTick advances a channel's macros and feeds their values back as
// synthetic commands.
func (d *Dispatcher) macroTick(ch int) {
	c := &d.chans[ch]
	m := &c.macros
	m.step()

	if m.vol.had {
		d.Dispatch(Command{Kind: CmdVolume, Ch: ch, Value: c.Vol, FromMacro: true})
	}
	if m.arp.had {
		d.Dispatch(Command{Kind: CmdArpeggio, Ch: ch, Value: m.arp.val, FromMacro: true})
	}
	if m.pitch.had {
		d.Dispatch(Command{Kind: CmdPitch, Ch: ch, Value: m.pitch.val, FromMacro: true})
	}
	if m.pan.had {
		var l, r int
		if m.pan.val&1 != 0 {
			l = 0xFF
		}
		if m.pan.val&2 != 0 {
			r = 0xFF
		}
		d.Dispatch(Command{Kind: CmdPanning, Ch: ch, Value: l, Value2: r, FromMacro: true})
	}
	if m.alg.had {
		d.Dispatch(Command{Kind: CmdFMParam, Ch: ch, Value: int(ParamALG), Value2: m.alg.val, Op: -1, FromMacro: true})
	}
	if m.fb.had {
		d.Dispatch(Command{Kind: CmdFMParam, Ch: ch, Value: int(ParamFB), Value2: m.fb.val, Op: -1, FromMacro: true})
	}
}

// setParam changes one parameter of the channel's working instrument.
// Op selects the operator, or -1 for all of them.
func (d *Dispatcher) setParam(c *Channel, p FMParam, op, val int) bool {
	switch p {
	case ParamFB:
		c.state.FB = uint8(clampInt(val, 0, 7))
		c.dirty = true
		return true
	case ParamALG:
		c.state.ALG = uint8(clampInt(val, 0, 3))
		c.dirty = true
		return true
	}
	if op < -1 || op > 3 {
		return false
	}
	lo, hi := op, op
	if op < 0 {
		lo, hi = 0, 3
	}
	u := func(max int) uint8 { return uint8(clampInt(val, 0, max)) }
	for i := lo; i <= hi; i++ {
		o := &c.state.Op[i]
		switch p {
		case ParamTL:
			o.TL = u(63)
		case ParamAR:
			o.AR = u(15)
		case ParamDR:
			o.DR = u(15)
		case ParamSL:
			o.SL = u(15)
		case ParamRR:
			o.RR = u(15)
		case ParamMULT:
			o.MULT = u(15)
		case ParamKSL:
			o.KSL = u(3)
		case ParamKSR:
			o.KSR = val != 0
		case ParamWS:
			o.WS = u(7)
		case ParamAM:
			o.AM = val != 0
		case ParamVIB:
			o.VIB = val != 0
		case ParamSUS:
			o.SUS = val != 0
		default:
			return false
		}
	}
	c.dirty = true
	return true
}

// setFourOp pairs or unpairs an OPL3 channel with the next one. The
// companion is keyed off and becomes unaddressable while paired.
func (d *Dispatcher) setFourOp(ch int, on bool) {
	c := &d.chans[ch]
	if c.FourOp == on {
		return
	}
	c.FourOp = on
	c.dirty = true
	c.freqChanged = true

	comp := &d.chans[ch+1]
	comp.keyOff = true
	comp.keyOn = false
	comp.Active = false
	comp.dirty = true
	d.log.Debug("opl: 4-op", "channel", ch, "enabled", on)
}

// setDrums switches rhythm mode. Channels whose role changes are reset
// and the shared hardware channels keyed off.
func (d *Dispatcher) setDrums(on bool) {
	if d.layout.Drums == on {
		return
	}
	oldMelodic := d.layout.MelodicChans
	d.layout = buildLayout(d.cfg.Chip, on, d.cfg.ClockHz)
	d.cfg.Drums = on
	d.drumState = 0

	first := min(oldMelodic, d.layout.MelodicChans)
	for ch := first; ch < maxChans; ch++ {
		d.chans[ch].reset(d.layout.VolMax(ch))
	}
	for hw := 6; hw <= 8; hw++ {
		addr := uint16(0xB0 + hw)
		if d.pendingKey(addr) {
			d.write(addr, uint8(d.regs.pending[addr])&^0x20)
		}
	}
	d.write(0xBD, d.rhythmReg())
	d.log.Debug("opl: rhythm mode", "enabled", on, "channels", d.layout.TotalChans)
}
