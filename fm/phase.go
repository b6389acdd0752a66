package fm

// multTable holds twice the frequency multiplier for each MULT value.
// MULT 0 is x0.5; 11 and 13 repeat 10 and 12; 14 and 15 are both x15.
var multTable = [16]uint32{1, 2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 20, 24, 24, 30, 30}

// kslTable is the key scale level attenuation base indexed by F-number bits 9-6.
var kslTable = [16]int32{0, 32, 40, 45, 48, 51, 53, 55, 56, 58, 59, 60, 61, 62, 63, 64}

// kslShift maps the 2-bit KSL field to a right shift: 0, 3, 1.5 and 6 dB/oct.
var kslShift = [4]uint{8, 1, 2, 0}

// computePhaseIncrement calculates the 19-bit phase increment for an operator.
// fnum: 10-bit F-number, block: 3-bit octave, mult: 4-bit multiplier.
func computePhaseIncrement(fnum uint16, block, mult uint8) uint32 {
	base := (uint32(fnum) << uint(block)) >> 1
	return ((base * multTable[mult&0x0F]) >> 1) & 0x7FFFF
}

// keyScaleValue returns the 4-bit rate scaling value for a channel.
// NTS selects F-number bit 8 instead of bit 9.
func keyScaleValue(fnum uint16, block uint8, nts bool) uint8 {
	bit := (fnum >> 9) & 1
	if nts {
		bit = (fnum >> 8) & 1
	}
	return block<<1 | uint8(bit)
}

// keyScaleAttenuation returns the KSL attenuation in 9-bit envelope units.
func keyScaleAttenuation(fnum uint16, block, ksl uint8) uint16 {
	v := kslTable[(fnum>>6)&0x0F]<<2 - int32(8-int32(block))<<5
	if v < 0 {
		v = 0
	}
	return uint16(v) >> kslShift[ksl&3]
}

// vibratoFnum applies the vibrato LFO to an F-number. The depth scales with
// F-number bits 9-7 and is halved unless DVB is set.
func (c *Chip) vibratoFnum(fnum uint16) uint16 {
	rng := (fnum >> 7) & 7
	pos := c.vibratoPos
	if pos&3 == 0 {
		rng = 0
	} else if pos&1 != 0 {
		rng >>= 1
	}
	if !c.dvb {
		rng >>= 1
	}
	if pos&4 != 0 {
		return (fnum - rng) & 0x3FF
	}
	return (fnum + rng) & 0x3FF
}

// stepPhase advances one slot's phase accumulator and refreshes its key
// scaling from the channel that drives it.
func (c *Chip) stepPhase(slot int) {
	o := &c.op[slot]
	ch := &c.ch[c.freqChannel(slot)]

	fnum := ch.fnum
	o.ksv = keyScaleValue(fnum, ch.block, c.nts)
	o.kslAt = keyScaleAttenuation(fnum, ch.block, o.ksl)
	if o.vib {
		fnum = c.vibratoFnum(fnum)
	}
	o.phase = (o.phase + computePhaseIncrement(fnum, ch.block, o.mult)) & 0x7FFFF
}
