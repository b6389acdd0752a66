package fm

import "math"

// sineTable is a quarter-sine log table: 256 entries of -log2(sin((2i+1)/512 * pi/2))
// in 4.8 fixed-point.
var sineTable [256]uint16

// pow2Table holds 2^(1-(i+1)/256) scaled to 11 bits. It converts log-domain
// attenuation back to linear amplitude.
var pow2Table [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		angle := float64(2*i+1) / 512.0 * math.Pi / 2.0
		logVal := -math.Log2(math.Sin(angle)) * 256.0
		sineTable[i] = uint16(math.Round(logVal))
	}

	for i := 0; i < 256; i++ {
		val := math.Pow(2.0, 1.0-float64(i+1)/256.0) * 1024.0
		pow2Table[i] = uint16(math.Round(val))
	}
}

// expOut converts a 4.8 log attenuation to a 13-bit signed linear value.
func expOut(logAtten uint32, negative bool) int16 {
	intPart := logAtten >> 8
	if intPart >= 13 {
		return 0
	}
	linear := (uint32(pow2Table[logAtten&0xFF]) << 1) >> intPart
	if negative {
		return -int16(linear)
	}
	return int16(linear)
}

// waveOutput computes one operator sample for a 10-bit phase index and a
// 9-bit envelope attenuation using the selected waveform.
func waveOutput(ws uint8, phase uint16, env uint16) int16 {
	phase &= 0x3FF
	envLog := uint32(env) << 3

	switch ws {
	case 1: // half sine
		if phase&0x200 != 0 {
			return 0
		}
		return expOut(quarterSine(phase)+envLog, false)
	case 2: // absolute sine
		return expOut(quarterSine(phase)+envLog, false)
	case 3: // pulse sine
		if phase&0x100 != 0 {
			return 0
		}
		return expOut(uint32(sineTable[phase&0xFF])+envLog, false)
	case 4: // alternating sine
		if phase&0x200 != 0 {
			return 0
		}
		p := (phase << 1) & 0x3FF
		return expOut(quarterSine(p)+envLog, p&0x200 != 0)
	case 5: // alternating absolute sine
		if phase&0x200 != 0 {
			return 0
		}
		return expOut(quarterSine((phase<<1)&0x3FF)+envLog, false)
	case 6: // square
		return expOut(envLog, phase&0x200 != 0)
	case 7: // derived square
		neg := phase&0x200 != 0
		p := phase & 0x1FF
		if neg {
			p = ^phase & 0x1FF
		}
		return expOut(uint32(p)<<3+envLog, neg)
	}
	return expOut(quarterSine(phase)+envLog, phase&0x200 != 0)
}

// quarterSine looks up the log-sine attenuation for a 10-bit phase,
// mirroring the second and fourth quarters.
func quarterSine(phase uint16) uint32 {
	idx := phase & 0xFF
	if phase&0x100 != 0 {
		idx = 0xFF - idx
	}
	return uint32(sineTable[idx])
}

// feedback computes the self-modulation of a channel's first operator.
func feedback(o *operator, fb uint8) int32 {
	if fb == 0 {
		return 0
	}
	return (int32(o.prevOut[0]) + int32(o.prevOut[1])) >> (9 - uint(fb))
}

// attenuation returns envelope + TL + KSL + tremolo, capped at 0x1FF.
func (c *Chip) attenuation(o *operator) uint16 {
	total := uint32(o.egLevel) + uint32(o.tl)<<2 + uint32(o.kslAt)
	if o.am {
		total += uint32(c.tremolo)
	}
	if total > 0x1FF {
		return 0x1FF
	}
	return uint16(total)
}

// opOut computes an operator's output with phase modulation in the
// 10-bit index domain and stores it for feedback.
func (c *Chip) opOut(o *operator, modulation int32) int16 {
	idx := uint16(int32(o.phase>>9)+modulation) & 0x3FF
	out := waveOutput(c.waveform(o), idx, c.attenuation(o))
	o.prevOut[1] = o.prevOut[0]
	o.prevOut[0] = out
	return out
}

// evalTwoOp computes one 2-op channel.
// CNT=0: OP1->OP2. CNT=1: OP1 + OP2.
func (c *Chip) evalTwoOp(chIdx int) int32 {
	ch := &c.ch[chIdx]
	op1, op2 := ChannelSlots(chIdx)
	a, b := &c.op[op1], &c.op[op2]

	s1 := c.opOut(a, feedback(a, ch.fb))
	if ch.cnt {
		return int32(s1) + int32(c.opOut(b, 0))
	}
	return int32(c.opOut(b, int32(s1)))
}

// evalFourOp computes a 4-op pair from its primary channel. The algorithm
// is (CNT primary << 1) | CNT secondary:
//
//	0: 1->2->3->4
//	1: (1->2) + (3->4)
//	2: 1 + (2->3->4)
//	3: 1 + (2->3) + 4
func (c *Chip) evalFourOp(chIdx int) int32 {
	pri := &c.ch[chIdx]
	sec := &c.ch[chIdx+3]
	s1a, s2a := ChannelSlots(chIdx)
	s3a, s4a := ChannelSlots(chIdx + 3)
	o1, o2, o3, o4 := &c.op[s1a], &c.op[s2a], &c.op[s3a], &c.op[s4a]

	alg := 0
	if pri.cnt {
		alg |= 2
	}
	if sec.cnt {
		alg |= 1
	}

	s1 := c.opOut(o1, feedback(o1, pri.fb))
	switch alg {
	case 0:
		s2 := c.opOut(o2, int32(s1))
		s3 := c.opOut(o3, int32(s2))
		return int32(c.opOut(o4, int32(s3)))
	case 1:
		s2 := c.opOut(o2, int32(s1))
		s3 := c.opOut(o3, 0)
		return int32(s2) + int32(c.opOut(o4, int32(s3)))
	case 2:
		s2 := c.opOut(o2, 0)
		s3 := c.opOut(o3, int32(s2))
		return int32(s1) + int32(c.opOut(o4, int32(s3)))
	default:
		s2 := c.opOut(o2, 0)
		s3 := c.opOut(o3, int32(s2))
		return int32(s1) + int32(s3) + int32(c.opOut(o4, 0))
	}
}

// evalRhythm computes the five rhythm voices on channels 6-8. Each voice
// is output at double level, matching the hardware mix.
func (c *Chip) evalRhythm(f *Frame) {
	bd1, bd2 := &c.op[12], &c.op[15]
	hh, sd := &c.op[13], &c.op[16]
	tom, tc := &c.op[14], &c.op[17]

	// Bass drum: regular 2-op voice on channel 6
	s1 := c.opOut(bd1, feedback(bd1, c.ch[6].fb))
	var bd int16
	if c.ch[6].cnt {
		bd = c.opOut(bd2, 0)
	} else {
		bd = c.opOut(bd2, int32(s1))
	}

	// Hi-hat, snare and top cymbal derive their phase from slots 13 and 17
	// combined with the noise generator.
	hhPhase := uint16(hh.phase>>9) & 0x3FF
	tcPhase := uint16(tc.phase>>9) & 0x3FF
	bit := func(v uint16, n uint) uint16 { return (v >> n) & 1 }
	rmXor := (bit(hhPhase, 2) ^ bit(hhPhase, 7)) | (bit(hhPhase, 3) ^ bit(tcPhase, 5)) | (bit(tcPhase, 3) ^ bit(tcPhase, 5))
	noise := uint16(c.noise & 1)

	p := rmXor << 9
	if rmXor^noise != 0 {
		p |= 0xD0
	} else {
		p |= 0x34
	}
	hhOut := waveOutput(c.waveform(hh), p, c.attenuation(hh))

	hh8 := bit(hhPhase, 8)
	sdOut := waveOutput(c.waveform(sd), (hh8<<9)|((hh8^noise)<<8), c.attenuation(sd))

	tomOut := c.opOut(tom, 0)

	tcOut := waveOutput(c.waveform(tc), (rmXor<<9)|0x80, c.attenuation(tc))

	f.Drum[DrumBD] = int32(bd) * 2
	f.Drum[DrumSD] = int32(sdOut) * 2
	f.Drum[DrumTOM] = int32(tomOut) * 2
	f.Drum[DrumTOP] = int32(tcOut) * 2
	f.Drum[DrumHH] = int32(hhOut) * 2

	f.Ch[6] = f.Drum[DrumBD]
	f.Ch[7] = f.Drum[DrumHH] + f.Drum[DrumSD]
	f.Ch[8] = f.Drum[DrumTOM] + f.Drum[DrumTOP]
	c.route(f, 6, f.Ch[6])
	c.route(f, 7, f.Ch[7])
	c.route(f, 8, f.Ch[8])
}

// stepNoise advances the 23-bit rhythm noise LFSR.
func (c *Chip) stepNoise() {
	bit := (c.noise ^ (c.noise >> 14)) & 1
	c.noise = (c.noise >> 1) | (bit << 22)
}
