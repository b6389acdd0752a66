package fm

// egIncrementTable defines the attenuation increment patterns for rates 4-47.
// The shift (12 - rate>>2) controls how often updates occur and rate&3
// selects one of four base patterns. Row 0 is unused.
var egIncrementTable = [5][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 0},
	{0, 1, 0, 1, 0, 1, 0, 1},
	{0, 1, 0, 1, 1, 1, 0, 1},
	{0, 1, 1, 1, 0, 1, 1, 1},
	{0, 1, 1, 1, 1, 1, 1, 1},
}

// egHighRateTable defines per-rate increment patterns for rates 48-63,
// which update on every sample.
var egHighRateTable = [16][8]uint8{
	{1, 1, 1, 1, 1, 1, 1, 1}, // rate 48
	{1, 1, 1, 2, 1, 1, 1, 2}, // rate 49
	{1, 2, 1, 2, 1, 2, 1, 2}, // rate 50
	{1, 2, 2, 2, 1, 2, 2, 2}, // rate 51
	{2, 2, 2, 2, 2, 2, 2, 2}, // rate 52
	{2, 2, 2, 4, 2, 2, 2, 4}, // rate 53
	{2, 4, 2, 4, 2, 4, 2, 4}, // rate 54
	{2, 4, 4, 4, 2, 4, 4, 4}, // rate 55
	{4, 4, 4, 4, 4, 4, 4, 4}, // rate 56
	{4, 4, 4, 4, 4, 4, 4, 4}, // rate 57
	{4, 4, 4, 4, 4, 4, 4, 4}, // rate 58
	{4, 4, 4, 4, 4, 4, 4, 4}, // rate 59
	{4, 4, 4, 4, 4, 4, 4, 4}, // rate 60
	{4, 4, 4, 4, 4, 4, 4, 4}, // rate 61
	{4, 4, 4, 4, 4, 4, 4, 4}, // rate 62
	{4, 4, 4, 4, 4, 4, 4, 4}, // rate 63
}

// effectiveRate computes 4*rate + rof, clamped to 63. Returns 0 if rate is 0.
// rof is the key scale value, divided by 4 unless KSR is set.
func effectiveRate(rate uint8, o *operator) uint8 {
	if rate == 0 {
		return 0
	}
	rof := o.ksv
	if !o.ksr {
		rof >>= 2
	}
	r := int(rate)*4 + int(rof)
	if r > 63 {
		r = 63
	}
	return uint8(r)
}

// egIncrement returns the attenuation step for a rate at a counter value.
func egIncrement(rate uint8, counter uint32) uint8 {
	if rate >= 48 {
		return egHighRateTable[rate-48][counter&7]
	}
	shift := uint(12 - int(rate>>2))
	if counter&((1<<shift)-1) != 0 {
		return 0
	}
	return egIncrementTable[(rate&3)+1][(counter>>shift)&7]
}

// stepEnvelope advances one operator's envelope by one sample.
func (c *Chip) stepEnvelope(o *operator) {
	if o.egState == egDecay && o.egLevel >= sustainLevel(o.sl) {
		o.egState = egSustain
	}

	var rate uint8
	switch o.egState {
	case egAttack:
		rate = effectiveRate(o.ar, o)
	case egDecay:
		rate = effectiveRate(o.dr, o)
	case egSustain:
		if o.egt {
			return // Held at sustain level until key-off
		}
		rate = effectiveRate(o.rr, o)
	case egRelease:
		rate = effectiveRate(o.rr, o)
	}

	if rate == 0 {
		return
	}
	incr := egIncrement(rate, c.egCounter)
	if incr == 0 {
		return
	}

	if o.egState == egAttack {
		if rate >= 60 {
			o.egLevel = 0
		} else {
			step := (^int32(o.egLevel) * int32(incr)) >> 3
			level := int32(o.egLevel) + step
			if level <= 0 {
				o.egLevel = 0
			} else {
				o.egLevel = uint16(level)
			}
		}
		if o.egLevel == 0 {
			o.egState = egDecay
		}
		return
	}

	o.egLevel += uint16(incr)
	if o.egLevel > 0x1FF {
		o.egLevel = 0x1FF
	}
}

// sustainLevel converts the 4-bit SL field to a 9-bit attenuation level.
// SL 15 is treated as 31 (-93dB).
func sustainLevel(sl uint8) uint16 {
	if sl >= 15 {
		return 0x1F0
	}
	return uint16(sl) << 4
}
