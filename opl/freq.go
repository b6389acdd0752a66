package opl

import "math"

// maxLinearFreq is F-number 1023 at block 7.
const maxLinearFreq = 1023 << 7

// noteFreq returns the linear frequency (F-number << block) of a note at
// a native rate. Note 57 is A-4, 440Hz.
func noteFreq(note int, rate float64) int {
	hz := 440.0 * math.Pow(2, float64(note-57)/12)
	return int(math.Round(hz * (1 << 20) / rate))
}

// pitchFreq applies a pitch offset in 1/64 semitone steps.
func pitchFreq(base, pitch int) int {
	if pitch == 0 {
		return base
	}
	return int(math.Round(float64(base) * math.Pow(2, float64(pitch)/(12*64))))
}

// toFreq splits a linear frequency into the smallest block that keeps the
// F-number within 10 bits.
func toFreq(freq int) (block uint8, fnum uint16) {
	if freq < 0 {
		freq = 0
	}
	if freq > maxLinearFreq {
		freq = maxLinearFreq
	}
	for block < 7 && freq>>block >= 1024 {
		block++
	}
	return block, uint16(freq >> block)
}

// adpcmDeltaN returns the delta-N step playing a sample recorded at rate
// Hz, transposed by note relative to C-4 and by pitch in 1/64 semitones.
func adpcmDeltaN(rate, note, pitch, nativeRate int) uint16 {
	if rate <= 0 || nativeRate <= 0 {
		return 0
	}
	semis := float64(note-48) + float64(pitch)/64
	d := float64(rate) / float64(nativeRate) * 65536 * math.Pow(2, semis/12)
	if d > 65535 {
		return 65535
	}
	if d < 0 {
		return 0
	}
	return uint16(math.Round(d))
}

// MapVelocity converts a 0-1 velocity to a channel volume. FM channels use
// a logarithmic curve matching the 0.75dB total level steps, the ADPCM
// channel a linear one.
func (d *Dispatcher) MapVelocity(ch int, vel float32) int {
	if ch == d.layout.ADPCMChan {
		return clampInt(int(vel*255), 0, 255)
	}
	if vel <= 0 {
		return 0
	}
	if vel >= 1 {
		return 63
	}
	v := 64 - (56 - math.Log2(float64(vel)*127)*8)
	return clampInt(int(math.Round(v)), 0, 63)
}

// nativeRate returns the chip's sample rate as a float.
func (d *Dispatcher) nativeRate() float64 {
	return float64(d.layout.ClockHz) / float64(d.layout.Divider)
}

// chanNote returns the effective note including arpeggio.
func (d *Dispatcher) chanNote(c *Channel) int {
	if c.macros.arp.active() && d.chanArpFixed(c) {
		return c.MacroArp
	}
	return c.Note + c.Arp + c.MacroArp
}

func (d *Dispatcher) chanArpFixed(c *Channel) bool {
	return c.state.Macros.ArpFixed
}

// refreshBaseFreq recomputes the base frequency from the note.
func (d *Dispatcher) refreshBaseFreq(c *Channel) {
	c.BaseFreq = noteFreq(d.chanNote(c), d.nativeRate())
	c.freqChanged = true
}

// calcFreq updates the frequency register values of a channel.
func (d *Dispatcher) calcFreq(c *Channel) {
	if c.FixedFreq != 0 {
		c.FreqL = uint8(c.FixedFreq)
		c.FreqH = uint8(c.FixedFreq>>8) & 0x1F
		return
	}
	block, fnum := toFreq(pitchFreq(c.BaseFreq, c.Pitch+c.Pitch2))
	c.FreqL = uint8(fnum)
	c.FreqH = block<<2 | uint8(fnum>>8)
}
