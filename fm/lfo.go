package fm

// Tremolo and vibrato share one free-running sample counter.
// Tremolo steps every 64 samples through a 210-step triangle (0-105),
// vibrato steps every 1024 samples through 8 positions.
const (
	tremoloSteps  = 210
	tremoloPeriod = 64
	vibratoPeriod = 1024
)

// stepLFO advances the tremolo and vibrato positions.
func (c *Chip) stepLFO() {
	c.lfoTimer++
	if c.lfoTimer%tremoloPeriod == 0 {
		c.tremoloPos++
		if c.tremoloPos >= tremoloSteps {
			c.tremoloPos = 0
		}
	}
	if c.lfoTimer%vibratoPeriod == 0 {
		c.vibratoPos = (c.vibratoPos + 1) & 7
	}

	tri := c.tremoloPos
	if tri >= tremoloSteps/2 {
		tri = tremoloSteps - tri
	}
	// DAM selects 4.8dB depth, otherwise 1dB.
	if c.dam {
		c.tremolo = tri >> 2
	} else {
		c.tremolo = tri >> 4
	}
}
