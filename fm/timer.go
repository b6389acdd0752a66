package fm

// timer represents one of the two OPL interval timers.
type timer struct {
	period  uint8  // Loaded preset value
	counter uint16 // Current count, overflows at 256
	running bool
	masked  bool
	sub     uint8 // Native samples since last tick
}

// Timer 1 ticks every 80us (4 native samples), timer 2 every 320us (16).
const (
	timer1Divider = 4
	timer2Divider = 16
)

// writeTimerControl handles register $04.
// Bit 7 resets the IRQ flags and ignores the other bits.
func (c *Chip) writeTimerControl(val uint8) {
	if val&0x80 != 0 {
		c.status = 0
		return
	}
	c.timer1.masked = val&0x40 != 0
	c.timer2.masked = val&0x20 != 0
	c.startTimer(&c.timer1, val&0x01 != 0)
	c.startTimer(&c.timer2, val&0x02 != 0)
}

func (c *Chip) startTimer(t *timer, start bool) {
	if start && !t.running {
		t.counter = uint16(t.period)
		t.sub = 0
	}
	t.running = start
}

// stepTimers advances both timers by one native sample.
func (c *Chip) stepTimers() {
	if c.tickTimer(&c.timer1, timer1Divider) && !c.timer1.masked {
		c.status |= StatusTimer1 | StatusIRQ
	}
	if c.tickTimer(&c.timer2, timer2Divider) && !c.timer2.masked {
		c.status |= StatusTimer2 | StatusIRQ
	}
}

// tickTimer counts one sample and reports an overflow.
func (c *Chip) tickTimer(t *timer, divider uint8) bool {
	if !t.running {
		return false
	}
	t.sub++
	if t.sub < divider {
		return false
	}
	t.sub = 0
	t.counter++
	if t.counter >= 256 {
		t.counter = uint16(t.period)
		return true
	}
	return false
}
