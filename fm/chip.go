// Package fm implements the register-level FM engine shared by the Yamaha
// OPL family: YM3526, YM3812, YMF262 and the FM half of the Y8950.
package fm

// Mode selects which register set the engine decodes.
type Mode uint8

const (
	ModeOPL  Mode = iota // YM3526 / Y8950: sine only
	ModeOPL2             // YM3812: 4 waveforms behind WSE
	ModeOPL3             // YMF262: two banks, 8 waveforms, 4-op, 4 outputs
)

// Envelope states
const (
	egAttack  = 0
	egDecay   = 1
	egSustain = 2
	egRelease = 3
)

// Status register bits
const (
	StatusIRQ    = 0x80
	StatusTimer1 = 0x40
	StatusTimer2 = 0x20
)

// Drum indices into Frame.Drum.
const (
	DrumBD = iota
	DrumSD
	DrumTOM
	DrumTOP
	DrumHH
)

// operator holds decoded register state for one of the 36 operator slots.
type operator struct {
	// Register fields
	am   bool  // Tremolo enable
	vib  bool  // Vibrato enable
	egt  bool  // Sustaining envelope (hold at SL)
	ksr  bool  // Key scale rate
	mult uint8 // Frequency multiplier (4-bit)
	ksl  uint8 // Key scale level (2-bit)
	tl   uint8 // Total level (6-bit, 0.75dB steps)
	ar   uint8 // Attack rate (4-bit)
	dr   uint8 // Decay rate (4-bit)
	sl   uint8 // Sustain level (4-bit)
	rr   uint8 // Release rate (4-bit)
	ws   uint8 // Waveform select (3-bit, masked per mode)

	// Phase generator state
	phase uint32 // 19-bit phase accumulator
	ksv   uint8  // 4-bit key scale value of the owning channel
	kslAt uint16 // Key scale attenuation (9-bit units)

	// Envelope generator state
	egState uint8
	egLevel uint16 // 9-bit attenuation (0=full, 0x1FF=silent)
	keyMask uint8  // keyChannel | keyDrum
	key     bool

	prevOut [2]int16 // Previous outputs for feedback
}

// channel holds decoded register state for one 2-op channel.
type channel struct {
	fnum  uint16 // 10-bit F-number
	block uint8  // 3-bit block
	keyOn bool
	fb    uint8 // Feedback (3-bit)
	cnt   bool  // Connection: false=FM, true=AM
	pan   uint8 // C0 bits 7-4: D, C, B, A
}

// Frame is one native sample of engine output.
type Frame struct {
	Out  [4]int32  // Outputs A-D (OPL/OPL2 use A only)
	Ch   [18]int32 // Per channel, before panning
	Drum [5]int32  // Rhythm voices, indexed by DrumBD..DrumHH
}

// Chip implements one OPL-family FM engine.
type Chip struct {
	mode Mode
	regs [512]uint8

	op [36]operator
	ch [18]channel

	wse     bool  // OPL2 waveform select enable ($01 bit 5)
	newMode bool  // OPL3 NEW ($105 bit 0)
	nts     bool  // Note select ($08 bit 6)
	fourOp  uint8 // OPL3 4-op connection mask ($104 bits 5-0)

	// Rhythm ($BD)
	rhythm   bool
	dam      bool
	dvb      bool
	drumKeys uint8

	// Global counters
	egCounter  uint32
	lfoTimer   uint16
	tremoloPos uint8 // 0-209
	tremolo    uint8
	vibratoPos uint8 // 0-7
	noise      uint32

	// Timers
	timer1 timer
	timer2 timer
	status uint8

	sampleCount uint64
}

// New creates an FM engine decoding the given register set.
func New(mode Mode) *Chip {
	c := &Chip{mode: mode}
	c.Reset()
	return c
}

// Mode returns the register set the engine decodes.
func (c *Chip) Mode() Mode {
	return c.mode
}

// Reset returns the engine to its power-on state.
func (c *Chip) Reset() {
	mode := c.mode
	*c = Chip{mode: mode, noise: 1}
	for i := range c.op {
		c.op[i].egState = egRelease
		c.op[i].egLevel = 0x1FF
	}
}

// Channels returns the number of 2-op channels the mode exposes.
func (c *Chip) Channels() int {
	if c.mode == ModeOPL3 {
		return 18
	}
	return 9
}

// slotOffset maps a bank-local slot (0-17) to its operator register offset.
var slotOffset = [18]uint8{0, 1, 2, 3, 4, 5, 8, 9, 10, 11, 12, 13, 16, 17, 18, 19, 20, 21}

// offsetSlot is the inverse of slotOffset. -1 marks offsets with no slot.
var offsetSlot = [32]int8{
	0, 1, 2, 3, 4, 5, -1, -1, 6, 7, 8, 9, 10, 11, -1, -1,
	12, 13, 14, 15, 16, 17, -1, -1, -1, -1, -1, -1, -1, -1, -1, -1,
}

// fourOpPrimary lists the primary channel for each $104 bit.
var fourOpPrimary = [6]int{0, 1, 2, 9, 10, 11}

// SlotOffset returns the operator register offset for an absolute slot
// (0-35). Slots in the second bank carry the 0x100 bank bit.
func SlotOffset(slot int) uint16 {
	off := uint16(slotOffset[slot%18])
	if slot >= 18 {
		off |= 0x100
	}
	return off
}

// ChannelSlots returns the two operator slots of a hardware channel.
func ChannelSlots(ch int) (op1, op2 int) {
	bank := ch / 9
	local := ch % 9
	op1 = bank*18 + (local/3)*6 + local%3
	return op1, op1 + 3
}

// slotChannel returns the hardware channel owning a slot.
func slotChannel(slot int) int {
	bank := slot / 18
	local := slot % 18
	return bank*9 + (local/6)*3 + local%3
}

// Reg returns the last value written to a register.
func (c *Chip) Reg(addr uint16) uint8 {
	return c.regs[addr&0x1FF]
}

// Write applies one register write. On OPL and OPL2 the bank bit is ignored.
func (c *Chip) Write(addr uint16, val uint8) {
	if c.mode != ModeOPL3 {
		addr &= 0xFF
	}
	addr &= 0x1FF
	c.regs[addr] = val

	bank := int(addr >> 8)
	reg := uint8(addr)

	switch {
	case reg == 0x01:
		if bank == 0 && c.mode == ModeOPL2 {
			c.wse = val&0x20 != 0
		}
	case reg == 0x02:
		if bank == 0 {
			c.timer1.period = val
		}
	case reg == 0x03:
		if bank == 0 {
			c.timer2.period = val
		}
	case reg == 0x04:
		if bank == 0 {
			c.writeTimerControl(val)
		} else {
			c.fourOp = val & 0x3F
			c.refreshKeys()
		}
	case reg == 0x05:
		if bank == 1 {
			c.newMode = val&0x01 != 0
			c.refreshKeys()
		}
	case reg == 0x08:
		if bank == 0 {
			c.nts = val&0x40 != 0
		}
	case reg == 0xBD:
		if bank == 0 {
			c.writeRhythm(val)
		}
	case reg >= 0x20 && reg < 0xA0, reg >= 0xE0:
		c.writeOperator(bank, reg, val)
	case reg >= 0xA0 && reg < 0xD0:
		c.writeChannel(bank, reg, val)
	}
}

// writeOperator handles the per-slot register groups $20, $40, $60, $80, $E0.
func (c *Chip) writeOperator(bank int, reg, val uint8) {
	local := offsetSlot[reg&0x1F]
	if local < 0 {
		return
	}
	o := &c.op[bank*18+int(local)]

	switch reg & 0xE0 {
	case 0x20:
		o.am = val&0x80 != 0
		o.vib = val&0x40 != 0
		o.egt = val&0x20 != 0
		o.ksr = val&0x10 != 0
		o.mult = val & 0x0F
	case 0x40:
		o.ksl = val >> 6
		o.tl = val & 0x3F
	case 0x60:
		o.ar = val >> 4
		o.dr = val & 0x0F
	case 0x80:
		o.sl = val >> 4
		o.rr = val & 0x0F
	case 0xE0:
		o.ws = val & 0x07
	}
}

// writeChannel handles the per-channel register groups $A0, $B0, $C0.
func (c *Chip) writeChannel(bank int, reg, val uint8) {
	local := int(reg & 0x0F)
	if local > 8 {
		return
	}
	idx := bank*9 + local
	if idx >= c.Channels() {
		return
	}
	ch := &c.ch[idx]

	switch reg & 0xF0 {
	case 0xA0:
		ch.fnum = (ch.fnum & 0x300) | uint16(val)
	case 0xB0:
		ch.fnum = (ch.fnum & 0x0FF) | (uint16(val&0x03) << 8)
		ch.block = (val >> 2) & 0x07
		ch.keyOn = val&0x20 != 0
		c.refreshKeys()
	case 0xC0:
		ch.fb = (val >> 1) & 0x07
		ch.cnt = val&0x01 != 0
		ch.pan = val >> 4
	}
}

// writeRhythm handles $BD: tremolo/vibrato depth, rhythm enable, drum keys.
func (c *Chip) writeRhythm(val uint8) {
	c.dam = val&0x80 != 0
	c.dvb = val&0x40 != 0
	c.rhythm = val&0x20 != 0
	c.drumKeys = val & 0x1F
	c.refreshKeys()
}

// fourOpRole reports whether a channel is the primary or the secondary
// half of an active 4-op pair.
func (c *Chip) fourOpRole(ch int) (primary, secondary bool) {
	if c.mode != ModeOPL3 || !c.newMode {
		return false, false
	}
	for bit, p := range fourOpPrimary {
		if c.fourOp&(1<<uint(bit)) == 0 {
			continue
		}
		if ch == p {
			return true, false
		}
		if ch == p+3 {
			return false, true
		}
	}
	return false, false
}

// freqChannel returns the channel whose frequency drives a slot.
// Secondary slots of an active 4-op pair follow the primary channel.
func (c *Chip) freqChannel(slot int) int {
	ch := slotChannel(slot)
	if _, sec := c.fourOpRole(ch); sec {
		return ch - 3
	}
	return ch
}

// drumSlotBits maps rhythm key bits ($BD bits 4-0) to the slots they key.
var drumSlotBits = [5]struct {
	bit   uint8
	slots [2]int
}{
	{0x10, [2]int{12, 15}}, // BD
	{0x08, [2]int{16, -1}}, // SD
	{0x04, [2]int{14, -1}}, // TOM
	{0x02, [2]int{17, -1}}, // TOP
	{0x01, [2]int{13, -1}}, // HH
}

// refreshKeys recomputes every slot's key state from the channel key bits,
// the 4-op pairing and the rhythm key bits, applying key-on/off edges.
func (c *Chip) refreshKeys() {
	slots := c.Channels() * 2
	for s := 0; s < slots; s++ {
		var mask uint8
		if c.ch[c.freqChannel(s)].keyOn {
			mask |= keyChannel
		}
		c.op[s].keyMask = mask
	}
	if c.rhythm {
		for _, d := range drumSlotBits {
			if c.drumKeys&d.bit == 0 {
				continue
			}
			for _, s := range d.slots {
				if s >= 0 {
					c.op[s].keyMask |= keyDrum
				}
			}
		}
	}
	for s := 0; s < slots; s++ {
		c.setKey(&c.op[s], c.op[s].keyMask != 0)
	}
}

const (
	keyChannel = 0x01
	keyDrum    = 0x02
)

// setKey applies a key-on or key-off edge to one slot.
func (c *Chip) setKey(o *operator, on bool) {
	if on && !o.key {
		o.key = true
		o.phase = 0
		o.egState = egAttack
		if effectiveRate(o.ar, o) >= 60 {
			o.egLevel = 0
			o.egState = egDecay
		}
	} else if !on && o.key {
		o.key = false
		o.egState = egRelease
	}
}

// waveform returns the effective waveform for a slot in the current mode.
func (c *Chip) waveform(o *operator) uint8 {
	switch c.mode {
	case ModeOPL2:
		if c.wse {
			return o.ws & 0x03
		}
		return 0
	case ModeOPL3:
		if c.newMode {
			return o.ws
		}
		return o.ws & 0x03
	}
	return 0
}

// Clock advances the engine by one native sample and writes the result to f.
func (c *Chip) Clock(f *Frame) {
	*f = Frame{}
	c.sampleCount++

	c.stepTimers()
	c.stepLFO()
	c.stepNoise()

	c.egCounter++
	slots := c.Channels() * 2
	for s := 0; s < slots; s++ {
		c.stepPhase(s)
		c.stepEnvelope(&c.op[s])
	}

	for ch := 0; ch < c.Channels(); ch++ {
		if c.rhythm && ch >= 6 && ch <= 8 {
			continue
		}
		primary, secondary := c.fourOpRole(ch)
		if secondary {
			continue
		}
		var out int32
		if primary {
			out = c.evalFourOp(ch)
		} else {
			out = c.evalTwoOp(ch)
		}
		f.Ch[ch] = out
		c.route(f, ch, out)
	}

	if c.rhythm {
		c.evalRhythm(f)
	}
}

// route adds a channel's output to the outputs enabled by its pan bits.
func (c *Chip) route(f *Frame, ch int, out int32) {
	switch {
	case c.mode != ModeOPL3:
		f.Out[0] += out
	case !c.newMode:
		f.Out[0] += out
		f.Out[1] += out
	default:
		pan := c.ch[ch].pan
		for i := 0; i < 4; i++ {
			if pan&(1<<uint(i)) != 0 {
				f.Out[i] += out
			}
		}
	}
}

// KeyOn reports whether any slot of a hardware channel is keyed.
func (c *Chip) KeyOn(ch int) bool {
	op1, op2 := ChannelSlots(ch)
	return c.op[op1].key || c.op[op2].key
}

// Status returns the timer status register.
func (c *Chip) Status() uint8 {
	return c.status
}

// SampleCount returns the number of native samples clocked since reset.
func (c *Chip) SampleCount() uint64 {
	return c.sampleCount
}
