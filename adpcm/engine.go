package adpcm

// Memory is the external sample memory the delta-T unit streams from.
type Memory interface {
	ReadMem(addr uint32) uint8
	WriteMem(addr uint32, val uint8)
}

// Control register ($07) bits
const (
	CtrlStart   = 0x80
	CtrlRecord  = 0x40
	CtrlMemData = 0x20
	CtrlRepeat  = 0x10
	CtrlSpOff   = 0x08
	CtrlReset   = 0x01
)

// Status bits reported by the delta-T unit.
const (
	StatusBufReady = 0x08
	StatusEOS      = 0x10
)

// AddressShift converts a register address unit to a byte address.
const AddressShift = 2

// Engine is the Y8950 delta-T ADPCM-B playback unit. It is clocked once
// per native FM sample.
type Engine struct {
	mem Memory

	regs    [0x20]uint8
	control uint8
	start   uint16 // $09/$0A, 4-byte units
	stop    uint16 // $0B/$0C, 4-byte units, inclusive
	deltaN  uint16 // $10/$11
	volume  uint8  // $12

	playing  bool
	addr     uint32 // Current byte address
	lowNib   bool   // Next nibble is the low half of the byte
	pos      uint32 // 16-bit sample step accumulator
	dec      Decoder
	prev     int16
	cur      int16
	status   uint8
	memWrite uint32 // Address for CPU writes through $0F
}

// NewEngine creates a delta-T unit reading from mem.
func NewEngine(mem Memory) *Engine {
	e := &Engine{mem: mem}
	e.Reset()
	return e
}

// Reset stops playback and clears all registers.
func (e *Engine) Reset() {
	mem := e.mem
	*e = Engine{mem: mem}
	e.dec.Reset()
}

// SetMemory replaces the memory callback.
func (e *Engine) SetMemory(mem Memory) {
	e.mem = mem
}

// Write handles the delta-T registers $07-$12. Other addresses are ignored.
func (e *Engine) Write(reg uint8, val uint8) {
	if int(reg) >= len(e.regs) {
		return
	}
	e.regs[reg] = val

	switch reg {
	case 0x07:
		e.writeControl(val)
	case 0x09:
		e.start = (e.start & 0xFF00) | uint16(val)
	case 0x0A:
		e.start = (e.start & 0x00FF) | uint16(val)<<8
	case 0x0B:
		e.stop = (e.stop & 0xFF00) | uint16(val)
	case 0x0C:
		e.stop = (e.stop & 0x00FF) | uint16(val)<<8
	case 0x0F:
		if e.mem != nil && e.control&CtrlMemData != 0 && e.control&CtrlStart == 0 {
			e.mem.WriteMem(e.memWrite, val)
			e.memWrite++
		}
		e.status |= StatusBufReady
	case 0x10:
		e.deltaN = (e.deltaN & 0xFF00) | uint16(val)
	case 0x11:
		e.deltaN = (e.deltaN & 0x00FF) | uint16(val)<<8
	case 0x12:
		e.volume = val
	}
}

// Reg returns the last value written to a delta-T register.
func (e *Engine) Reg(reg uint8) uint8 {
	if int(reg) >= len(e.regs) {
		return 0
	}
	return e.regs[reg]
}

func (e *Engine) writeControl(val uint8) {
	e.control = val
	if val&CtrlReset != 0 {
		e.playing = false
		return
	}
	if val&CtrlStart == 0 {
		e.playing = false
		if val&CtrlMemData != 0 {
			e.memWrite = uint32(e.start) << AddressShift
		}
		return
	}
	if val&CtrlRecord != 0 {
		return
	}
	e.begin()
}

// begin restarts playback from the start address.
func (e *Engine) begin() {
	e.playing = true
	e.addr = uint32(e.start) << AddressShift
	e.lowNib = false
	e.pos = 0
	e.dec.Reset()
	e.prev = 0
	e.cur = 0
	e.status &^= StatusEOS
}

// end returns the last byte address of the programmed range.
func (e *Engine) end() uint32 {
	return (uint32(e.stop)+1)<<AddressShift - 1
}

// Clock advances playback by one native sample and returns the output,
// scaled by the volume register.
func (e *Engine) Clock() int32 {
	if !e.playing || e.mem == nil {
		return 0
	}

	e.pos += uint32(e.deltaN)
	for e.pos >= 0x10000 && e.playing {
		e.pos -= 0x10000
		e.fetch()
	}

	// Linear interpolation between the last two decoded samples.
	frac := int32(e.pos >> 4) // 12-bit fraction
	s := int32(e.prev) + ((int32(e.cur)-int32(e.prev))*frac)>>12
	return (s * int32(e.volume)) >> 8
}

// fetch decodes the next nibble, handling end-of-sample.
func (e *Engine) fetch() {
	if e.addr > e.end() {
		if e.control&CtrlRepeat != 0 {
			e.begin()
		} else {
			e.playing = false
			e.status |= StatusEOS
			e.prev, e.cur = 0, 0
			return
		}
	}

	b := e.mem.ReadMem(e.addr)
	var nib uint8
	if e.lowNib {
		nib = b & 0x0F
		e.addr++
	} else {
		nib = b >> 4
	}
	e.lowNib = !e.lowNib

	e.prev = e.cur
	e.cur = e.dec.Decode(nib)
}

// Playing reports whether a sample is being played.
func (e *Engine) Playing() bool {
	return e.playing
}

// Address returns the current byte read address.
func (e *Engine) Address() uint32 {
	return e.addr
}

// Status returns the end-of-sample and buffer-ready flags.
func (e *Engine) Status() uint8 {
	return e.status
}

// ClearStatus clears the given status bits.
func (e *Engine) ClearStatus(bits uint8) {
	e.status &^= bits
}
