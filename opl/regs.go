package opl

// regSpace covers both OPL3 banks.
const regSpace = 512

// bankSelectReg is a pseudo-register selecting the ADPCM memory bank. It
// is only meaningful on chips with ADPCM, which have a single FM bank.
const bankSelectReg = 0x1F0

// regFile tracks the register image at three points of the write path.
type regFile struct {
	pool    [regSpace]uint8 // Committed to the backend
	pending [regSpace]int16 // Value once the queue drains, -1 unknown
	staged  [regSpace]int16 // Deferred image flushed each tick, -1 unset
	flushed [regSpace]int16 // Staged value last handed to the queue
}

func (r *regFile) reset() {
	for i := range r.pool {
		r.pool[i] = 0
		r.pending[i] = -1
		r.staged[i] = -1
		r.flushed[i] = -1
	}
}

// Poke enqueues one register write. The write is dropped when the chip
// will already hold val once the queue drains.
func (d *Dispatcher) Poke(addr uint16, val uint8) {
	addr &= regSpace - 1
	d.enqueue(addr, val, false)
	d.regs.staged[addr] = int16(val)
	d.regs.flushed[addr] = int16(val)
}

// PokeList enqueues writes in order.
func (d *Dispatcher) PokeList(writes []RegWrite) {
	for _, w := range writes {
		d.Poke(w.Addr, w.Val)
	}
}

// enqueue pushes a write unless it would not change the chip. Strobe
// registers are always written.
func (d *Dispatcher) enqueue(addr uint16, val uint8, pair bool) bool {
	if d.regs.pending[addr] == int16(val) && !d.isStrobe(addr) {
		return false
	}
	d.regs.pending[addr] = int16(val)
	d.queue.push(QueuedWrite{Addr: addr, Val: val, Pair: pair, Stamp: d.samplePos})
	return true
}

// isStrobe reports registers whose writes act on the chip even when the
// value repeats: the ADPCM control and memory data ports.
func (d *Dispatcher) isStrobe(addr uint16) bool {
	return d.layout.ADPCMChan >= 0 && (addr == 0x07 || addr == 0x0F)
}

// write is an immediate write: queued now, committed at the end of the tick.
func (d *Dispatcher) write(addr uint16, val uint8) {
	d.enqueue(addr, val, false)
}

// writePair queues a frequency low/high pair. The low byte is flagged to
// commit with the high byte only when both are emitted.
func (d *Dispatcher) writePair(lo uint16, lv uint8, hi uint16, hv uint8) {
	loDiff := d.regs.pending[lo] != int16(lv)
	hiDiff := d.regs.pending[hi] != int16(hv)
	switch {
	case loDiff && hiDiff:
		d.enqueue(lo, lv, true)
		d.enqueue(hi, hv, false)
	case loDiff:
		d.enqueue(lo, lv, false)
	case hiDiff:
		d.enqueue(hi, hv, false)
	}
}

// stage records a deferred write for the next flush.
func (d *Dispatcher) stage(addr uint16, val uint8) {
	d.regs.staged[addr] = int16(val)
}

// flushStaged queues every staged register that differs from its last
// flushed value, in address order.
func (d *Dispatcher) flushStaged() {
	for a := 0; a < regSpace; a++ {
		s := d.regs.staged[a]
		if s < 0 || s == d.regs.flushed[a] {
			continue
		}
		d.regs.flushed[a] = s
		d.write(uint16(a), uint8(s))
	}
}

// pendingKey reports whether the chip will have the key bit set in a
// $B0 register once the queue drains.
func (d *Dispatcher) pendingKey(addr uint16) bool {
	p := d.regs.pending[addr]
	return p >= 0 && p&0x20 != 0
}

// Commit drains the queue in FIFO order into the active backend and the
// register pool.
func (d *Dispatcher) Commit() {
	for {
		w, ok := d.queue.pop()
		if !ok {
			return
		}
		d.eng.applyWrite(w)
		d.regs.pool[w.Addr] = w.Val
		if d.dumping {
			d.dump = append(d.dump, w)
		}
	}
}

// RegisterPool returns a copy of the committed register image.
func (d *Dispatcher) RegisterPool() []uint8 {
	return append([]uint8(nil), d.regs.pool[:d.layout.PoolSize]...)
}

// RegisterPoolSize returns 512 on OPL3 and 256 otherwise.
func (d *Dispatcher) RegisterPoolSize() int {
	return d.layout.PoolSize
}

// ToggleRegisterDump enables or disables recording of committed writes.
func (d *Dispatcher) ToggleRegisterDump(enable bool) {
	d.dumping = enable
	if !enable {
		d.dump = nil
	}
}

// RegisterWrites returns and clears the recorded writes.
func (d *Dispatcher) RegisterWrites() []QueuedWrite {
	w := d.dump
	d.dump = nil
	return w
}
