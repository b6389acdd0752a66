package ui

import (
	"sync"

	"github.com/user-none/emopl/opl"
)

// Source drives a dispatcher and renders its output, such as a script
// sequencer or a VGM player.
type Source interface {
	Render(bufs [][]int16, length int) int
	Done() bool
}

// Engine owns a dispatcher and its source. The dispatcher is not safe for
// concurrent use, so the render goroutine and callers issuing commands
// both go through the engine's lock. Holding the lock for a whole chunk
// means a Pause that returns has no chunk in flight.
type Engine struct {
	mu   sync.Mutex
	cond *sync.Cond
	d    *opl.Dispatcher
	src  Source
	bufs [][]int16
	mix  []int16

	paused  bool
	stopped bool
}

// NewEngine wraps d and src, rendering at most chunk frames per call.
func NewEngine(d *opl.Dispatcher, src Source, chunk int) *Engine {
	e := &Engine{
		d:    d,
		src:  src,
		bufs: opl.NewOutputBuffers(d.OutputCount(), chunk),
		mix:  make([]int16, 0, 2*chunk),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Render produces up to frames stereo frames. The returned slice is reused
// by the next call. done is set once the source has finished. A paused or
// stopped engine renders nothing.
func (e *Engine) Render(frames int) (stereo []int16, done bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused || e.stopped {
		return e.mix[:0], e.src.Done()
	}
	frames = min(frames, len(e.bufs[0]))
	n := e.src.Render(e.bufs, frames)
	e.mix = opl.MixStereo(e.bufs, n, e.mix[:0])
	return e.mix, e.src.Done()
}

// Do runs fn with exclusive access to the dispatcher.
func (e *Engine) Do(fn func(d *opl.Dispatcher)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.d)
}

// SetCore switches the dispatcher's emulation core between chunks.
func (e *Engine) SetCore(core opl.Core) {
	e.Do(func(d *opl.Dispatcher) { d.SetCore(core) })
}

// LoadSamples rebuilds the dispatcher's sample memory between chunks.
func (e *Engine) LoadSamples(samples [][]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.d.RenderSamples(samples)
}

// Rate returns the dispatcher's output rate.
func (e *Engine) Rate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.d.Rate()
}

// Scope appends a snapshot of a channel's oscilloscope buffer to dst.
func (e *Engine) Scope(ch int, dst []int16) []int16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b := e.d.OscBuffer(ch); b != nil {
		return b.Snapshot(dst)
	}
	return dst
}

// Warnings drains the dispatcher's warnings.
func (e *Engine) Warnings() []opl.Warning {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.d.Warnings()
}

// Pause holds rendering. It never blocks on the render goroutine.
func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// Resume continues after Pause.
func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
	e.cond.Broadcast()
}

// Paused reports whether rendering is held.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

// Stop ends rendering for good and releases any goroutine in Wait.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.mu.Unlock()
	e.cond.Broadcast()
}

// Stopped reports whether Stop was called.
func (e *Engine) Stopped() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopped
}

// Wait blocks while the engine is paused. It returns false once stopped.
func (e *Engine) Wait() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.paused && !e.stopped {
		e.cond.Wait()
	}
	return !e.stopped
}
