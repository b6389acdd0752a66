package vgm

import (
	"github.com/user-none/emopl/opl"
)

// maxBatch bounds the writes poked between commits, well below the
// dispatcher's queue capacity.
const maxBatch = opl.QueueCapacity / 2

// Player replays a File through a dispatcher, converting the 44.1kHz VGM
// timebase to the dispatcher's output rate.
type Player struct {
	d     *opl.Dispatcher
	f     *File
	loops int // Remaining loops, -1 for forever

	next  int    // Index of the next event
	shift uint64 // VGM samples added by completed loops
	out   uint64 // Output frames rendered
	done  bool

	batch []opl.RegWrite
}

// NewPlayer loads the file's delta-T data blocks and returns a player
// positioned at the start. loops is the number of extra passes over the
// looped section, -1 to loop forever.
func NewPlayer(d *opl.Dispatcher, f *File, loops int) *Player {
	mem := d.SampleMemory()
	for _, b := range f.Blocks {
		for i, v := range b.Data {
			mem.WriteMem(b.Start+uint32(i), v)
		}
	}
	return &Player{d: d, f: f, loops: loops, batch: make([]opl.RegWrite, 0, maxBatch)}
}

// Done reports whether playback reached the end of the log.
func (p *Player) Done() bool {
	return p.done
}

// Position returns the current position in VGM samples, including loops.
func (p *Player) Position() uint64 {
	return p.out * SampleRate / uint64(p.d.Rate())
}

// toOutput converts a VGM sample position to output frames.
func (p *Player) toOutput(s uint64) uint64 {
	return s * uint64(p.d.Rate()) / SampleRate
}

// Render fills length frames of bufs, one slice per chip output, and
// returns the number of frames rendered. Fewer than length frames are
// rendered only at the end of the log.
func (p *Player) Render(bufs [][]int16, length int) int {
	n := 0
	sub := make([][]int16, len(bufs))
	for n < length && !p.done {
		p.pokeDue()
		if p.done {
			break
		}
		step := length - n
		if due := p.toOutput(p.nextSample()) - p.out; due < uint64(step) {
			step = int(due)
		}
		for i := range bufs {
			sub[i] = bufs[i][n:]
		}
		p.d.Acquire(sub, step)
		p.out += uint64(step)
		n += step
	}
	return n
}

// nextSample returns the VGM position of the next event, or of the end
// of the log.
func (p *Player) nextSample() uint64 {
	if p.next < len(p.f.Events) {
		return p.f.Events[p.next].Sample + p.shift
	}
	return p.f.TotalSamples + p.shift
}

// pokeDue queues every event whose time has come and handles the end of
// the log.
func (p *Player) pokeDue() {
	for {
		now := p.out
		for p.next < len(p.f.Events) {
			e := p.f.Events[p.next]
			if p.toOutput(e.Sample+p.shift) > now {
				break
			}
			p.batch = append(p.batch, opl.RegWrite{Addr: e.Addr, Val: e.Val})
			if len(p.batch) == maxBatch {
				p.flush()
			}
			p.next++
		}
		p.flush()
		if p.next < len(p.f.Events) || p.toOutput(p.f.TotalSamples+p.shift) > now {
			return
		}
		if !p.f.HasLoop() || p.loops == 0 || p.f.TotalSamples <= p.f.LoopSample {
			p.done = true
			return
		}
		if p.loops > 0 {
			p.loops--
		}
		p.shift += p.f.TotalSamples - p.f.LoopSample
		p.next = p.f.LoopIndex
	}
}

func (p *Player) flush() {
	if len(p.batch) == 0 {
		return
	}
	p.d.PokeList(p.batch)
	p.d.Commit()
	p.batch = p.batch[:0]
}
