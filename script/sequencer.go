package script

import (
	"fmt"

	"github.com/user-none/emopl/opl"
)

const maxChans = 32

// Sequencer plays a Song through a dispatcher, one tick at a time.
// Portamento commands repeat every tick until the target is reached.
type Sequencer struct {
	d    *opl.Dispatcher
	song *Song

	pos  int // Next step
	tick int

	porta   [maxChans]opl.Command
	sliding [maxChans]bool

	frame     uint64 // Output frames rendered
	nextFrame uint64 // Frame of the next tick
}

// NewSequencer installs the song's instruments and samples. When some
// samples do not fit in sample memory the error is returned alongside a
// usable sequencer; triggering those samples plays silence.
func NewSequencer(d *opl.Dispatcher, song *Song) (*Sequencer, error) {
	d.SetInstruments(song.Instruments)
	s := &Sequencer{d: d, song: song}
	if len(song.Samples) > 0 {
		if err := d.RenderSamples(song.Samples); err != nil {
			return s, fmt.Errorf("script: loading samples: %w", err)
		}
	}
	return s, nil
}

// Tick returns the number of ticks played.
func (s *Sequencer) Tick() int {
	return s.tick
}

// Done reports whether every step has been issued and the final wait has
// elapsed.
func (s *Sequencer) Done() bool {
	return s.pos >= len(s.song.Steps) && s.tick > s.song.Ticks
}

// Step issues the commands of the current tick, advances portamento and
// runs the dispatcher's tick.
func (s *Sequencer) Step() {
	steps := s.song.Steps
	for s.pos < len(steps) && steps[s.pos].Tick <= s.tick {
		cmd := steps[s.pos].Cmd
		s.pos++
		switch cmd.Kind {
		case opl.CmdPortamento:
			if cmd.Ch >= 0 && cmd.Ch < maxChans {
				s.porta[cmd.Ch] = cmd
				s.sliding[cmd.Ch] = true
			}
			continue
		case opl.CmdNoteOn, opl.CmdLegato:
			if cmd.Ch >= 0 && cmd.Ch < maxChans {
				s.sliding[cmd.Ch] = false
			}
		case opl.CmdReset:
			s.sliding = [maxChans]bool{}
		}
		s.d.Dispatch(cmd)
	}
	for ch := range s.sliding {
		if s.sliding[ch] && s.d.Dispatch(s.porta[ch]) != opl.Accepted {
			s.sliding[ch] = false
		}
	}
	s.d.Tick(true)
	s.tick++
}

// tickFrame returns the output frame at which tick n starts.
func (s *Sequencer) tickFrame(n int) uint64 {
	return uint64(float64(n) * float64(s.d.Rate()) / s.d.Config().TickRate)
}

// Render fills length frames of bufs, one slice per chip output, running
// ticks at the configured tick rate. It returns the frames rendered,
// fewer than length only once the song is done.
func (s *Sequencer) Render(bufs [][]int16, length int) int {
	n := 0
	sub := make([][]int16, len(bufs))
	for n < length {
		if s.frame >= s.nextFrame {
			if s.Done() {
				break
			}
			s.Step()
			s.nextFrame = s.tickFrame(s.tick)
			continue
		}
		step := min(uint64(length-n), s.nextFrame-s.frame)
		for i := range bufs {
			sub[i] = bufs[i][n:]
		}
		s.d.Acquire(sub, int(step))
		s.frame += step
		n += int(step)
	}
	return n
}
