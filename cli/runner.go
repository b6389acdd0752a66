// Package cli provides a command-line runner for realtime playback.
// It renders from an engine on a dedicated goroutine paced by the audio
// buffer level.
package cli

import (
	"log/slog"
	"time"

	"github.com/user-none/emopl/ui"
)

// ADT buffer thresholds in bytes, as a fraction of one second of audio.
const (
	adtMinBufferDiv = 10 // 100ms
	adtMaxBufferDiv = 5  // 200ms
)

// chunkRate is the number of render chunks per second.
const chunkRate = 120

// Runner plays an engine's output in realtime.
type Runner struct {
	engine      *ui.Engine
	audioPlayer *ui.AudioPlayer

	done chan struct{}
}

// NewRunner starts playback of e. Audio initialization failure is
// non-fatal; the runner still paces rendering in realtime without sound.
func NewRunner(e *ui.Engine, volume float64, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	player, err := ui.NewAudioPlayer(e.Rate(), volume)
	if err != nil {
		log.Warn("audio initialization failed", "error", err)
	}

	r := &Runner{
		engine:      e,
		audioPlayer: player,
		done:        make(chan struct{}),
	}

	go r.renderLoop()

	return r
}

// Done is closed when the source finishes and its audio has drained, or
// after Close.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Pause suspends rendering and audio output. No chunk renders after it
// returns.
func (r *Runner) Pause() {
	r.engine.Pause()
	if r.audioPlayer != nil {
		r.audioPlayer.Pause()
	}
}

// Resume continues after Pause.
func (r *Runner) Resume() {
	if r.audioPlayer != nil {
		r.audioPlayer.Resume()
	}
	r.engine.Resume()
}

// Close stops rendering, discards queued audio and releases the device.
func (r *Runner) Close() {
	r.engine.Stop()
	<-r.done

	if r.audioPlayer != nil {
		r.audioPlayer.Flush()
		r.audioPlayer.Close()
		r.audioPlayer = nil
	}
}

// renderLoop runs on a dedicated goroutine with ADT.
func (r *Runner) renderLoop() {
	defer close(r.done)

	rate := r.engine.Rate()
	chunk := rate / chunkRate
	chunkTime := time.Duration(float64(time.Second) * float64(chunk) / float64(rate))
	minBuffer := rate * 4 / adtMinBufferDiv
	maxBuffer := rate * 4 / adtMaxBufferDiv
	last := time.Now()

	for {
		if !r.engine.Wait() {
			return
		}

		stereo, done := r.engine.Render(chunk)
		if r.audioPlayer != nil {
			r.audioPlayer.QueueSamples(stereo)
		}
		// Already logged by the dispatcher.
		r.engine.Warnings()
		if done {
			r.drain()
			return
		}

		// ADT sleep
		sleepTime := chunkTime - time.Since(last)
		if r.audioPlayer != nil {
			level := r.audioPlayer.GetBufferLevel()
			if level < minBuffer {
				sleepTime = time.Duration(float64(sleepTime) * 0.9)
			} else if level > maxBuffer {
				sleepTime = time.Duration(float64(sleepTime) * 1.1)
			}
		}
		if sleepTime > time.Millisecond {
			time.Sleep(sleepTime)
		}
		last = time.Now()
	}
}

// drain waits for queued audio to play out.
func (r *Runner) drain() {
	if r.audioPlayer == nil {
		return
	}
	deadline := time.Now().Add(2 * time.Second)
	for r.audioPlayer.GetBufferLevel() > 0 && time.Now().Before(deadline) {
		if r.engine.Stopped() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
