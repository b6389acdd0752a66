package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// ringBufferSamples holds ~170ms of 48kHz stereo.
const ringBufferSamples = 16384

// device is the process-wide oto context. oto permits one context, so the
// first player opened fixes the device rate.
var device struct {
	once sync.Once
	ctx  *oto.Context
	rate int
	err  error
}

func openDevice(rate int) (*oto.Context, error) {
	device.once.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   50 * time.Millisecond,
		})
		if err != nil {
			device.err = err
			return
		}
		<-ready
		device.ctx = ctx
		device.rate = rate
	})
	if device.err != nil {
		return nil, device.err
	}
	if device.rate != rate {
		return nil, fmt.Errorf("audio device already open at %dHz", device.rate)
	}
	return device.ctx, nil
}

// AudioPlayer streams interleaved stereo int16 frames to the audio device.
// Frames are queued into a ring buffer that the oto player pulls from.
type AudioPlayer struct {
	player *oto.Player
	ring   *AudioRingBuffer
	rate   int
}

// NewAudioPlayer opens stereo playback at rate Hz.
func NewAudioPlayer(rate int, volume float64) (*AudioPlayer, error) {
	ctx, err := openDevice(rate)
	if err != nil {
		return nil, fmt.Errorf("oto audio not available: %w", err)
	}

	ring := NewAudioRingBuffer(ringBufferSamples)
	p := ctx.NewPlayer(ring)
	// 100ms of 16-bit stereo
	p.SetBufferSize(rate / 10 * 4)
	p.SetVolume(volume)
	p.Play()

	return &AudioPlayer{player: p, ring: ring, rate: rate}, nil
}

// QueueSamples appends interleaved stereo samples.
func (a *AudioPlayer) QueueSamples(samples []int16) {
	a.ring.Write(samples)
}

// GetBufferLevel returns the bytes queued in the ring buffer and inside
// the oto player. Used for ADT pacing.
func (a *AudioPlayer) GetBufferLevel() int {
	return a.ring.Buffered() + a.player.BufferedSize()
}

// Rate returns the playback rate in Hz.
func (a *AudioPlayer) Rate() int {
	return a.rate
}

// SetVolume sets the playback volume (0.0 = silent, 1.0 = full).
func (a *AudioPlayer) SetVolume(vol float64) {
	a.player.SetVolume(vol)
}

// Pause stops pulling from the ring buffer. Queued audio is kept.
func (a *AudioPlayer) Pause() {
	a.player.Pause()
}

// Resume continues playback after Pause.
func (a *AudioPlayer) Resume() {
	a.player.Play()
}

// Flush discards queued audio that has not reached the player.
func (a *AudioPlayer) Flush() {
	a.ring.Clear()
}

// Close stops playback and releases the player.
func (a *AudioPlayer) Close() {
	a.ring.Close()
	a.player.Close()
}
