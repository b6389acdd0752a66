package ui

import (
	"io"
	"sync"
)

// AudioRingBuffer is a thread-safe ring of int16 samples implementing
// io.Reader as little-endian bytes. The render goroutine writes samples
// via Write(), and oto's player reads them via Read(). Read blocks when
// empty; Write drops the oldest samples on overflow so the producer never
// stalls.
type AudioRingBuffer struct {
	buf      []int16
	readPos  int
	writePos int
	count    int // Samples buffered
	odd      int // Pending high byte of a half-read sample, -1 if none
	mu       sync.Mutex
	cond     *sync.Cond
	closed   bool
}

// NewAudioRingBuffer creates a ring buffer holding capacity samples.
func NewAudioRingBuffer(capacity int) *AudioRingBuffer {
	rb := &AudioRingBuffer{
		buf: make([]int16, capacity),
		odd: -1,
	}
	rb.cond = sync.NewCond(&rb.mu)
	return rb
}

// Write adds samples to the buffer. Non-blocking; on overflow the oldest
// samples are dropped to make room.
func (rb *AudioRingBuffer) Write(p []int16) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.closed || len(p) == 0 {
		return
	}

	capacity := len(rb.buf)
	if len(p) > capacity {
		p = p[len(p)-capacity:]
	}
	n := len(p)

	if overflow := rb.count + n - capacity; overflow > 0 {
		rb.readPos = (rb.readPos + overflow) % capacity
		rb.count -= overflow
	}

	first := capacity - rb.writePos
	if first >= n {
		copy(rb.buf[rb.writePos:], p)
	} else {
		copy(rb.buf[rb.writePos:], p[:first])
		copy(rb.buf, p[first:])
	}
	rb.writePos = (rb.writePos + n) % capacity
	rb.count += n

	rb.cond.Signal()
}

// Read implements io.Reader. Blocks until data is available or the buffer
// is closed. Returns io.EOF when closed and empty.
func (rb *AudioRingBuffer) Read(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	for rb.count == 0 && rb.odd < 0 {
		if rb.closed {
			return 0, io.EOF
		}
		rb.cond.Wait()
	}

	n := 0
	if rb.odd >= 0 && len(p) > 0 {
		p[0] = byte(rb.odd)
		rb.odd = -1
		n = 1
	}
	capacity := len(rb.buf)
	for n < len(p) && rb.count > 0 {
		s := rb.buf[rb.readPos]
		rb.readPos = (rb.readPos + 1) % capacity
		rb.count--
		p[n] = byte(s)
		n++
		if n == len(p) {
			rb.odd = int(uint8(s >> 8))
			break
		}
		p[n] = byte(s >> 8)
		n++
	}
	return n, nil
}

// Buffered returns the number of bytes currently in the buffer.
func (rb *AudioRingBuffer) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	n := rb.count * 2
	if rb.odd >= 0 {
		n++
	}
	return n
}

// Clear resets the buffer, discarding all data.
func (rb *AudioRingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.readPos = 0
	rb.writePos = 0
	rb.count = 0
	rb.odd = -1
}

// Close signals shutdown. Subsequent Reads return io.EOF once the buffer
// is empty. Unblocks any goroutines waiting in Read.
func (rb *AudioRingBuffer) Close() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.closed = true
	rb.cond.Broadcast()
}
