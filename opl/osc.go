package opl

// DefaultOscSize is the default per-channel oscilloscope length.
const DefaultOscSize = 4096

// OscBuffer is a ring of the most recent output samples of one channel.
type OscBuffer struct {
	data   []int16
	pos    int
	filled bool
}

func newOscBuffer(size int) *OscBuffer {
	return &OscBuffer{data: make([]int16, size)}
}

// Write appends a sample, overwriting the oldest when full.
func (b *OscBuffer) Write(s int16) {
	b.data[b.pos] = s
	b.pos++
	if b.pos == len(b.data) {
		b.pos = 0
		b.filled = true
	}
}

// Len returns the number of valid samples.
func (b *OscBuffer) Len() int {
	if b.filled {
		return len(b.data)
	}
	return b.pos
}

// Snapshot appends the buffered samples to dst, oldest first.
func (b *OscBuffer) Snapshot(dst []int16) []int16 {
	if b.filled {
		dst = append(dst, b.data[b.pos:]...)
	}
	return append(dst, b.data[:b.pos]...)
}

// Reset discards all samples.
func (b *OscBuffer) Reset() {
	clear(b.data)
	b.pos = 0
	b.filled = false
}
