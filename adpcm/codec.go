// Package adpcm implements the Yamaha ADPCM-B 4-bit codec and the delta-T
// playback unit found in the Y8950.
package adpcm

// stepScale maps the magnitude bits of a nibble to a step size multiplier (x/64).
var stepScale = [8]int32{57, 57, 57, 57, 77, 102, 128, 153}

// Step size limits.
const (
	stepMin = 127
	stepMax = 24576
)

// Decoder tracks the predictor state of an ADPCM-B stream.
type Decoder struct {
	acc  int32
	step int32
}

// NewDecoder returns a decoder in its initial state.
func NewDecoder() *Decoder {
	d := &Decoder{}
	d.Reset()
	return d
}

// Reset clears the accumulator and restores the minimum step.
func (d *Decoder) Reset() {
	d.acc = 0
	d.step = stepMin
}

// Decode consumes one nibble and returns the next sample.
func (d *Decoder) Decode(nibble uint8) int16 {
	n := int32(nibble & 0x0F)
	diff := ((2*(n&7) + 1) * d.step) >> 3
	if n&8 != 0 {
		diff = -diff
	}
	d.acc = clampInt32(d.acc+diff, -32768, 32767)
	d.step = clampInt32((d.step*stepScale[n&7])>>6, stepMin, stepMax)
	return int16(d.acc)
}

// Encoder produces ADPCM-B nibbles that a Decoder reproduces.
type Encoder struct {
	dec Decoder
}

// NewEncoder returns an encoder in its initial state.
func NewEncoder() *Encoder {
	e := &Encoder{}
	e.dec.Reset()
	return e
}

// Encode quantizes one sample and returns the nibble.
func (e *Encoder) Encode(sample int16) uint8 {
	delta := int32(sample) - e.dec.acc
	var n uint8
	if delta < 0 {
		n = 8
		delta = -delta
	}
	q := (delta << 2) / e.dec.step
	if q > 7 {
		q = 7
	}
	n |= uint8(q)
	e.dec.Decode(n)
	return n
}

// Encode compresses 16-bit PCM to ADPCM-B. Two samples are packed per byte,
// high nibble first. An odd trailing sample is padded with a zero nibble.
func Encode(pcm []int16) []byte {
	out := make([]byte, EncodedLen(len(pcm)))
	e := NewEncoder()
	for i, s := range pcm {
		n := e.Encode(s)
		if i&1 == 0 {
			out[i>>1] = n << 4
		} else {
			out[i>>1] |= n
		}
	}
	return out
}

// Decode expands ADPCM-B data to 16-bit PCM, two samples per byte.
func Decode(data []byte) []int16 {
	out := make([]int16, 0, len(data)*2)
	d := NewDecoder()
	for _, b := range data {
		out = append(out, d.Decode(b>>4), d.Decode(b&0x0F))
	}
	return out
}

// EncodedLen returns the byte length of n encoded samples.
func EncodedLen(n int) int {
	return (n + 1) / 2
}

// clampInt32 clamps v to [min, max].
func clampInt32(v, min, max int32) int32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
