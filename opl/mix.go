package opl

// MixStereo folds count output buffers into interleaved stereo. One
// output is duplicated to both sides; four outputs mix A+C left and
// B+D right.
func MixStereo(bufs [][]int16, n int, dst []int16) []int16 {
	for i := 0; i < n; i++ {
		var l, r int32
		switch len(bufs) {
		case 0:
		case 1:
			l = int32(bufs[0][i])
			r = l
		case 2, 3:
			l = int32(bufs[0][i])
			r = int32(bufs[1][i])
		default:
			l = int32(bufs[0][i]) + int32(bufs[2][i])
			r = int32(bufs[1][i]) + int32(bufs[3][i])
		}
		dst = append(dst, int16(clampInt32(l, -32768, 32767)), int16(clampInt32(r, -32768, 32767)))
	}
	return dst
}

// NewOutputBuffers allocates one buffer per chip output.
func NewOutputBuffers(outputs, length int) [][]int16 {
	bufs := make([][]int16, outputs)
	for i := range bufs {
		bufs[i] = make([]int16, length)
	}
	return bufs
}
