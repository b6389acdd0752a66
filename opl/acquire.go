package opl

// Acquire commits pending writes and renders length frames into buf, one
// slice per chip output. Each slice must hold at least length samples.
// Per channel levels are copied into the oscilloscope buffers.
func (d *Dispatcher) Acquire(buf [][]int16, length int) {
	d.Commit()
	outs := min(d.OutputCount(), len(buf))
	total := d.layout.TotalChans
	for i := 0; i < length; i++ {
		f := d.nextFrame()
		for o := 0; o < outs; o++ {
			buf[o][i] = int16(clampInt32(f.out[o], -32768, 32767))
		}
		for ch := 0; ch < total; ch++ {
			d.osc[ch].Write(int16(clampInt32(f.ch[ch], -32768, 32767)))
		}
	}
}

// nextFrame renders native samples until one output frame is due.
// Downsampling keeps a Bresenham accumulator so the output rate is exact
// over time.
func (d *Dispatcher) nextFrame() *frame {
	native := d.layout.NativeRate()
	out := d.cfg.OutputRate
	if !d.cfg.Downsample || out >= native {
		d.renderNative()
		return &d.scratch[0]
	}
	for {
		d.renderNative()
		d.resampAccum += out
		if d.resampAccum >= native {
			d.resampAccum -= native
			return &d.scratch[0]
		}
	}
}

func (d *Dispatcher) renderNative() {
	d.eng.advance(d.scratch[:])
	d.samplePos++
}

// SamplePosition returns the number of native samples rendered.
func (d *Dispatcher) SamplePosition() uint64 {
	return d.samplePos
}
