package opl

import (
	"fmt"

	"github.com/user-none/emopl/adpcm"
)

// ADPCM channel note center: a sample plays at its recorded rate on C-4.
const sampleCenterNote = 48

// useSample takes the sample settings of an instrument.
func (d *Dispatcher) useSample(c *Channel, ins *Instrument) {
	if ins.Sample >= 0 {
		c.Sample = ins.Sample
	}
	c.sampleRate = ins.SampleRate
	if c.sampleRate <= 0 {
		c.sampleRate = defaultSampleRate
	}
	c.sampleLoop = ins.SampleLoop
}

// checkResident flags and reports a channel whose sample is not in memory.
func (d *Dispatcher) checkResident(ch int) {
	c := &d.chans[ch]
	c.sampleMissing = c.Sample >= 0 && !d.mem.IsLoaded(c.Sample)
	if c.sampleMissing {
		d.warn(Warning{
			Kind:    WarnSampleNotResident,
			Channel: ch,
			Sample:  c.Sample,
			Message: fmt.Sprintf("opl: sample %d is not loaded", c.Sample),
		})
	}
}

// sampleTrigger starts a sample at a rate in Hz, or the instrument's rate
// when rate is 0.
func (d *Dispatcher) sampleTrigger(ch, sample, rate int) {
	c := &d.chans[ch]
	if !c.stateLoaded {
		d.loadInstrument(ch)
	}
	d.useSample(c, &c.state)
	c.Sample = sample
	if rate > 0 {
		c.sampleRate = rate
	}
	d.checkResident(ch)
	c.Note = sampleCenterNote
	c.Arp, c.MacroArp = 0, 0
	c.freqChanged = true
	c.keyOn = true
	c.Active = true
	c.volChanged = true
}

// tickADPCM queues the delta-T writes of the ADPCM channel.
func (d *Dispatcher) tickADPCM(ch int) {
	c := &d.chans[ch]
	if c.volChanged {
		d.write(0x12, d.adpcmVolume(c))
		c.volChanged = false
	}
	if c.keyOff {
		d.write(0x07, adpcm.CtrlReset)
		c.keyOff = false
	}
	if c.freqChanged {
		n := adpcmDeltaN(c.sampleRate, d.chanNote(c), c.Pitch+c.Pitch2, d.layout.NativeRate())
		d.write(0x10, uint8(n))
		d.write(0x11, uint8(n>>8))
		c.freqChanged = false
	}
	if c.keyOn {
		d.startSample(ch)
		c.keyOn = false
	}
}

func (d *Dispatcher) adpcmVolume(c *Channel) uint8 {
	if c.Muted {
		return 0
	}
	return uint8(clampInt(c.OutVol, 0, 255))
}

// startSample programs the address range and starts playback. The bank
// select is written immediately before the range.
func (d *Dispatcher) startSample(ch int) {
	c := &d.chans[ch]
	off, ok := d.mem.Offset(c.Sample)
	if !ok {
		d.write(0x07, adpcm.CtrlReset)
		return
	}
	length := max(d.mem.Length(c.Sample), 1)
	local := off % BankSize
	start := local >> adpcm.AddressShift
	end := (local + length - 1) >> adpcm.AddressShift

	d.write(bankSelectReg, uint8(off/BankSize))
	d.write(0x09, uint8(start))
	d.write(0x0A, uint8(start>>8))
	d.write(0x0B, uint8(end))
	d.write(0x0C, uint8(end>>8))
	d.write(0x12, d.adpcmVolume(c))

	ctrl := uint8(adpcm.CtrlStart | adpcm.CtrlMemData)
	if c.sampleLoop {
		ctrl |= adpcm.CtrlRepeat
	}
	d.write(0x07, adpcm.CtrlReset)
	d.write(0x07, ctrl)
}
