// Package opl drives Yamaha OPL-family FM chips from abstract sequencer
// commands. A Dispatcher translates commands into register writes,
// queues and commits them to one of several interchangeable emulation
// cores, and renders audio on demand.
//
// A Dispatcher is not safe for concurrent use. Tick, Dispatch and Acquire
// must be serialized by the caller.
package opl

import (
	"log/slog"

	"github.com/user-none/emopl/fm"
)

// Dispatcher owns one emulated chip and its channel state.
type Dispatcher struct {
	cfg    Config
	layout Layout
	log    *slog.Logger

	chans [maxChans]Channel
	ins   InstrumentSource
	def   *Instrument

	regs  regFile
	queue writeQueue
	eng   engine
	mem   *SampleMemory
	osc   [maxChans]*OscBuffer

	dam, dvb  bool
	drumState uint8

	samplePos   uint64
	resampAccum int
	scratch     [1]frame

	warnings []Warning
	dumping  bool
	dump     []QueuedWrite
}

// New creates a dispatcher and resets the chip. ins may be nil, in which
// case every channel plays DefaultInstrument.
func New(cfg Config, ins InstrumentSource) *Dispatcher {
	cfg.Normalize()
	d := &Dispatcher{
		cfg: cfg,
		ins: ins,
		def: DefaultInstrument(),
		log: cfg.Logger,
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	d.layout = buildLayout(cfg.Chip, cfg.Drums, cfg.ClockHz)
	d.mem = NewSampleMemory(cfg.SampleBanks)
	for i := range d.osc {
		d.osc[i] = newOscBuffer(cfg.OscSize)
	}
	d.Reset()
	return d
}

// buildEngine constructs a core, falling back to ymfm when the requested
// core cannot emulate the chip.
func (d *Dispatcher) buildEngine(core Core) engine {
	e, err := newEngine(core, &d.layout, d.mem)
	if err != nil {
		d.warn(Warning{Kind: WarnCoreFallback, Channel: -1, Sample: -1, Message: err.Error()})
		e = newYMFMCore(&d.layout, d.mem)
	}
	d.cfg.Core = e.core()
	return e
}

// Reset silences the chip, clears all channel state and the write queue,
// and writes the power-on register set.
func (d *Dispatcher) Reset() {
	d.queue.reset()
	d.regs.reset()
	d.eng = d.buildEngine(d.cfg.Core)
	d.dam, d.dvb = d.cfg.DAM, d.cfg.DVB
	d.drumState = 0
	d.resampAccum = 0
	for ch := range d.chans {
		d.chans[ch].reset(d.layout.VolMax(ch))
	}
	for _, o := range d.osc {
		o.Reset()
	}

	switch d.layout.Mode {
	case fm.ModeOPL3:
		d.write(0x105, 0x01)
		d.write(0x104, 0x00)
	case fm.ModeOPL2:
		d.write(0x01, 0x20)
	}
	d.write(0x08, 0x00)
	d.write(0xBD, d.rhythmReg())
	if d.layout.ADPCMChan >= 0 {
		d.write(0x07, 0x01)
		d.write(0x12, 0x00)
		d.write(bankSelectReg, 0x00)
	}
	for hw := 0; hw < d.layout.HWChans; hw++ {
		d.write(0xB0+uint16(hw%9)|uint16(hw/9)<<8, 0x00)
	}
	d.Commit()
	d.log.Debug("opl: reset", "chip", d.layout.Type.String(), "core", d.cfg.Core.String(), "drums", d.layout.Drums)
}

// Close releases the backend. A closed dispatcher still accepts commands
// but renders silence until Reset or SetCore builds a new backend.
func (d *Dispatcher) Close() {
	d.eng = closedCore{was: d.cfg.Core}
	d.queue.reset()
}

// SetCore switches emulation backends. Pending writes are committed first
// and the register pool is replayed into the new core, so channel and
// register state carry over. Envelope and phase positions restart.
func (d *Dispatcher) SetCore(core Core) {
	if core < CoreNuked {
		core = CoreNuked
	}
	if core > CoreLLE {
		core = CoreLLE
	}
	d.Commit()
	d.eng = d.buildEngine(core)
	d.replayPool()
	d.applyPans()
	d.log.Debug("opl: core switched", "core", d.cfg.Core.String())
}

// Core returns the active backend.
func (d *Dispatcher) Core() Core {
	return d.cfg.Core
}

// replayOrder lists mode and global registers written before the
// per-operator image.
var replayOrder = []uint16{0x105, 0x104, 0x01, 0x08, 0x02, 0x03, 0x04}

// isKeyReg reports whether replaying an address could key a voice.
func isKeyReg(addr uint16) bool {
	r := addr & 0xFF
	return (r >= 0xB0 && r <= 0xB8) || addr == 0xBD
}

// replayPool writes the committed register image into the backend.
// Mode registers go first and key registers last so no voice sounds with
// partial parameters. ADPCM control is restored after its addresses.
func (d *Dispatcher) replayPool() {
	size := uint16(d.layout.PoolSize)
	adpcmChip := d.layout.ADPCMChan >= 0
	apply := func(addr uint16) {
		d.eng.applyWrite(QueuedWrite{Addr: addr, Val: d.regs.pool[addr], Stamp: d.samplePos})
	}
	skip := func(addr uint16) bool {
		for _, a := range replayOrder {
			if a == addr {
				return true
			}
		}
		if adpcmChip && (addr == 0x07 || addr == 0x0F) {
			return true
		}
		return isKeyReg(addr)
	}

	for _, a := range replayOrder {
		if a < size {
			apply(a)
		}
	}
	if adpcmChip {
		apply(bankSelectReg)
	}
	for a := uint16(0); a < size; a++ {
		if !skip(a) {
			apply(a)
		}
	}
	if adpcmChip {
		apply(0x07)
	}
	for a := uint16(0); a < size; a++ {
		if isKeyReg(a) && a != 0xBD {
			apply(a)
		}
	}
	apply(0xBD)
}

// applyPans pushes continuous pan levels into backends that use them.
func (d *Dispatcher) applyPans() {
	if d.eng.panModel() != panContinuousModel {
		return
	}
	for ch := 0; ch < d.layout.TotalChans; ch++ {
		d.applyPan(ch)
	}
}

func (d *Dispatcher) applyPan(ch int) {
	c := &d.chans[ch]
	hw := d.layout.freqHW(ch)
	if hw < 0 {
		return
	}
	d.eng.setPan(hw, c.PanL, c.PanR)
	if c.FourOp && d.layout.FourOpCapable(ch) {
		d.eng.setPan(d.layout.HW(ch+1), c.PanL, c.PanR)
	}
}

// SetFlags applies a new configuration. Changing the chip, clock or
// rhythm mode resets the dispatcher.
func (d *Dispatcher) SetFlags(cfg Config) {
	cfg.Normalize()
	if cfg.Logger == nil {
		cfg.Logger = d.cfg.Logger
	}
	old := d.cfg
	d.cfg = cfg
	if cfg.Logger != nil {
		d.log = cfg.Logger
	}
	if cfg.Chip != old.Chip || cfg.ClockHz != old.ClockHz || cfg.Drums != d.layout.Drums || cfg.SampleBanks != old.SampleBanks {
		d.layout = buildLayout(cfg.Chip, cfg.Drums, cfg.ClockHz)
		if cfg.SampleBanks != old.SampleBanks {
			d.mem = NewSampleMemory(cfg.SampleBanks)
		}
		d.Reset()
		return
	}
	if cfg.Core != old.Core {
		d.cfg.Core = old.Core
		d.SetCore(cfg.Core)
	}
	d.dam, d.dvb = cfg.DAM, cfg.DVB
	if cfg.CompatPan != old.CompatPan {
		for ch := range d.chans {
			c := &d.chans[ch]
			c.Pan = panBits(c.PanL, c.PanR, cfg.CompatPan)
			c.panChanged = true
		}
	}
}

// Config returns the active configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Layout returns the active channel layout.
func (d *Dispatcher) Layout() Layout {
	return d.layout
}

// Rate returns the sample rate Acquire produces.
func (d *Dispatcher) Rate() int {
	native := d.layout.NativeRate()
	if d.cfg.Downsample && d.cfg.OutputRate < native {
		return d.cfg.OutputRate
	}
	return native
}

// OutputCount returns the number of chip outputs: 4 on OPL3, 1 otherwise.
func (d *Dispatcher) OutputCount() int {
	return d.layout.Outputs
}

// Channels returns the number of addressable logical channels.
func (d *Dispatcher) Channels() int {
	return d.layout.TotalChans
}

// ChannelState returns a copy of a channel's state.
func (d *Dispatcher) ChannelState(ch int) (Channel, bool) {
	if ch < 0 || ch >= d.layout.TotalChans {
		return Channel{}, false
	}
	return d.chans[ch], true
}

// Pan returns the left and right levels of a channel.
func (d *Dispatcher) Pan(ch int) (left, right uint8) {
	if ch < 0 || ch >= d.layout.TotalChans {
		return 0, 0
	}
	return d.chans[ch].PanL, d.chans[ch].PanR
}

// Paired returns the channels sharing hardware with ch: the companion of
// a 4-op pair, or rhythm voices on the same frequency registers.
func (d *Dispatcher) Paired(ch int) []int {
	if ch < 0 || ch >= d.layout.TotalChans {
		return nil
	}
	if d.layout.FourOpCapable(ch) && d.chans[ch].FourOp {
		return []int{ch + 1}
	}
	drum := d.layout.DrumIndex(ch)
	if drum < 0 {
		return nil
	}
	var out []int
	for i := 0; i < 5; i++ {
		if i != drum && drumFreqHW[i] == drumFreqHW[drum] {
			out = append(out, d.layout.MelodicChans+i)
		}
	}
	return out
}

// OscBuffer returns the oscilloscope ring of a channel.
func (d *Dispatcher) OscBuffer(ch int) *OscBuffer {
	if ch < 0 || ch >= d.layout.TotalChans {
		return nil
	}
	return d.osc[ch]
}

// KeyOffAffectsArp reports whether a key off stops arpeggio. It never does.
func (d *Dispatcher) KeyOffAffectsArp(ch int) bool {
	return false
}

// KeyOffAffectsPorta reports whether a key off stops portamento. It never does.
func (d *Dispatcher) KeyOffAffectsPorta(ch int) bool {
	return false
}

// PortaFloor returns the lowest note portamento may reach.
func (d *Dispatcher) PortaFloor(ch int) int {
	return 0
}

// SetInstruments replaces the instrument source and reloads every
// channel's patch on the next tick.
func (d *Dispatcher) SetInstruments(ins InstrumentSource) {
	d.ins = ins
	d.ForceIns()
}

// instrument resolves an index, falling back to the default patch.
func (d *Dispatcher) instrument(index int) *Instrument {
	if d.ins != nil {
		if ins := d.ins.Instrument(index); ins != nil {
			return ins
		}
	}
	return d.def
}

// loadInstrument copies a channel's instrument into its working state.
func (d *Dispatcher) loadInstrument(ch int) {
	c := &d.chans[ch]
	c.state = *d.instrument(c.Ins)
	c.stateLoaded = true
	c.dirty = true
	c.macros.init(nil)
}

// ForceIns reloads every channel's instrument on the next tick.
func (d *Dispatcher) ForceIns() {
	for ch := 0; ch < d.layout.TotalChans; ch++ {
		d.loadInstrument(ch)
	}
}

// NotifyInsChange reloads channels playing instrument index.
func (d *Dispatcher) NotifyInsChange(index int) {
	for ch := 0; ch < d.layout.TotalChans; ch++ {
		if d.chans[ch].Ins == index {
			d.loadInstrument(ch)
		}
	}
}

// NotifyInsDeletion moves channels off a deleted instrument.
func (d *Dispatcher) NotifyInsDeletion(index int) {
	for ch := 0; ch < d.layout.TotalChans; ch++ {
		if d.chans[ch].Ins == index {
			d.chans[ch].Ins = -1
			d.loadInstrument(ch)
		}
	}
}

// MuteChannel mutes or unmutes a channel without changing its volume.
func (d *Dispatcher) MuteChannel(ch int, mute bool) {
	if ch < 0 || ch >= d.layout.TotalChans {
		return
	}
	d.chans[ch].Muted = mute
	d.chans[ch].volChanged = true
}

// SampleMemory returns the ADPCM sample memory.
func (d *Dispatcher) SampleMemory() *SampleMemory {
	return d.mem
}

// RenderSamples rebuilds sample memory from data indexed by sample
// number. Samples that do not fit are reported as warnings.
func (d *Dispatcher) RenderSamples(samples [][]byte) error {
	err := d.mem.Rebuild(samples)
	for i, s := range samples {
		if s != nil && !d.mem.IsLoaded(i) {
			d.warn(Warning{Kind: WarnOutOfSampleMemory, Channel: -1, Sample: i, Message: "opl: sample does not fit in memory"})
		}
	}
	for ch := range d.chans {
		d.chans[ch].sampleMissing = false
	}
	return err
}

// rhythmReg composes $BD.
func (d *Dispatcher) rhythmReg() uint8 {
	var v uint8
	if d.dam {
		v |= 0x80
	}
	if d.dvb {
		v |= 0x40
	}
	if d.layout.Drums {
		v |= 0x20 | d.drumState&0x1F
	}
	return v
}

// fourOpMask composes $104 from the channels in 4-op mode.
func (d *Dispatcher) fourOpMask() uint8 {
	var m uint8
	for ch := 0; ch < 12; ch += 2 {
		if d.layout.FourOpCapable(ch) && d.chans[ch].FourOp {
			m |= 1 << uint(ch/2)
		}
	}
	return m
}
