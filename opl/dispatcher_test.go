package opl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user-none/emopl/fm"
)

func newTestDispatcher(t *testing.T, chip ChipType, core Core, ins InstrumentSource) *Dispatcher {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Chip = chip
	cfg.Core = core
	return New(cfg, ins)
}

func peak(buf []int16) int {
	m := 0
	for _, s := range buf {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}

func TestNoteOnA4(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	require.Equal(t, Accepted, d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57}))
	d.Tick(true)

	pool := d.RegisterPool()
	assert.Equal(t, uint8(0x44), pool[0xA0], "F-number low")
	assert.Equal(t, uint8(0x32), pool[0xB0], "key on, block 4, F-number high")

	bufs := NewOutputBuffers(d.OutputCount(), 1024)
	d.Acquire(bufs, 1024)
	assert.Greater(t, peak(bufs[0]), 0, "note should be audible")
}

func TestRegisterPoolSize(t *testing.T) {
	assert.Equal(t, 256, newTestDispatcher(t, ChipYM3812, CoreNuked, nil).RegisterPoolSize())
	assert.Equal(t, 256, newTestDispatcher(t, ChipY8950, CoreYMFM, nil).RegisterPoolSize())
	assert.Equal(t, 512, newTestDispatcher(t, ChipYMF262, CoreNuked, nil).RegisterPoolSize())
}

func TestOutputCount(t *testing.T) {
	assert.Equal(t, 1, newTestDispatcher(t, ChipYM3526, CoreNuked, nil).OutputCount())
	assert.Equal(t, 4, newTestDispatcher(t, ChipYMF262, CoreNuked, nil).OutputCount())
}

func TestResetWritesModeRegisters(t *testing.T) {
	d := newTestDispatcher(t, ChipYMF262, CoreNuked, nil)
	pool := d.RegisterPool()
	assert.Equal(t, uint8(0x01), pool[0x105], "OPL3 NEW")

	d = newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	assert.Equal(t, uint8(0x20), d.RegisterPool()[0x01], "OPL2 waveform select enable")
}

func TestNoOpSuppression(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 60})
	d.Tick(true)

	d.ToggleRegisterDump(true)
	d.Tick(true)
	assert.Empty(t, d.RegisterWrites(), "unchanged state must not emit writes")

	d.Poke(0x20, 0x55)
	d.Poke(0x20, 0x55)
	d.Commit()
	assert.Len(t, d.RegisterWrites(), 1, "repeated poke should be elided")
}

func TestNoteOffClearsKeyOnly(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 3, Value: 48})
	d.Tick(true)
	before := append([]uint8(nil), d.RegisterPool()...)

	d.Dispatch(Command{Kind: CmdNoteOff, Ch: 3})
	d.Tick(true)
	after := d.RegisterPool()

	assert.Zero(t, after[0xB3]&0x20, "key bit should be clear")
	assert.Equal(t, before[0xB3]&^0x20, after[0xB3], "block and F-number keep their values")
	for a := range before {
		if a == 0xB3 {
			continue
		}
		assert.Equalf(t, before[a], after[a], "register %02X changed", a)
	}
}

func TestNoteOnOffSameTick(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57})
	d.Dispatch(Command{Kind: CmdNoteOff, Ch: 0})
	d.Tick(true)

	pool := d.RegisterPool()
	assert.Zero(t, pool[0xB0]&0x20)
	assert.Equal(t, uint8(0x44), pool[0xA0], "frequency from the note on still lands")
}

func TestOutOfRangeChannelRejected(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.ToggleRegisterDump(true)
	assert.Equal(t, Rejected, d.Dispatch(Command{Kind: CmdNoteOn, Ch: 9, Value: 60}))
	assert.Equal(t, Rejected, d.Dispatch(Command{Kind: CmdVolume, Ch: -1, Value: 10}))
	assert.Equal(t, 0, d.queue.len())
	d.Commit()
	assert.Empty(t, d.RegisterWrites())
}

func TestRegisterPokeValidates(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	assert.Equal(t, Rejected, d.Dispatch(Command{Kind: CmdRegisterPoke, Value: 0x100, Value2: 1}))
	assert.Equal(t, Rejected, d.Dispatch(Command{Kind: CmdRegisterPoke, Value: 0x20, Value2: 0x1FF}))
	assert.Equal(t, Accepted, d.Dispatch(Command{Kind: CmdRegisterPoke, Value: 0x20, Value2: 0x21}))
	d.Commit()
	assert.Equal(t, uint8(0x21), d.RegisterPool()[0x20])
}

func TestSetCoreRoundTrip(t *testing.T) {
	for _, chip := range []ChipType{ChipYM3812, ChipYMF262} {
		d := newTestDispatcher(t, chip, CoreNuked, nil)
		d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57})
		d.Dispatch(Command{Kind: CmdNoteOn, Ch: 4, Value: 64})
		d.Dispatch(Command{Kind: CmdPanning, Ch: 4, Value: 255, Value2: 0})
		d.Tick(true)
		before := append([]uint8(nil), d.RegisterPool()...)

		for _, core := range []Core{CoreYMFM, CoreLLE, CoreNuked} {
			d.SetCore(core)
			assert.Equal(t, core, d.Core())
			assert.Equal(t, before, d.RegisterPool(), "%s %s: pool must survive a core switch", chip, core)
		}

		// The new core holds the same image once its writes land.
		d.SetCore(CoreYMFM)
		y := d.eng.(*ymfmCore)
		for a := 0; a < d.RegisterPoolSize(); a++ {
			assert.Equalf(t, before[a], y.chip.Reg(uint16(a)), "%s: core register %03X", chip, a)
		}
	}
}

func TestRegisterPoolIsACopy(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57})
	d.Tick(true)

	p := d.RegisterPool()
	p[0xB0] = 0
	assert.Equal(t, uint8(0x32), d.RegisterPool()[0xB0])

	d.SetCore(CoreYMFM)
	y := d.eng.(*ymfmCore)
	assert.Equal(t, uint8(0x32), y.chip.Reg(0xB0), "replay must use the committed image")
}

func TestSetCoreKeepsSounding(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57})
	d.Tick(true)
	d.SetCore(CoreYMFM)

	bufs := NewOutputBuffers(1, 512)
	d.Acquire(bufs, 512)
	assert.Greater(t, peak(bufs[0]), 0)
}

func TestClosedDispatcherIsSilent(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57})
	d.Tick(true)
	d.Close()

	bufs := NewOutputBuffers(1, 64)
	require.NotPanics(t, func() {
		d.Dispatch(Command{Kind: CmdNoteOn, Ch: 1, Value: 60})
		d.Tick(true)
		d.Acquire(bufs, 64)
	})
	assert.Zero(t, peak(bufs[0]))

	d.SetCore(CoreNuked)
	d.Acquire(bufs, 64)
	assert.Greater(t, peak(bufs[0]), 0, "SetCore revives a closed dispatcher")
}

func TestCoreFallback(t *testing.T) {
	d := newTestDispatcher(t, ChipY8950, CoreNuked, nil)
	assert.Equal(t, CoreYMFM, d.Core())
	w := d.Warnings()
	require.NotEmpty(t, w)
	assert.Equal(t, WarnCoreFallback, w[0].Kind)

	d = newTestDispatcher(t, ChipYM3526, CoreLLE, nil)
	assert.Equal(t, CoreYMFM, d.Core(), "LLE has no OPL model")
}

func TestHardResetPulsesKey(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57})
	d.Tick(true)

	d.ToggleRegisterDump(true)
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57})
	d.Tick(true)
	assert.Empty(t, d.RegisterWrites(), "retrigger without hard reset keeps the key held")

	d.Dispatch(Command{Kind: CmdHardReset, Ch: 0, Value: 1})
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57})
	d.Tick(true)
	w := d.RegisterWrites()
	require.Len(t, w, 2)
	assert.Equal(t, QueuedWrite{Addr: 0xB0, Val: 0x12, Stamp: w[0].Stamp}, w[0])
	assert.Equal(t, QueuedWrite{Addr: 0xB0, Val: 0x32, Stamp: w[1].Stamp}, w[1])
}

func TestInstrumentChangeMidNote(t *testing.T) {
	a := DefaultInstrument()
	b := DefaultInstrument()
	b.Op[0].TL = 20
	b.Op[0].MULT = 3
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, InstrumentList{a, b})

	d.Dispatch(Command{Kind: CmdInstrument, Ch: 0, Value: 0})
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 60})
	d.Tick(true)

	d.ToggleRegisterDump(true)
	d.Dispatch(Command{Kind: CmdInstrument, Ch: 0, Value: 1})
	d.Tick(true)
	w := d.RegisterWrites()

	addrs := make([]uint16, 0, len(w))
	for _, x := range w {
		addrs = append(addrs, x.Addr)
	}
	assert.ElementsMatch(t, []uint16{0x20, 0x40}, addrs, "only the changed modulator registers")
}

func TestMuteSilencesCarrier(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 1, Value: 60})
	d.Tick(true)
	_, car := fm.ChannelSlots(1)
	off := fm.SlotOffset(car)
	assert.Equal(t, uint8(0), d.RegisterPool()[0x40+off]&0x3F)

	d.Dispatch(Command{Kind: CmdMute, Ch: 1, Value: 1})
	d.Tick(true)
	assert.Equal(t, uint8(63), d.RegisterPool()[0x40+off]&0x3F)

	d.Dispatch(Command{Kind: CmdMute, Ch: 1, Value: 0})
	d.Tick(true)
	assert.Equal(t, uint8(0), d.RegisterPool()[0x40+off]&0x3F)
}

func TestVolumeScalesCarrierTL(t *testing.T) {
	ins := DefaultInstrument()
	ins.Op[1].TL = 10
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, InstrumentList{ins})
	d.Dispatch(Command{Kind: CmdInstrument, Ch: 0, Value: 0})
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 60})
	d.Dispatch(Command{Kind: CmdVolume, Ch: 0, Value: 43})
	d.Tick(true)

	_, car := fm.ChannelSlots(0)
	mod, _ := fm.ChannelSlots(0)
	pool := d.RegisterPool()
	assert.Equal(t, uint8(30), pool[0x40+fm.SlotOffset(car)]&0x3F, "63-((63-10)+43-63)")
	assert.Equal(t, uint8(63), pool[0x40+fm.SlotOffset(mod)]&0x3F, "modulator keeps its level")

	assert.Equal(t, 63, d.Dispatch(Command{Kind: CmdGetVolMax, Ch: 0}))
}

func TestPortamentoReachesTarget(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57})

	res := Accepted
	for i := 0; i < 1000 && res == Accepted; i++ {
		res = d.Dispatch(Command{Kind: CmdPortamento, Ch: 0, Value: 4, Value2: 60})
	}
	assert.Equal(t, PortaTarget, res)
	st, _ := d.ChannelState(0)
	assert.Equal(t, 60, st.Note)
	assert.False(t, st.InPorta)
	assert.Equal(t, noteFreq(60, d.nativeRate()), st.BaseFreq)
}

func TestFourOpPairing(t *testing.T) {
	ins := DefaultInstrument()
	ins.Ops = 4
	ins.ALG = 1
	ins.Op[2].MULT = 5
	ins.Op[3].MULT = 7
	d := newTestDispatcher(t, ChipYMF262, CoreNuked, InstrumentList{ins})

	assert.Equal(t, Rejected, d.Dispatch(Command{Kind: CmdFourOp, Ch: 1, Value: 1}), "odd channel")
	assert.Equal(t, Rejected, d.Dispatch(Command{Kind: CmdFourOp, Ch: 12, Value: 1}), "beyond the 4-op channels")

	d.Dispatch(Command{Kind: CmdInstrument, Ch: 2, Value: 0})
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 2, Value: 60})
	d.Tick(true)

	pool := d.RegisterPool()
	assert.Equal(t, uint8(0x02), pool[0x104], "pair (2,3) is mask bit 1")
	assert.Equal(t, []int{3}, d.Paired(2))
	assert.Equal(t, Rejected, d.Dispatch(Command{Kind: CmdNoteOn, Ch: 3, Value: 60}), "companion is unaddressable")

	// Logical 2/3 are hardware channels 1 and 4; operators 3 and 4 live on channel 4.
	s3, s4 := fm.ChannelSlots(4)
	assert.Equal(t, uint8(5), pool[0x20+fm.SlotOffset(s3)]&0x0F)
	assert.Equal(t, uint8(7), pool[0x20+fm.SlotOffset(s4)]&0x0F)
	assert.Equal(t, uint8(0), pool[0xC1]&1, "CNT1 of algorithm 1")
	assert.Equal(t, uint8(1), pool[0xC4]&1, "CNT2 of algorithm 1")

	d.Dispatch(Command{Kind: CmdFourOp, Ch: 2, Value: 0})
	d.Tick(true)
	assert.Equal(t, uint8(0), d.RegisterPool()[0x104])
	assert.Equal(t, Accepted, d.Dispatch(Command{Kind: CmdNoteOn, Ch: 3, Value: 60}))
}

func TestDrumMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Drums = true
	d := New(cfg, nil)
	assert.Equal(t, 11, d.Channels())
	assert.Equal(t, uint8(0x20), d.RegisterPool()[0xBD])

	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 6, Value: 36}) // BD
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 10, Value: 60}) // HH
	d.Tick(true)
	assert.Equal(t, uint8(0x31), d.RegisterPool()[0xBD])
	assert.Zero(t, d.RegisterPool()[0xB6]&0x20, "rhythm channels are keyed through $BD")
	assert.Equal(t, []int{7}, d.Paired(10), "HH shares channel 7 with SD")

	d.Dispatch(Command{Kind: CmdNoteOff, Ch: 6})
	d.Tick(true)
	assert.Equal(t, uint8(0x21), d.RegisterPool()[0xBD])

	d.Dispatch(Command{Kind: CmdDrumMode, Value: 0})
	d.Tick(true)
	assert.Equal(t, 9, d.Channels())
	assert.Equal(t, uint8(0x00), d.RegisterPool()[0xBD])
}

func TestDrumModeOPL3Layout(t *testing.T) {
	d := newTestDispatcher(t, ChipYMF262, CoreNuked, nil)
	assert.Equal(t, 18, d.Channels())
	d.Dispatch(Command{Kind: CmdDrumMode, Value: 1})
	assert.Equal(t, 20, d.Channels())
	l := d.Layout()
	assert.Equal(t, 15, l.MelodicChans)
	assert.Equal(t, fm.DrumBD, l.DrumIndex(15))
	assert.Equal(t, fm.DrumHH, l.DrumIndex(19))
	assert.Equal(t, 17, l.HW(14))
}

func TestFixedDrums(t *testing.T) {
	ins := DefaultInstrument()
	ins.FixedDrums = true
	ins.KickFreq = 2<<10 | 0x155
	cfg := DefaultConfig()
	cfg.Drums = true
	d := New(cfg, InstrumentList{ins})
	d.Dispatch(Command{Kind: CmdInstrument, Ch: 6, Value: 0})
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 6, Value: 70})
	d.Tick(true)
	assert.Equal(t, uint8(0x55), d.RegisterPool()[0xA6])
	assert.Equal(t, uint8(0x09), d.RegisterPool()[0xB6])
}

func TestFMLFO(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdFMLFO, Value: 3})
	d.Tick(true)
	assert.Equal(t, uint8(0xC0), d.RegisterPool()[0xBD])
}

func TestFMParam(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 60})
	d.Dispatch(Command{Kind: CmdFMParam, Ch: 0, Value: int(ParamAR), Op: 0, Value2: 9})
	d.Dispatch(Command{Kind: CmdFMParam, Ch: 0, Value: int(ParamFB), Op: -1, Value2: 5})
	assert.Equal(t, Rejected, d.Dispatch(Command{Kind: CmdFMParam, Ch: 0, Value: int(ParamAR), Op: 4, Value2: 1}))
	d.Tick(true)
	mod, _ := fm.ChannelSlots(0)
	assert.Equal(t, uint8(9), d.RegisterPool()[0x60+fm.SlotOffset(mod)]>>4)
	assert.Equal(t, uint8(5), (d.RegisterPool()[0xC0]>>1)&7)
}

func TestPanningBits(t *testing.T) {
	d := newTestDispatcher(t, ChipYMF262, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdPanning, Ch: 0, Value: 255, Value2: 0})
	d.Tick(true)
	assert.Equal(t, uint8(PanA), d.RegisterPool()[0xC0]>>4)
	l, r := d.Pan(0)
	assert.Equal(t, uint8(255), l)
	assert.Equal(t, uint8(0), r)

	cfg := d.Config()
	cfg.CompatPan = true
	d.SetFlags(cfg)
	d.Tick(true)
	assert.Equal(t, uint8(PanA|PanC), d.RegisterPool()[0xC0]>>4)
}

func TestContinuousPanReachesCore(t *testing.T) {
	d := newTestDispatcher(t, ChipYMF262, CoreYMFM, nil)
	d.Dispatch(Command{Kind: CmdPanning, Ch: 1, Value: 40, Value2: 200})
	d.Tick(true)
	y := d.eng.(*ymfmCore)
	hw := d.layout.HW(1)
	assert.Equal(t, uint8(40), y.panL[hw])
	assert.Equal(t, uint8(200), y.panR[hw])

	d.SetCore(CoreNuked)
	d.SetCore(CoreYMFM)
	y = d.eng.(*ymfmCore)
	assert.Equal(t, uint8(40), y.panL[hw], "pans are reapplied after a core switch")
}

func TestVolumeMacro(t *testing.T) {
	ins := DefaultInstrument()
	ins.Macros.Vol = NewMacro([]int{63, 40, 20}, -1, -1)
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, InstrumentList{ins})
	d.Dispatch(Command{Kind: CmdInstrument, Ch: 0, Value: 0})
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 60})

	_, car := fm.ChannelSlots(0)
	tl := func() uint8 { return d.RegisterPool()[0x40+fm.SlotOffset(car)] & 0x3F }
	d.Tick(true)
	assert.Equal(t, uint8(0), tl())
	d.Tick(true)
	assert.Equal(t, uint8(23), tl())
	d.Tick(true)
	assert.Equal(t, uint8(43), tl())
	d.Tick(true)
	assert.Equal(t, uint8(43), tl(), "finished macro holds its last value")

	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 60})
	d.Tick(false)
	assert.Equal(t, uint8(43), tl(), "macros only advance on system ticks")
}

func TestVolumeAfterMacroEnds(t *testing.T) {
	ins := DefaultInstrument()
	ins.Macros.Vol = NewMacro([]int{63, 40, 20}, -1, -1)
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, InstrumentList{ins})
	d.Dispatch(Command{Kind: CmdInstrument, Ch: 0, Value: 0})
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 60})

	_, car := fm.ChannelSlots(0)
	tl := func() uint8 { return d.RegisterPool()[0x40+fm.SlotOffset(car)] & 0x3F }
	for i := 0; i < 4; i++ {
		d.Tick(true)
	}
	require.Equal(t, uint8(43), tl())

	d.Dispatch(Command{Kind: CmdVolume, Ch: 0, Value: 50})
	d.Tick(true)
	assert.Equal(t, uint8(56), tl(), "volume keeps the final macro level")
	st, _ := d.ChannelState(0)
	assert.Equal(t, 7, st.OutVol)
}

func TestArpeggioMacro(t *testing.T) {
	ins := DefaultInstrument()
	ins.Macros.Arp = NewMacro([]int{0, 12}, 0, -1)
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, InstrumentList{ins})
	d.Dispatch(Command{Kind: CmdInstrument, Ch: 0, Value: 0})
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57})

	d.Tick(true)
	assert.Equal(t, uint8(0x32), d.RegisterPool()[0xB0])
	d.Tick(true)
	assert.Equal(t, uint8(0x36), d.RegisterPool()[0xB0], "an octave up is one block higher")
	d.Tick(true)
	assert.Equal(t, uint8(0x32), d.RegisterPool()[0xB0])
}

func TestMapVelocity(t *testing.T) {
	d := newTestDispatcher(t, ChipY8950, CoreYMFM, nil)
	assert.Equal(t, 0, d.MapVelocity(0, 0))
	assert.Equal(t, 63, d.MapVelocity(0, 1))
	assert.Equal(t, 56, d.MapVelocity(0, 0.5))
	assert.Equal(t, 127, d.MapVelocity(d.Layout().ADPCMChan, 0.5))
	assert.Equal(t, 255, d.MapVelocity(d.Layout().ADPCMChan, 1))
}

func TestDownsampleRate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Downsample = true
	cfg.OutputRate = 44100
	d := New(cfg, nil)
	assert.Equal(t, 44100, d.Rate())

	start := d.SamplePosition()
	bufs := NewOutputBuffers(1, 4410)
	d.Acquire(bufs, 4410)
	native := d.SamplePosition() - start
	want := uint64(4410 * d.layout.NativeRate() / 44100)
	assert.InDelta(t, want, native, 2)

	cfg.Downsample = false
	d = New(cfg, nil)
	assert.Equal(t, d.layout.NativeRate(), d.Rate())
}

func TestOscBufferFilled(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 2, Value: 57})
	d.Tick(true)
	bufs := NewOutputBuffers(1, 256)
	d.Acquire(bufs, 256)
	osc := d.OscBuffer(2)
	require.NotNil(t, osc)
	assert.Equal(t, 256, osc.Len())
	assert.Greater(t, peak(osc.Snapshot(nil)), 0)
	assert.Zero(t, peak(d.OscBuffer(3).Snapshot(nil)))
}

func TestLLEBusLatency(t *testing.T) {
	d := newTestDispatcher(t, ChipYMF262, CoreLLE, nil)
	bufs := NewOutputBuffers(d.OutputCount(), 64)
	d.Acquire(bufs, 64)
	l := d.eng.(*lleCore)
	require.Zero(t, l.backlog())

	d.Poke(0x20, 1)
	d.Poke(0x21, 2)
	d.Poke(0x22, 3)
	d.Commit()
	require.Equal(t, 3, l.backlog())
	assert.Equal(t, l.pending[0].at+lleWriteCycles, l.pending[1].at)
	assert.Equal(t, l.pending[1].at+lleWriteCycles, l.pending[2].at)

	d.Acquire(bufs, 1)
	assert.Zero(t, l.backlog())
	assert.Equal(t, uint8(2), l.chip.Reg(0x21))
	assert.Equal(t, uint8(3), l.chip.Reg(0x22))
}

func TestLLEBurstLandsInNextSample(t *testing.T) {
	d := newTestDispatcher(t, ChipYM3812, CoreLLE, nil)
	bufs := NewOutputBuffers(1, 16)
	d.Acquire(bufs, 16)
	l := d.eng.(*lleCore)
	start := l.cycle

	for i := 0; i < 8; i++ {
		d.Poke(uint16(0x20+i), uint8(i+1))
	}
	d.Commit()
	require.Equal(t, 8, l.backlog())
	last := start + uint64(d.layout.Divider) - 1
	for i, w := range l.pending {
		assert.LessOrEqual(t, w.at, last, "write %d", i)
		if i > 0 {
			assert.GreaterOrEqual(t, w.at, l.pending[i-1].at, "bus order")
		}
	}

	d.Acquire(bufs, 1)
	assert.Zero(t, l.backlog())
	assert.Equal(t, uint8(8), l.chip.Reg(0x27))
}

func TestNoteAudibleOnFirstFrame(t *testing.T) {
	for _, core := range []Core{CoreNuked, CoreYMFM, CoreLLE} {
		d := newTestDispatcher(t, ChipYM3812, core, nil)
		d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57})
		d.Tick(true)
		bufs := NewOutputBuffers(1, 1)
		d.Acquire(bufs, 1)
		assert.NotZero(t, bufs[0][0], "%s: first frame after key on", core)
	}
}

func TestSetCoreMidNoteContinuity(t *testing.T) {
	for _, core := range []Core{CoreNuked, CoreYMFM, CoreLLE} {
		d := newTestDispatcher(t, ChipYM3812, CoreNuked, nil)
		d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 57})
		d.Tick(true)
		bufs := NewOutputBuffers(1, 256)
		d.Acquire(bufs, 256)

		d.SetCore(core)
		d.Acquire(bufs, 4)
		assert.Greater(t, peak(bufs[0][:4]), 0, "%s: audio must continue across the switch", core)
	}
}

func TestLLEPairSharesCycle(t *testing.T) {
	l := buildLayout(ChipYMF262, false, 0)
	c, err := newLLECore(&l)
	require.NoError(t, err)
	c.applyWrite(QueuedWrite{Addr: 0xA0, Val: 0x44, Pair: true})
	c.applyWrite(QueuedWrite{Addr: 0xB0, Val: 0x32})
	c.applyWrite(QueuedWrite{Addr: 0xA1, Val: 0x10})
	require.Len(t, c.pending, 3)
	assert.Equal(t, c.pending[0].at, c.pending[1].at)
	assert.Equal(t, c.pending[0].at+lleWriteCycles, c.pending[2].at)
}

func TestQueueOverflowPanics(t *testing.T) {
	var q writeQueue
	for i := 0; i < QueueCapacity; i++ {
		q.push(QueuedWrite{Addr: uint16(i)})
	}
	assert.Panics(t, func() { q.push(QueuedWrite{}) })

	w, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, uint16(0), w.Addr, "FIFO order")
}

func TestNotifyInsChange(t *testing.T) {
	ins := DefaultInstrument()
	list := InstrumentList{ins}
	d := newTestDispatcher(t, ChipYM3812, CoreNuked, list)
	d.Dispatch(Command{Kind: CmdInstrument, Ch: 0, Value: 0})
	d.Dispatch(Command{Kind: CmdNoteOn, Ch: 0, Value: 60})
	d.Tick(true)

	ins.Op[1].AR = 7
	d.NotifyInsChange(0)
	d.Tick(true)
	_, car := fm.ChannelSlots(0)
	assert.Equal(t, uint8(7), d.RegisterPool()[0x60+fm.SlotOffset(car)]>>4)

	d.NotifyInsDeletion(0)
	st, _ := d.ChannelState(0)
	assert.Equal(t, -1, st.Ins)
}
