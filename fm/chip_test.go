package fm

import "testing"

// keyA4 programs channel 0 with a silent modulator and an instant-attack
// carrier and keys it at A4 (block 4, F-number 580).
func keyA4(c *Chip) {
	c.Write(0x20, 0x01)
	c.Write(0x23, 0x01)
	c.Write(0x63, 0xF0) // Carrier AR=15
	c.Write(0xA0, 0x44)
	c.Write(0xB0, 0x32)
}

// --- Register decode ---

func TestWrite_OperatorFields(t *testing.T) {
	c := New(ModeOPL2)
	c.Write(0x20, 0xF5) // AM VIB EGT KSR MULT=5
	c.Write(0x40, 0x9A) // KSL=2 TL=0x1A
	c.Write(0x60, 0xC3)
	c.Write(0x80, 0x7E)

	o := &c.op[0]
	if !o.am || !o.vib || !o.egt || !o.ksr {
		t.Error("flags from $20 not decoded")
	}
	if o.mult != 5 {
		t.Errorf("mult: expected 5, got %d", o.mult)
	}
	if o.ksl != 2 || o.tl != 0x1A {
		t.Errorf("ksl/tl: got %d/%d", o.ksl, o.tl)
	}
	if o.ar != 0x0C || o.dr != 0x03 {
		t.Errorf("ar/dr: got %d/%d", o.ar, o.dr)
	}
	if o.sl != 0x07 || o.rr != 0x0E {
		t.Errorf("sl/rr: got %d/%d", o.sl, o.rr)
	}
}

func TestWrite_UnusedOperatorOffsetIgnored(t *testing.T) {
	c := New(ModeOPL2)
	c.Write(0x26, 0xFF)
	for i := range c.op {
		if c.op[i].mult != 0 {
			t.Fatalf("slot %d changed by write to unused offset", i)
		}
	}
}

func TestWrite_ChannelFrequency(t *testing.T) {
	c := New(ModeOPL2)
	c.Write(0xA3, 0x44)
	c.Write(0xB3, 0x12)
	ch := &c.ch[3]
	if ch.fnum != 0x244 {
		t.Errorf("fnum: expected 0x244, got 0x%03X", ch.fnum)
	}
	if ch.block != 4 {
		t.Errorf("block: expected 4, got %d", ch.block)
	}
	if ch.keyOn {
		t.Error("key bit should be clear")
	}
}

func TestWrite_FeedbackConnectionPan(t *testing.T) {
	c := New(ModeOPL3)
	c.Write(0xC0, 0x3B)
	ch := &c.ch[0]
	if ch.fb != 5 || !ch.cnt || ch.pan != 0x03 {
		t.Errorf("got fb=%d cnt=%v pan=%X", ch.fb, ch.cnt, ch.pan)
	}
}

func TestWrite_OPL2IgnoresBankBit(t *testing.T) {
	c := New(ModeOPL2)
	c.Write(0x1A0, 0x44)
	if c.Reg(0xA0) != 0x44 {
		t.Errorf("expected bank bit to be dropped, reg $A0 = 0x%02X", c.Reg(0xA0))
	}
	if c.ch[0].fnum != 0x44 {
		t.Errorf("expected channel 0 fnum 0x44, got 0x%X", c.ch[0].fnum)
	}
}

func TestWrite_OPL3SecondBank(t *testing.T) {
	c := New(ModeOPL3)
	c.Write(0x1A0, 0x44)
	c.Write(0x120, 0x03)
	if c.ch[9].fnum != 0x44 {
		t.Errorf("expected channel 9 fnum 0x44, got 0x%X", c.ch[9].fnum)
	}
	if c.op[18].mult != 3 {
		t.Errorf("expected slot 18 mult 3, got %d", c.op[18].mult)
	}
	if c.ch[0].fnum != 0 {
		t.Error("bank 0 should be untouched")
	}
}

// --- Slot layout ---

func TestChannelSlots(t *testing.T) {
	tests := []struct {
		ch       int
		op1, op2 int
	}{
		{0, 0, 3}, {1, 1, 4}, {2, 2, 5},
		{3, 6, 9}, {5, 8, 11},
		{6, 12, 15}, {8, 14, 17},
		{9, 18, 21}, {17, 32, 35},
	}
	for _, tt := range tests {
		op1, op2 := ChannelSlots(tt.ch)
		if op1 != tt.op1 || op2 != tt.op2 {
			t.Errorf("ch %d: expected %d/%d, got %d/%d", tt.ch, tt.op1, tt.op2, op1, op2)
		}
		if slotChannel(op1) != tt.ch || slotChannel(op2) != tt.ch {
			t.Errorf("ch %d: slotChannel does not invert ChannelSlots", tt.ch)
		}
	}
}

func TestSlotOffset(t *testing.T) {
	if SlotOffset(6) != 0x08 {
		t.Errorf("slot 6: expected 0x08, got 0x%X", SlotOffset(6))
	}
	if SlotOffset(35) != 0x115 {
		t.Errorf("slot 35: expected 0x115, got 0x%X", SlotOffset(35))
	}
}

// --- Key on/off ---

func TestKeyOn_InstantAttack(t *testing.T) {
	c := New(ModeOPL2)
	keyA4(c)
	o := &c.op[3]
	if !o.key {
		t.Fatal("carrier should be keyed")
	}
	if o.egLevel != 0 || o.egState != egDecay {
		t.Errorf("AR=15 should skip attack, got level=%d state=%d", o.egLevel, o.egState)
	}
	if !c.KeyOn(0) {
		t.Error("KeyOn(0) should report true")
	}
}

func TestKeyOff_EntersRelease(t *testing.T) {
	c := New(ModeOPL2)
	keyA4(c)
	c.Write(0xB0, 0x12)
	if c.op[3].key {
		t.Error("carrier should be released")
	}
	if c.op[3].egState != egRelease {
		t.Errorf("expected release, got %d", c.op[3].egState)
	}
}

func TestKeyOn_ReKeyResetsPhase(t *testing.T) {
	c := New(ModeOPL2)
	keyA4(c)
	var f Frame
	for i := 0; i < 10; i++ {
		c.Clock(&f)
	}
	if c.op[3].phase == 0 {
		t.Fatal("phase should have advanced")
	}
	c.Write(0xB0, 0x12)
	c.Write(0xB0, 0x32)
	if c.op[3].phase != 0 {
		t.Errorf("phase should reset on key-on, got 0x%05X", c.op[3].phase)
	}
}

// --- Four-op ---

func TestFourOp_SecondaryFollowsPrimaryKey(t *testing.T) {
	c := New(ModeOPL3)
	c.Write(0x105, 0x01)
	c.Write(0x104, 0x01)
	c.Write(0xB0, 0x20)

	for _, s := range []int{0, 3, 6, 9} {
		if !c.op[s].key {
			t.Errorf("slot %d should be keyed by the primary channel", s)
		}
	}

	c.Write(0xB0, 0x00)
	c.Write(0xB3, 0x20)
	if c.op[6].key || c.op[9].key {
		t.Error("secondary key bit must be ignored while paired")
	}
}

func TestFourOp_RequiresNewMode(t *testing.T) {
	c := New(ModeOPL3)
	c.Write(0x104, 0x01)
	if p, s := c.fourOpRole(0); p || s {
		t.Error("4-op should be inactive without NEW")
	}
	c.Write(0x105, 0x01)
	if p, _ := c.fourOpRole(0); !p {
		t.Error("channel 0 should be primary")
	}
	if _, s := c.fourOpRole(3); !s {
		t.Error("channel 3 should be secondary")
	}
	if c.freqChannel(6) != 0 {
		t.Errorf("slot 6 should follow channel 0, got %d", c.freqChannel(6))
	}
}

// --- Rhythm ---

func TestRhythm_DrumKeys(t *testing.T) {
	c := New(ModeOPL2)
	c.Write(0xBD, 0x30) // Rhythm + BD
	if !c.op[12].key || !c.op[15].key {
		t.Error("BD should key slots 12 and 15")
	}
	c.Write(0xBD, 0x21) // Rhythm + HH
	if c.op[12].key {
		t.Error("BD should be released")
	}
	if !c.op[13].key {
		t.Error("HH should key slot 13")
	}
	c.Write(0xBD, 0x01) // Rhythm off
	if c.op[13].key {
		t.Error("drum keys should not apply with rhythm disabled")
	}
}

func TestRhythm_ProducesDrumOutput(t *testing.T) {
	c := New(ModeOPL2)
	c.Write(0x60+SlotOffset(14), 0xF0) // TOM AR=15
	c.Write(0xA8, 0x44)
	c.Write(0xB8, 0x12)
	c.Write(0xBD, 0x24)

	var f Frame
	nonZero := false
	for i := 0; i < 200; i++ {
		c.Clock(&f)
		if f.Drum[DrumTOM] != 0 {
			nonZero = true
		}
		if f.Ch[8] != f.Drum[DrumTOM]+f.Drum[DrumTOP] {
			t.Fatal("channel 8 should carry TOM + TOP")
		}
	}
	if !nonZero {
		t.Error("tom should produce output")
	}
}

// --- Waveform select ---

func TestOPL2_WaveformRequiresWSE(t *testing.T) {
	c := New(ModeOPL2)
	c.Write(0xE0, 0x03)
	if c.waveform(&c.op[0]) != 0 {
		t.Error("waveform should be sine without WSE")
	}
	c.Write(0x01, 0x20)
	if c.waveform(&c.op[0]) != 3 {
		t.Errorf("expected waveform 3, got %d", c.waveform(&c.op[0]))
	}
}

func TestOPL3_WaveformMask(t *testing.T) {
	c := New(ModeOPL3)
	c.Write(0xE0, 0x07)
	if c.waveform(&c.op[0]) != 3 {
		t.Errorf("OPL2-compatible mode should mask to 2 bits, got %d", c.waveform(&c.op[0]))
	}
	c.Write(0x105, 0x01)
	if c.waveform(&c.op[0]) != 7 {
		t.Errorf("expected waveform 7, got %d", c.waveform(&c.op[0]))
	}
}

func TestOPL_NoWaveformSelect(t *testing.T) {
	c := New(ModeOPL)
	c.Write(0x01, 0x20)
	c.Write(0xE0, 0x02)
	if c.waveform(&c.op[0]) != 0 {
		t.Error("YM3526 has no waveform select")
	}
}

// --- Output ---

func TestClock_ProducesAudio(t *testing.T) {
	c := New(ModeOPL2)
	keyA4(c)
	var f Frame
	peak := int32(0)
	for i := 0; i < 200; i++ {
		c.Clock(&f)
		if f.Out[0] > peak {
			peak = f.Out[0]
		}
		if f.Out[1] != 0 {
			t.Fatal("OPL2 is mono, output B should stay zero")
		}
	}
	if peak < 3000 {
		t.Errorf("expected near full-scale sine, peak %d", peak)
	}
}

func TestClock_PanRouting(t *testing.T) {
	c := New(ModeOPL3)
	c.Write(0x105, 0x01)
	c.Write(0xC0, 0x10) // Output A only
	keyA4(c)
	var f Frame
	sawA := false
	for i := 0; i < 200; i++ {
		c.Clock(&f)
		if f.Out[1] != 0 || f.Out[2] != 0 || f.Out[3] != 0 {
			t.Fatal("only output A should carry the channel")
		}
		if f.Out[0] != 0 {
			sawA = true
		}
	}
	if !sawA {
		t.Error("output A should be non-zero")
	}
}

func TestClock_CompatModeFeedsAB(t *testing.T) {
	c := New(ModeOPL3)
	keyA4(c)
	var f Frame
	for i := 0; i < 100; i++ {
		c.Clock(&f)
		if f.Out[0] != f.Out[1] {
			t.Fatal("with NEW=0 outputs A and B should match")
		}
	}
}

func TestReset_SilencesOperators(t *testing.T) {
	c := New(ModeOPL2)
	keyA4(c)
	c.Reset()
	for i := range c.op {
		if c.op[i].egLevel != 0x1FF || c.op[i].key {
			t.Fatalf("slot %d not reset", i)
		}
	}
	if c.Mode() != ModeOPL2 {
		t.Error("Reset should keep the mode")
	}
}
