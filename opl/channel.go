package opl

// Pan output bits as stored in $C0 bits 7-4.
const (
	PanA = 0x1
	PanB = 0x2
	PanC = 0x4
	PanD = 0x8
)

// Channel is the per-channel state of the dispatcher.
type Channel struct {
	Ins       int
	Note      int
	BaseFreq  int // Linear frequency, F-number << block
	Pitch     int // Effect pitch, 1/64 semitone
	Pitch2    int // Macro pitch, 1/64 semitone
	Arp       int // Effect arpeggio, semitones
	MacroArp  int
	Vol       int
	OutVol    int
	Pan       uint8 // PanA..PanD
	PanL      uint8
	PanR      uint8
	FreqL     uint8
	FreqH     uint8 // Block and F-number high bits, without key
	FixedFreq uint16
	FourOp    bool
	HardReset bool
	Active    bool
	Muted     bool
	InPorta   bool
	Sample    int
	MacroVol  int // Volume macro range

	state         Instrument
	stateLoaded   bool
	macros        macroState
	dirty         bool // Instrument registers need restaging
	volChanged    bool
	panChanged    bool
	freqChanged   bool
	keyOn         bool
	keyOff        bool
	sampleRate    int
	sampleLoop    bool
	sampleMissing bool
}

func (c *Channel) reset(volMax int) {
	*c = Channel{
		Ins:      -1,
		Vol:      volMax,
		OutVol:   volMax,
		Pan:      PanA | PanB,
		PanL:     0xFF,
		PanR:     0xFF,
		Sample:   -1,
		MacroVol: volMax + 1,
		dirty:    true,
	}
	c.macros.init(nil)
}

// volScale combines channel volume with a volume macro value in the log
// domain: both at maximum yields the maximum, and values subtract from it.
func volScale(vol, macro, max int) int {
	if macro > max {
		macro = max
	}
	v := vol + macro - max
	if v < 0 {
		return 0
	}
	return v
}

// volScaleLinear combines channel volume with a volume macro value for a
// linear level register such as the ADPCM-B volume at $12.
func volScaleLinear(vol, macro, max int) int {
	if max <= 0 {
		return 0
	}
	macro = clampInt(macro, 0, max)
	return vol * macro / max
}

// panBits converts left/right levels to output bits. Compat panning
// mirrors A/B onto the rear outputs.
func panBits(l, r uint8, compat bool) uint8 {
	var p uint8
	if l > 0 {
		p |= PanA
	}
	if r > 0 {
		p |= PanB
	}
	if compat {
		p |= p << 2
	}
	return p
}
