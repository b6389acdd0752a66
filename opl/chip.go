package opl

import (
	"fmt"
	"strings"

	"github.com/user-none/emopl/fm"
)

// maxChans is the channel count of the largest configuration (OPL3 with drums).
const maxChans = 20

// ChipType selects the OPL family member.
type ChipType int

const (
	ChipYM3526 ChipType = 1    // OPL
	ChipYM3812 ChipType = 2    // OPL2
	ChipYMF262 ChipType = 3    // OPL3
	ChipY8950  ChipType = 8950 // MSX-AUDIO: OPL + ADPCM-B
)

func (t ChipType) String() string {
	switch t {
	case ChipYM3526:
		return "ym3526"
	case ChipYM3812:
		return "ym3812"
	case ChipYMF262:
		return "ymf262"
	case ChipY8950:
		return "y8950"
	}
	return fmt.Sprintf("chip(%d)", int(t))
}

// ParseChipType accepts a part number or family name (opl, opl2, opl3, y8950).
func ParseChipType(s string) (ChipType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "opl", "ym3526":
		return ChipYM3526, nil
	case "opl2", "ym3812":
		return ChipYM3812, nil
	case "opl3", "ymf262":
		return ChipYMF262, nil
	case "y8950", "msx-audio":
		return ChipY8950, nil
	}
	return 0, fmt.Errorf("opl: unknown chip %q", s)
}

// Default master clocks.
const (
	clockOPL  = 3579545
	clockOPL3 = 14318180
)

// opl3ChanMap orders OPL3 hardware channels so 4-op pairs are adjacent
// logical channels: (0,1) is hardware (0,3), (2,3) is (1,4) and so on.
var opl3ChanMap = [18]int{0, 3, 1, 4, 2, 5, 9, 12, 10, 13, 11, 14, 15, 16, 17, 6, 7, 8}

// Rhythm voices in logical order BD, SD, TOM, TOP, HH.
var (
	drumSlots  = [5][2]int{{12, 15}, {16, -1}, {14, -1}, {17, -1}, {13, -1}}
	drumFreqHW = [5]int{6, 7, 8, 8, 7}
)

// Layout describes the channel arrangement of one chip configuration,
// indexed by logical channel and operator.
type Layout struct {
	Type         ChipType
	Mode         fm.Mode
	HWChans      int // 2-op hardware channels
	MelodicChans int
	TotalChans   int
	ADPCMChan    int // -1 without ADPCM
	Drums        bool
	Outputs      int
	PoolSize     int
	ClockHz      int
	Divider      int // Master clocks per native sample

	hw    [maxChans]int
	drum  [maxChans]int
	slots [maxChans][4]int
}

// buildLayout derives the layout of a chip type in melodic or drum mode.
func buildLayout(t ChipType, drums bool, clockHz int) Layout {
	l := Layout{Type: t, Drums: drums, ADPCMChan: -1, Outputs: 1, PoolSize: 256, ClockHz: clockOPL, Divider: 72}

	switch t {
	case ChipYMF262:
		l.Mode = fm.ModeOPL3
		l.HWChans = 18
		l.MelodicChans, l.TotalChans = 18, 18
		if drums {
			l.MelodicChans, l.TotalChans = 15, 20
		}
		l.Outputs = 4
		l.PoolSize = 512
		l.ClockHz = clockOPL3
		l.Divider = 288
	case ChipYM3526, ChipY8950:
		l.Mode = fm.ModeOPL
	default:
		l.Type = ChipYM3812
		l.Mode = fm.ModeOPL2
	}
	if l.HWChans == 0 {
		l.HWChans = 9
		l.MelodicChans, l.TotalChans = 9, 9
		if drums {
			l.MelodicChans, l.TotalChans = 6, 11
		}
	}
	if t == ChipY8950 {
		l.ADPCMChan = l.TotalChans
		l.TotalChans++
	}
	if clockHz > 0 {
		l.ClockHz = clockHz
	}

	for c := 0; c < maxChans; c++ {
		l.hw[c] = -1
		l.drum[c] = -1
		l.slots[c] = [4]int{-1, -1, -1, -1}
	}
	for c := 0; c < l.MelodicChans; c++ {
		hw := c
		if l.Mode == fm.ModeOPL3 {
			hw = opl3ChanMap[c]
		}
		l.hw[c] = hw
		l.slots[c][0], l.slots[c][1] = fm.ChannelSlots(hw)
		if l.FourOpCapable(c) {
			l.slots[c][2], l.slots[c][3] = fm.ChannelSlots(opl3ChanMap[c+1])
		}
	}
	if drums {
		for i := 0; i < 5; i++ {
			c := l.MelodicChans + i
			l.drum[c] = i
			l.slots[c][0], l.slots[c][1] = drumSlots[i][0], drumSlots[i][1]
		}
	}
	return l
}

// NativeRate returns the chip's sample rate in Hz.
func (l *Layout) NativeRate() int {
	return l.ClockHz / l.Divider
}

// Slot returns the operator slot for a logical channel and operator, or -1.
func (l *Layout) Slot(ch, op int) int {
	if ch < 0 || ch >= maxChans || op < 0 || op > 3 {
		return -1
	}
	return l.slots[ch][op]
}

// HW returns the hardware channel of a melodic logical channel, or -1.
func (l *Layout) HW(ch int) int {
	if ch < 0 || ch >= maxChans {
		return -1
	}
	return l.hw[ch]
}

// DrumIndex returns the rhythm voice of a logical channel, or -1.
func (l *Layout) DrumIndex(ch int) int {
	if ch < 0 || ch >= maxChans {
		return -1
	}
	return l.drum[ch]
}

// freqHW returns the hardware channel whose frequency registers a logical
// channel uses.
func (l *Layout) freqHW(ch int) int {
	if d := l.DrumIndex(ch); d >= 0 {
		return drumFreqHW[d]
	}
	return l.HW(ch)
}

// ChanReg returns the channel register offset ($A0/$B0/$C0 + offset) for a
// logical channel, including the 0x100 bank bit.
func (l *Layout) ChanReg(ch int) uint16 {
	hw := l.freqHW(ch)
	if hw < 0 {
		return 0
	}
	return uint16(hw%9) | uint16(hw/9)<<8
}

// FourOpCapable reports whether a logical channel can be the primary of a
// 4-op pair. Only OPL3 channels 0, 2, 4, 6, 8 and 10 qualify.
func (l *Layout) FourOpCapable(ch int) bool {
	return l.Mode == fm.ModeOPL3 && ch >= 0 && ch < 12 && ch%2 == 0 && ch < l.MelodicChans
}

// VolMax returns the volume resolution of a channel.
func (l *Layout) VolMax(ch int) int {
	if ch == l.ADPCMChan {
		return 255
	}
	return 63
}

// waveMask returns the waveform select mask, 0 when unsupported.
func (l *Layout) waveMask() uint8 {
	switch l.Mode {
	case fm.ModeOPL3:
		return 7
	case fm.ModeOPL2:
		return 3
	}
	return 0
}
