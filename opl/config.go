package opl

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Config holds the dispatcher options. Out of range values are clamped by
// Normalize rather than rejected.
type Config struct {
	Chip        ChipType
	Core        Core
	Drums       bool // Rhythm mode at reset
	DAM         bool // Deep tremolo
	DVB         bool // Deep vibrato
	CompatPan   bool // Mirror A/B panning onto outputs C/D
	Downsample  bool // Resample native output to OutputRate
	OutputRate  int
	TickRate    float64 // Sequencer ticks per second
	ClockHz     int     // 0 selects the chip's default master clock
	SampleBanks int     // 256KB ADPCM memory banks
	OscSize     int     // Per-channel oscilloscope samples

	Logger *slog.Logger
}

// Limits applied by Normalize.
const (
	minOutputRate  = 8000
	maxOutputRate  = 192000
	minTickRate    = 1
	maxTickRate    = 1000
	maxSampleBanks = 4
	minOscSize     = 64
	maxOscSize     = 65536
	minClockHz     = 1000000
	maxClockHz     = 20000000
)

// DefaultConfig returns an OPL2 configuration on the cycle-accurate core.
func DefaultConfig() Config {
	return Config{
		Chip:        ChipYM3812,
		Core:        CoreNuked,
		OutputRate:  48000,
		TickRate:    60,
		SampleBanks: 1,
		OscSize:     DefaultOscSize,
	}
}

// Normalize clamps every field to its valid range.
func (c *Config) Normalize() {
	switch c.Chip {
	case ChipYM3526, ChipYM3812, ChipYMF262, ChipY8950:
	default:
		c.Chip = ChipYM3812
	}
	if c.Core < CoreNuked {
		c.Core = CoreNuked
	}
	if c.Core > CoreLLE {
		c.Core = CoreLLE
	}
	c.OutputRate = clampInt(c.OutputRate, minOutputRate, maxOutputRate)
	if c.TickRate < minTickRate {
		c.TickRate = minTickRate
	}
	if c.TickRate > maxTickRate {
		c.TickRate = maxTickRate
	}
	if c.ClockHz != 0 {
		c.ClockHz = clampInt(c.ClockHz, minClockHz, maxClockHz)
	}
	c.SampleBanks = clampInt(c.SampleBanks, 1, maxSampleBanks)
	if c.OscSize == 0 {
		c.OscSize = DefaultOscSize
	}
	c.OscSize = clampInt(c.OscSize, minOscSize, maxOscSize)
}

// SetOption applies one option identified by key. Numeric values are
// clamped by a later Normalize.
func (c *Config) SetOption(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "chip":
		c.Chip, err = ParseChipType(value)
	case "core":
		c.Core, err = ParseCore(value)
	case "drums":
		c.Drums, err = strconv.ParseBool(value)
	case "dam":
		c.DAM, err = strconv.ParseBool(value)
	case "dvb":
		c.DVB, err = strconv.ParseBool(value)
	case "compat_pan":
		c.CompatPan, err = strconv.ParseBool(value)
	case "downsample":
		c.Downsample, err = strconv.ParseBool(value)
	case "output_rate":
		c.OutputRate, err = strconv.Atoi(value)
	case "tick_rate":
		c.TickRate, err = strconv.ParseFloat(value, 64)
	case "clock":
		c.ClockHz, err = strconv.Atoi(value)
	case "sample_banks":
		c.SampleBanks, err = strconv.Atoi(value)
	case "osc_size":
		c.OscSize, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("opl: unknown option %q", key)
	}
	if err != nil {
		return fmt.Errorf("opl: option %s: %w", key, err)
	}
	return nil
}

// ApplyOptions applies a list of key=value pairs and normalizes the result.
func (c *Config) ApplyOptions(opts []string) error {
	for _, o := range opts {
		key, value, ok := strings.Cut(o, "=")
		if !ok {
			return fmt.Errorf("opl: option %q is not key=value", o)
		}
		if err := c.SetOption(key, value); err != nil {
			return err
		}
	}
	c.Normalize()
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt32(v, lo, hi int32) int32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
