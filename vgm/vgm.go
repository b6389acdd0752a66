// Package vgm reads VGM and VGZ register logs for the OPL family.
//
// Supported chips (events extracted as register writes):
//   - YM3812 (cmd 0x5A)
//   - YM3526 (cmd 0x5B)
//   - Y8950 (cmd 0x5C), including delta-T ROM data blocks (type 0x88)
//   - YMF262 (cmd 0x5E port 0, 0x5F port 1)
//
// Commands for other chips are skipped using the VGM operand length table.
package vgm

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/user-none/emopl/opl"
)

// SampleRate is the VGM timebase in samples per second.
const SampleRate = 44100

var (
	ErrTooShort  = errors.New("vgm: file too short")
	ErrBadHeader = errors.New("vgm: invalid header")
	ErrNoOPLChip = errors.New("vgm: no OPL family chip in header")
	ErrTruncated = errors.New("vgm: truncated command")
)

// Header clock offsets (VGM 1.51+).
const (
	clockYM3812 = 0x50
	clockYM3526 = 0x54
	clockY8950  = 0x58
	clockYMF262 = 0x5C
)

// Data block type carrying Y8950 delta-T ROM/RAM contents.
const blockY8950DeltaT = 0x88

// Event is one register write at a VGM sample position.
type Event struct {
	Sample uint64
	Addr   uint16
	Val    uint8
}

// DataBlock is a delta-T memory image loaded at Start.
type DataBlock struct {
	Start uint32
	Data  []byte
}

// File is a parsed register log for one OPL family chip.
type File struct {
	Version      uint32
	Chip         opl.ChipType
	ClockHz      int
	Events       []Event
	Blocks       []DataBlock
	TotalSamples uint64
	LoopSamples  uint64
	LoopSample   uint64
	LoopIndex    int // First event after the loop point, -1 without a loop
}

// HasLoop reports whether the log loops.
func (f *File) HasLoop() bool {
	return f.LoopIndex >= 0 && f.LoopSamples > 0
}

// Config returns base adjusted for the logged chip and clock.
func (f *File) Config(base opl.Config) opl.Config {
	base.Chip = f.Chip
	base.ClockHz = f.ClockHz
	return base
}

// ParseFile reads and parses a .vgm or .vgz file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vgm: %w", err)
	}
	return Parse(data)
}

// Parse parses a VGM image, decompressing it first when gzipped.
func Parse(data []byte) (*File, error) {
	if len(data) < 2 {
		return nil, ErrTooShort
	}
	if data[0] == 0x1F && data[1] == 0x8B {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("vgm: %w", err)
		}
		defer gz.Close()
		data, err = io.ReadAll(gz)
		if err != nil {
			return nil, fmt.Errorf("vgm: %w", err)
		}
	}
	if len(data) < 0x40 {
		return nil, ErrTooShort
	}
	if !bytes.Equal(data[0:4], []byte("Vgm ")) {
		return nil, ErrBadHeader
	}

	f := &File{
		Version:      binary.LittleEndian.Uint32(data[0x08:0x0C]),
		TotalSamples: uint64(binary.LittleEndian.Uint32(data[0x18:0x1C])),
		LoopSamples:  uint64(binary.LittleEndian.Uint32(data[0x20:0x24])),
		LoopIndex:    -1,
	}
	if err := f.detectChip(data); err != nil {
		return nil, err
	}

	dataStart := uint32(0x40)
	if f.Version >= 0x150 {
		if off := binary.LittleEndian.Uint32(data[0x34:0x38]); off != 0 {
			dataStart = 0x34 + off
		}
	}
	if int(dataStart) >= len(data) {
		return nil, fmt.Errorf("vgm: data offset %#x out of range", dataStart)
	}
	loopStart := uint32(0)
	if off := binary.LittleEndian.Uint32(data[0x1C:0x20]); off != 0 {
		loopStart = 0x1C + off
	}

	if err := f.parseCommands(data, int(dataStart), int(loopStart)); err != nil {
		return nil, err
	}
	return f, nil
}

// detectChip picks the first OPL family chip with a non-zero clock.
func (f *File) detectChip(data []byte) error {
	clock := func(off int) int {
		if len(data) < off+4 {
			return 0
		}
		// Bit 30 flags a dual chip, bit 31 a variant.
		return int(binary.LittleEndian.Uint32(data[off:off+4]) & 0x3FFFFFFF)
	}
	for _, c := range []struct {
		off  int
		chip opl.ChipType
	}{
		{clockYMF262, opl.ChipYMF262},
		{clockY8950, opl.ChipY8950},
		{clockYM3812, opl.ChipYM3812},
		{clockYM3526, opl.ChipYM3526},
	} {
		if hz := clock(c.off); hz != 0 {
			f.Chip = c.chip
			f.ClockHz = hz
			return nil
		}
	}
	return ErrNoOPLChip
}

func (f *File) parseCommands(data []byte, start, loopStart int) error {
	events := make([]Event, 0, 1024)
	pos := uint64(0)

	need := func(i, n int) error {
		if i+n > len(data) {
			return fmt.Errorf("%w %#02x at offset %#x", ErrTruncated, data[i], i)
		}
		return nil
	}

	for i := start; i < len(data); {
		if loopStart != 0 && f.LoopIndex < 0 && i >= loopStart {
			f.LoopIndex = len(events)
			f.LoopSample = pos
		}
		cmd := data[i]
		switch {
		case cmd == 0x66:
			i = len(data)
		case cmd == 0x5A && f.Chip == opl.ChipYM3812,
			cmd == 0x5B && f.Chip == opl.ChipYM3526,
			cmd == 0x5C && f.Chip == opl.ChipY8950,
			cmd == 0x5E && f.Chip == opl.ChipYMF262:
			if err := need(i, 3); err != nil {
				return err
			}
			events = append(events, Event{Sample: pos, Addr: uint16(data[i+1]), Val: data[i+2]})
			i += 3
		case cmd == 0x5F && f.Chip == opl.ChipYMF262:
			if err := need(i, 3); err != nil {
				return err
			}
			events = append(events, Event{Sample: pos, Addr: 0x100 | uint16(data[i+1]), Val: data[i+2]})
			i += 3
		case cmd == 0x61:
			if err := need(i, 3); err != nil {
				return err
			}
			pos += uint64(binary.LittleEndian.Uint16(data[i+1 : i+3]))
			i += 3
		case cmd == 0x62:
			pos += 735
			i++
		case cmd == 0x63:
			pos += 882
			i++
		case cmd >= 0x70 && cmd <= 0x7F:
			pos += uint64(cmd&0x0F) + 1
			i++
		case cmd >= 0x80 && cmd <= 0x8F:
			pos += uint64(cmd & 0x0F)
			i++
		case cmd == 0x67:
			if err := need(i, 7); err != nil {
				return err
			}
			if data[i+1] != 0x66 {
				return fmt.Errorf("vgm: invalid data block at offset %#x", i)
			}
			typ := data[i+2]
			size := int(binary.LittleEndian.Uint32(data[i+3:i+7]) & 0x7FFFFFFF)
			if err := need(i, 7+size); err != nil {
				return err
			}
			if typ == blockY8950DeltaT && size > 8 {
				body := data[i+7 : i+7+size]
				f.Blocks = append(f.Blocks, DataBlock{
					Start: binary.LittleEndian.Uint32(body[4:8]),
					Data:  bytes.Clone(body[8:]),
				})
			}
			i += 7 + size
		default:
			n := operandLen(cmd)
			if err := need(i, 1+n); err != nil {
				return err
			}
			i += 1 + n
		}
	}
	if f.TotalSamples == 0 {
		f.TotalSamples = pos
	}
	if f.LoopIndex >= 0 && f.LoopSamples == 0 {
		f.LoopSamples = f.TotalSamples - f.LoopSample
	}
	f.Events = events
	return nil
}

// operandLen returns the operand byte count of commands this reader
// skips.
func operandLen(cmd byte) int {
	switch {
	case cmd >= 0x30 && cmd <= 0x3F, cmd == 0x4F, cmd == 0x50:
		return 1
	case cmd >= 0x40 && cmd <= 0x5F, cmd >= 0xA0 && cmd <= 0xBF:
		return 2
	case cmd == 0x68:
		return 11
	case cmd == 0x90, cmd == 0x91, cmd == 0x95:
		return 4
	case cmd == 0x92:
		return 5
	case cmd == 0x93:
		return 10
	case cmd == 0x94:
		return 1
	case cmd >= 0xC0 && cmd <= 0xDF:
		return 3
	case cmd >= 0xE0:
		return 4
	}
	return 0
}
