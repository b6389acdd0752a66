package opl

import (
	"errors"
	"fmt"
)

// BankSize is the ADPCM memory addressable by one bank.
const BankSize = 256 * 1024

// MaxSamples is the number of sample slots.
const MaxSamples = 256

// Sample memory errors
var (
	ErrOutOfMemory  = errors.New("opl: sample memory full")
	ErrSampleIndex  = errors.New("opl: sample index out of range")
	ErrSampleLoaded = errors.New("opl: sample already loaded")
)

// SampleMemory packs ADPCM sample data into chip-addressable banks and
// serves the backend's memory reads.
type SampleMemory struct {
	banks  [][]byte
	offset [MaxSamples]int
	length [MaxSamples]int
	loaded [MaxSamples]bool
	next   int // Next free absolute address
	usage  int
	bank   int // Bank selected for backend access
}

// NewSampleMemory creates memory with the given number of 256KB banks.
func NewSampleMemory(banks int) *SampleMemory {
	banks = clampInt(banks, 1, maxSampleBanks)
	m := &SampleMemory{banks: make([][]byte, banks)}
	for i := range m.banks {
		m.banks[i] = make([]byte, BankSize)
	}
	return m
}

// LoadSample places data in memory and returns its absolute offset.
// Samples are 4-byte aligned and never straddle a bank boundary.
func (m *SampleMemory) LoadSample(index int, data []byte) (int, error) {
	if index < 0 || index >= MaxSamples {
		return 0, fmt.Errorf("%w: %d", ErrSampleIndex, index)
	}
	if m.loaded[index] {
		return 0, fmt.Errorf("%w: %d", ErrSampleLoaded, index)
	}
	if len(data) > BankSize {
		return 0, fmt.Errorf("%w: sample %d is %d bytes", ErrOutOfMemory, index, len(data))
	}

	pos := (m.next + 3) &^ 3
	if pos%BankSize+len(data) > BankSize {
		pos = (pos/BankSize + 1) * BankSize
	}
	if pos+len(data) > m.Capacity() {
		return 0, fmt.Errorf("%w: sample %d needs %d bytes, %d free", ErrOutOfMemory, index, len(data), m.Capacity()-pos)
	}

	copy(m.banks[pos/BankSize][pos%BankSize:], data)
	m.offset[index] = pos
	m.length[index] = len(data)
	m.loaded[index] = true
	m.next = pos + len(data)
	m.usage += len(data)
	return pos, nil
}

// IsLoaded reports whether a sample index is resident.
func (m *SampleMemory) IsLoaded(index int) bool {
	return index >= 0 && index < MaxSamples && m.loaded[index]
}

// Offset returns the absolute address of a resident sample.
func (m *SampleMemory) Offset(index int) (int, bool) {
	if !m.IsLoaded(index) {
		return 0, false
	}
	return m.offset[index], true
}

// Length returns the byte length of a resident sample.
func (m *SampleMemory) Length(index int) int {
	if !m.IsLoaded(index) {
		return 0
	}
	return m.length[index]
}

// Capacity returns the total bytes across all banks.
func (m *SampleMemory) Capacity() int {
	return len(m.banks) * BankSize
}

// Usage returns the sum of resident sample lengths.
func (m *SampleMemory) Usage() int {
	return m.usage
}

// Footprint returns the highest used address, including alignment and
// bank padding.
func (m *SampleMemory) Footprint() int {
	return m.next
}

// Banks returns the number of banks.
func (m *SampleMemory) Banks() int {
	return len(m.banks)
}

// Clear unloads every sample and zeroes memory.
func (m *SampleMemory) Clear() {
	for _, b := range m.banks {
		clear(b)
	}
	m.loaded = [MaxSamples]bool{}
	m.offset = [MaxSamples]int{}
	m.length = [MaxSamples]int{}
	m.next = 0
	m.usage = 0
	m.bank = 0
}

// Rebuild clears memory and loads samples by index. Nil entries are
// skipped. Samples that do not fit are reported in the joined error and
// stay unloaded.
func (m *SampleMemory) Rebuild(samples [][]byte) error {
	m.Clear()
	var errs []error
	for i, s := range samples {
		if s == nil {
			continue
		}
		if _, err := m.LoadSample(i, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Select picks the bank served by ReadMem and WriteMem.
func (m *SampleMemory) Select(bank int) {
	m.bank = clampInt(bank, 0, len(m.banks)-1)
}

// Selected returns the bank served to the backend.
func (m *SampleMemory) Selected() int {
	return m.bank
}

// Bank returns the bank holding a resident sample, or -1.
func (m *SampleMemory) Bank(index int) int {
	if !m.IsLoaded(index) {
		return -1
	}
	return m.offset[index] / BankSize
}

// ReadMem reads a byte from the selected bank.
func (m *SampleMemory) ReadMem(addr uint32) uint8 {
	if int(addr) >= BankSize {
		return 0
	}
	return m.banks[m.bank][addr]
}

// WriteMem writes a byte to the selected bank.
func (m *SampleMemory) WriteMem(addr uint32, val uint8) {
	if int(addr) < BankSize {
		m.banks[m.bank][addr] = val
	}
}
