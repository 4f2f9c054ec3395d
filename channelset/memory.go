package channelset

import "github.com/example/bus_fabric_sim/core"

// MaxWindowBytes bounds the backing store of a single slave.
const MaxWindowBytes = 1 << 26

// Memory is the word-addressed backing store of one slave window. Every
// access is checked against the window; failures are reported as a response
// status, never as an index panic.
type Memory struct {
	base  uint64
	words []uint32
}

// NewMemory allocates a zeroed window of size bytes starting at base. Sizes
// are rounded down to whole words.
func NewMemory(base, size uint64) *Memory {
	if size > MaxWindowBytes {
		size = MaxWindowBytes
	}
	return &Memory{base: base, words: make([]uint32, size/core.WordSize)}
}

// Base returns the first byte address of the window.
func (m *Memory) Base() uint64 { return m.base }

// Size returns the window size in bytes.
func (m *Memory) Size() uint64 { return uint64(len(m.words)) * core.WordSize }

// Contains reports whether addr falls inside the window.
func (m *Memory) Contains(addr uint64) bool {
	return addr >= m.base && addr-m.base < m.Size()
}

// Check returns the status an access to addr would complete with.
func (m *Memory) Check(addr uint64) core.Status {
	if !m.Contains(addr) {
		return core.StatusDecodeError
	}
	if addr%core.WordSize != 0 {
		return core.StatusSlaveError
	}
	return core.StatusOK
}

// Read returns the word at addr.
func (m *Memory) Read(addr uint64) (uint32, core.Status) {
	if st := m.Check(addr); st != core.StatusOK {
		return 0, st
	}
	return m.words[(addr-m.base)/core.WordSize], core.StatusOK
}

// Write stores the low 32 bits of v at addr.
func (m *Memory) Write(addr uint64, v uint64) core.Status {
	if st := m.Check(addr); st != core.StatusOK {
		return st
	}
	m.words[(addr-m.base)/core.WordSize] = uint32(v)
	return core.StatusOK
}

// Clear zeroes the window.
func (m *Memory) Clear() {
	clear(m.words)
}
