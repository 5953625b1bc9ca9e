package registers

import (
	"sync"

	"github.com/pgallienne/stepper-control-system/errcode"
)

// Map is the shared register bank. One instance lives for the whole process
// and is mutated by the command-link server, the motion controller and the
// switch scanner. A single mutex guards every access so multi-byte fields can
// never be observed torn across subsystem boundaries.
type Map struct {
	mu   sync.Mutex
	data [MapSize]byte
}

func NewMap() *Map { return &Map{} }

// Size returns the number of addressable bytes.
func (m *Map) Size() int { return MapSize }

func checkRange(addr, n int) error {
	if addr < 0 || n < 0 || addr+n > MapSize {
		return errcode.Bounds
	}
	return nil
}

// ReadRange copies n bytes starting at addr.
func (m *Map) ReadRange(addr, n int) ([]byte, error) {
	if err := checkRange(addr, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	m.mu.Lock()
	copy(out, m.data[addr:addr+n])
	m.mu.Unlock()
	return out, nil
}

// WriteRange copies data into the bank starting at addr.
func (m *Map) WriteRange(addr int, data []byte) error {
	if err := checkRange(addr, len(data)); err != nil {
		return err
	}
	m.mu.Lock()
	copy(m.data[addr:], data)
	m.mu.Unlock()
	return nil
}

// ReadByte returns the byte at addr.
func (m *Map) ReadByte(addr int) (byte, error) {
	if err := checkRange(addr, 1); err != nil {
		return 0, err
	}
	m.mu.Lock()
	b := m.data[addr]
	m.mu.Unlock()
	return b, nil
}

// WriteByte stores b at addr.
func (m *Map) WriteByte(addr int, b byte) error {
	if err := checkRange(addr, 1); err != nil {
		return err
	}
	m.mu.Lock()
	m.data[addr] = b
	m.mu.Unlock()
	return nil
}

// UpdateByte sets then clears bits of the byte at addr in one critical
// section, preserving all other bits.
func (m *Map) UpdateByte(addr int, set, clear byte) error {
	if err := checkRange(addr, 1); err != nil {
		return err
	}
	m.mu.Lock()
	m.data[addr] = (m.data[addr] | set) &^ clear
	m.mu.Unlock()
	return nil
}

// ConsumeBits returns which bits of mask were set at addr and clears them,
// atomically. Edge-triggered command bits go through here so a command can
// never be observed twice: the read and the clear are one critical section.
func (m *Map) ConsumeBits(addr int, mask byte) (byte, error) {
	if err := checkRange(addr, 1); err != nil {
		return 0, err
	}
	m.mu.Lock()
	got := m.data[addr] & mask
	m.data[addr] &^= got
	m.mu.Unlock()
	return got, nil
}

// Little-endian multi-byte accessors. Each is a single critical section.

func (m *Map) ReadU16(addr int) (uint16, error) {
	if err := checkRange(addr, 2); err != nil {
		return 0, err
	}
	m.mu.Lock()
	v := uint16(m.data[addr]) | uint16(m.data[addr+1])<<8
	m.mu.Unlock()
	return v, nil
}

func (m *Map) WriteU16(addr int, v uint16) error {
	if err := checkRange(addr, 2); err != nil {
		return err
	}
	m.mu.Lock()
	m.data[addr] = byte(v)
	m.data[addr+1] = byte(v >> 8)
	m.mu.Unlock()
	return nil
}

func (m *Map) ReadU32(addr int) (uint32, error) {
	if err := checkRange(addr, 4); err != nil {
		return 0, err
	}
	m.mu.Lock()
	v := uint32(m.data[addr]) |
		uint32(m.data[addr+1])<<8 |
		uint32(m.data[addr+2])<<16 |
		uint32(m.data[addr+3])<<24
	m.mu.Unlock()
	return v, nil
}

func (m *Map) WriteU32(addr int, v uint32) error {
	if err := checkRange(addr, 4); err != nil {
		return err
	}
	m.mu.Lock()
	m.data[addr] = byte(v)
	m.data[addr+1] = byte(v >> 8)
	m.data[addr+2] = byte(v >> 16)
	m.data[addr+3] = byte(v >> 24)
	m.mu.Unlock()
	return nil
}

// Signed views of the position fields.

func (m *Map) ReadI32(addr int) (int32, error) {
	u, err := m.ReadU32(addr)
	return int32(u), err
}

func (m *Map) WriteI32(addr int, v int32) error {
	return m.WriteU32(addr, uint32(v))
}
