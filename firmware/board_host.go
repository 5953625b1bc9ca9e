//go:build !rp2040

package firmware

import (
	"sync"

	"github.com/pgallienne/stepper-control-system/commandlink"
	"github.com/pgallienne/stepper-control-system/drivers/tmc2130"
	"github.com/pgallienne/stepper-control-system/switches"
)

// HostSPI implements the SPI interface for host-side tests and the
// simulator. Reads clock back zeroes; writes are recorded.
type HostSPI struct {
	mu     sync.Mutex
	Frames [][]byte
}

func (h *HostSPI) Tx(w, r []byte) error {
	h.mu.Lock()
	h.Frames = append(h.Frames, append([]byte(nil), w...))
	h.mu.Unlock()
	for i := range r {
		r[i] = 0
	}
	return nil
}

func (h *HostSPI) Transfer(b byte) (byte, error) { return 0, nil }

// SimBoard is a fully in-memory board: the link is one end of a pipe, the
// SPI bus is inert, switches idle high.
type SimBoard struct {
	Board

	mu     sync.Mutex
	levels [2]bool
}

// SetSwitchLevel drives one switch input. The lines are active low, so false
// is a press.
func (b *SimBoard) SetSwitchLevel(ch int, high bool) {
	b.mu.Lock()
	b.levels[ch] = high
	b.mu.Unlock()
}

func (b *SimBoard) switchLevel(ch int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levels[ch]
}

// NewSimBoard returns the board plus the host end of the serial link.
func NewSimBoard() (*SimBoard, *commandlink.PipeEnd) {
	dev, host := commandlink.NewPipe()
	b := &SimBoard{levels: [2]bool{true, true}}
	b.Link = dev
	b.SPI = &HostSPI{}
	b.ChipSelects = [2]tmc2130.PinOutput{func(bool) {}, func(bool) {}}
	b.Switches = [2]switches.PinInput{
		func() bool { return b.switchLevel(0) },
		func() bool { return b.switchLevel(1) },
	}
	return b, host
}
