// Package switches filters the raw limit-switch inputs into the stable
// switch-status register.
package switches

import (
	"time"

	"github.com/pgallienne/stepper-control-system/registers"
)

// PinInput returns the electrical level of an input pin. The switches pull
// the line low when pressed, so the physically-active state is the inverse
// of the idle level.
type PinInput func() bool

// DefaultQuietPeriod is how long a raw sample must hold before it is
// promoted to the stable value.
const DefaultQuietPeriod = 5 * time.Millisecond

type channel struct {
	input      PinInput
	raw        bool
	stable     bool
	lastChange time.Time
}

// Scanner debounces up to eight channels into the switch-status bitmask.
// This is settle-window edge detection, not low-pass filtering: a change is
// promoted exactly once, after the input has been quiet for the configured
// period.
type Scanner struct {
	regs  *registers.Map
	chans []channel
	quiet time.Duration

	now func() time.Time
}

func NewScanner(regs *registers.Map, inputs ...PinInput) *Scanner {
	s := &Scanner{
		regs:  regs,
		quiet: DefaultQuietPeriod,
		now:   time.Now,
	}
	t := s.now()
	for _, in := range inputs {
		lvl := in()
		s.chans = append(s.chans, channel{input: in, raw: lvl, stable: lvl, lastChange: t})
	}
	return s
}

// Update samples every channel once. The status register is rewritten only
// when at least one stable value actually changed this tick.
func (s *Scanner) Update() {
	now := s.now()
	changed := false
	for i := range s.chans {
		c := &s.chans[i]
		cur := c.input()
		if cur != c.raw {
			c.raw = cur
			c.lastChange = now
			continue
		}
		if now.Sub(c.lastChange) > s.quiet && cur != c.stable {
			c.stable = cur
			changed = true
		}
	}
	if changed {
		s.regs.WriteByte(registers.RegSwitchStatus, s.mask())
	}
}

// mask sets one bit per pressed channel; pressed is electrically low.
func (s *Scanner) mask() byte {
	var m byte
	for i := range s.chans {
		if !s.chans[i].stable {
			m |= 1 << i
		}
	}
	return m
}

// Pressed reports the debounced state of one channel.
func (s *Scanner) Pressed(ch int) bool {
	if ch < 0 || ch >= len(s.chans) {
		return false
	}
	return !s.chans[ch].stable
}
