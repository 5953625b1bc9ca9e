package commandlink

import "time"

// NewPipe returns two connected in-memory link ends. Everything written to
// one end becomes readable on the other. Used by tests and the host-side
// simulator; the device end satisfies Port, the host end additionally
// behaves like a serial port with a read timeout.
func NewPipe() (*PipeEnd, *PipeEnd) {
	a := &PipeEnd{rx: make(chan byte, 4096)}
	b := &PipeEnd{rx: make(chan byte, 4096)}
	a.peer, b.peer = b, a
	return a, b
}

// PipeEnd is one side of an in-memory serial link.
type PipeEnd struct {
	rx      chan byte
	peer    *PipeEnd
	timeout time.Duration
}

func (e *PipeEnd) Buffered() int { return len(e.rx) }

// ReadByte blocks until a byte arrives.
func (e *PipeEnd) ReadByte() (byte, error) { return <-e.rx, nil }

// Read waits for at least one byte, bounded by the configured read timeout,
// then drains whatever else is already pending. A timeout returns 0 bytes
// and no error, matching serial-port semantics.
func (e *PipeEnd) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if e.timeout > 0 {
		select {
		case b := <-e.rx:
			p[0] = b
		case <-time.After(e.timeout):
			return 0, nil
		}
	} else {
		p[0] = <-e.rx
	}
	n := 1
	for n < len(p) {
		select {
		case b := <-e.rx:
			p[n] = b
			n++
		default:
			return n, nil
		}
	}
	return n, nil
}

func (e *PipeEnd) Write(p []byte) (int, error) {
	for _, b := range p {
		e.peer.rx <- b
	}
	return len(p), nil
}

func (e *PipeEnd) SetReadTimeout(d time.Duration) error {
	e.timeout = d
	return nil
}

func (e *PipeEnd) ResetInputBuffer() error {
	for {
		select {
		case <-e.rx:
		default:
			return nil
		}
	}
}
