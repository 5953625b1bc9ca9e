// Package commandlink implements the device side of the serial register
// protocol: it frames, validates and applies host requests against the
// shared register map.
package commandlink

import (
	"github.com/pgallienne/stepper-control-system/errcode"
	"github.com/pgallienne/stepper-control-system/registers"
	"github.com/pgallienne/stepper-control-system/wire"
)

// Server dispatches host frames against the register map. It owns no
// goroutine: the control loop calls Poll once per iteration.
type Server struct {
	port Port
	regs *registers.Map

	hdr     [wire.HeaderLen]byte
	payload [wire.MaxPayload + 1]byte // payload + trailing checksum
}

func NewServer(port Port, regs *registers.Map) *Server {
	return &Server{port: port, regs: regs}
}

// Poll processes at most one complete message. It returns nil when no data
// is pending or a message was applied; link-level rejections come back as
// errcode values so the caller can count them, but none are fatal.
//
// Processing order per message: command-type check, bounds check (drop with
// a drain of the trailing bytes the type implies, to keep the stream
// aligned), checksum check (WRITE mismatch answers NACK and touches nothing,
// READ mismatch is dropped without a response), then apply and respond.
func (s *Server) Poll() error {
	if s.port.Buffered() == 0 {
		return nil
	}
	if err := readFull(s.port, s.hdr[:]); err != nil {
		return &errcode.E{C: errcode.LinkDown, Op: "header", Err: err}
	}
	h := wire.Header{Cmd: s.hdr[0], Addr: s.hdr[1], Len: s.hdr[2]}

	trail := h.TrailLen()
	if trail < 0 {
		// Unrecognized command type. We cannot know how many bytes
		// follow, so there is no recovery: the stream may desynchronize
		// until the host re-opens the link.
		return &errcode.E{C: errcode.Framing, Op: "header"}
	}

	if int(h.Addr)+int(h.Len) > s.regs.Size() || h.Len > wire.MaxPayload {
		s.drain(trail)
		return &errcode.E{C: errcode.Bounds, Op: "header"}
	}

	switch h.Cmd {
	case wire.CmdRead:
		return s.handleRead(h)
	default:
		return s.handleWrite(h)
	}
}

func (s *Server) handleRead(h wire.Header) error {
	sum, err := s.port.ReadByte()
	if err != nil {
		return &errcode.E{C: errcode.LinkDown, Op: "read", Err: err}
	}
	if wire.Checksum(s.hdr[:]) != sum {
		// Dropped without a response; the host's read timeout is the
		// only signal it gets.
		return &errcode.E{C: errcode.Checksum, Op: "read"}
	}
	data, err := s.regs.ReadRange(int(h.Addr), int(h.Len))
	if err != nil {
		return err
	}
	if _, err := s.port.Write(wire.EncodeReadReply(h.Addr, data)); err != nil {
		return &errcode.E{C: errcode.LinkDown, Op: "read_reply", Err: err}
	}
	return nil
}

func (s *Server) handleWrite(h wire.Header) error {
	body := s.payload[:int(h.Len)+1]
	if err := readFull(s.port, body); err != nil {
		return &errcode.E{C: errcode.LinkDown, Op: "write", Err: err}
	}
	data, sum := body[:h.Len], body[h.Len]
	if wire.Checksum(s.hdr[:], data) != sum {
		if _, err := s.port.Write(wire.EncodeWriteReply(h.Addr, false)); err != nil {
			return &errcode.E{C: errcode.LinkDown, Op: "write_nack", Err: err}
		}
		return &errcode.E{C: errcode.Checksum, Op: "write"}
	}
	if err := s.regs.WriteRange(int(h.Addr), data); err != nil {
		return err
	}
	if _, err := s.port.Write(wire.EncodeWriteReply(h.Addr, true)); err != nil {
		return &errcode.E{C: errcode.LinkDown, Op: "write_ack", Err: err}
	}
	return nil
}

// drain consumes n trailing bytes of a rejected message so the next header
// starts on a frame boundary.
func (s *Server) drain(n int) {
	for i := 0; i < n; i++ {
		if _, err := s.port.ReadByte(); err != nil {
			return
		}
	}
}
