// Package wire defines the byte-exact serial command-link framing shared by
// the device-side server and the host-side client.
//
// Host to device: [cmd, addr, len] header, then for READ one checksum byte
// over the header, for WRITE len payload bytes and one checksum byte over
// header and payload. Device to host: READ replies [addr, len, data...,
// checksum], WRITE replies [addr, status, checksum] with status 0x00 (ACK)
// or 0xFF (NACK).
package wire

import "github.com/pgallienne/stepper-control-system/errcode"

const (
	CmdRead  = 0x01
	CmdWrite = 0x02

	// MaxPayload bounds len for both commands.
	MaxPayload = 16

	HeaderLen = 3
	// ReplyStatusLen is the fixed size of an ACK/NACK reply.
	ReplyStatusLen = 3

	StatusACK  = 0x00
	StatusNACK = 0xFF
)

// Checksum is a running XOR over all chunks in order.
func Checksum(chunks ...[]byte) byte {
	var c byte
	for _, chunk := range chunks {
		for _, b := range chunk {
			c ^= b
		}
	}
	return c
}

// Header is the fixed three-byte request prefix.
type Header struct {
	Cmd  byte
	Addr byte
	Len  byte
}

func (h Header) bytes() []byte { return []byte{h.Cmd, h.Addr, h.Len} }

// TrailLen is the number of bytes that follow the header for this command
// type. It returns -1 for an unrecognized command: the stream has no defined
// recovery in that case and may desynchronize.
func (h Header) TrailLen() int {
	switch h.Cmd {
	case CmdRead:
		return 1
	case CmdWrite:
		return int(h.Len) + 1
	default:
		return -1
	}
}

// EncodeRead builds a READ request for n bytes at addr.
func EncodeRead(addr, n byte) []byte {
	h := Header{Cmd: CmdRead, Addr: addr, Len: n}
	return append(h.bytes(), Checksum(h.bytes()))
}

// EncodeWrite builds a WRITE request carrying data at addr.
func EncodeWrite(addr byte, data []byte) []byte {
	h := Header{Cmd: CmdWrite, Addr: addr, Len: byte(len(data))}
	f := append(h.bytes(), data...)
	return append(f, Checksum(f))
}

// EncodeReadReply builds the device response to a READ.
func EncodeReadReply(addr byte, data []byte) []byte {
	f := append([]byte{addr, byte(len(data))}, data...)
	return append(f, Checksum(f))
}

// EncodeWriteReply builds an ACK or NACK.
func EncodeWriteReply(addr byte, ok bool) []byte {
	status := byte(StatusNACK)
	if ok {
		status = StatusACK
	}
	f := []byte{addr, status}
	return append(f, Checksum(f))
}

// ParseReadReply validates a READ response frame against the requested addr
// and n and returns the data bytes.
func ParseReadReply(addr, n byte, frame []byte) ([]byte, error) {
	if len(frame) != int(n)+3 {
		return nil, &errcode.E{C: errcode.Framing, Op: "read_reply", Msg: "short frame"}
	}
	if Checksum(frame[:len(frame)-1]) != frame[len(frame)-1] {
		return nil, &errcode.E{C: errcode.Checksum, Op: "read_reply"}
	}
	if frame[0] != addr {
		return nil, &errcode.E{C: errcode.Framing, Op: "read_reply", Msg: "address mismatch"}
	}
	if frame[1] != n {
		return nil, &errcode.E{C: errcode.Framing, Op: "read_reply", Msg: "length mismatch"}
	}
	return frame[2 : len(frame)-1], nil
}

// ParseWriteReply validates an ACK/NACK frame for a write to addr.
func ParseWriteReply(addr byte, frame []byte) error {
	if len(frame) != ReplyStatusLen {
		return &errcode.E{C: errcode.Framing, Op: "write_reply", Msg: "short frame"}
	}
	if Checksum(frame[:2]) != frame[2] {
		return &errcode.E{C: errcode.Checksum, Op: "write_reply"}
	}
	if frame[0] != addr {
		return &errcode.E{C: errcode.Framing, Op: "write_reply", Msg: "address mismatch"}
	}
	switch frame[1] {
	case StatusACK:
		return nil
	case StatusNACK:
		return &errcode.E{C: errcode.NACK, Op: "write_reply"}
	default:
		return &errcode.E{C: errcode.Framing, Op: "write_reply", Msg: "unknown status"}
	}
}
