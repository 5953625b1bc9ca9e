// Package link is the host side of the serial register protocol.
package link

import (
	"encoding/binary"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/pgallienne/stepper-control-system/errcode"
	"github.com/pgallienne/stepper-control-system/wire"
)

// Port is the subset of a serial port the client needs. go.bug.st/serial
// ports satisfy it directly; tests use an in-memory pipe.
type Port interface {
	io.ReadWriter
	SetReadTimeout(time.Duration) error
	ResetInputBuffer() error
}

// DefaultTimeout bounds each reply read. The device produces no affirmative
// signal for most rejection classes, so the timeout is the host's only
// recovery trigger.
const DefaultTimeout = 200 * time.Millisecond

// Client performs register exchanges over a shared port. All exchanges are
// serialized; after any protocol error the input buffer is flushed so the
// next exchange starts on a frame boundary.
type Client struct {
	mu      sync.Mutex
	port    Port
	timeout time.Duration
}

func NewClient(port Port, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		return nil, err
	}
	return &Client{port: port, timeout: timeout}, nil
}

// Open connects to a serial device and returns a client over it.
func Open(device string, baud int, timeout time.Duration) (*Client, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, err
	}
	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, err
	}
	return NewClient(port, timeout)
}

// Close releases the underlying port when it supports closing.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.port.(io.Closer); ok {
		return cl.Close()
	}
	return nil
}

// WriteRegister sends data to addr and waits for the ACK.
func (c *Client) WriteRegister(addr byte, data []byte) error {
	if len(data) > wire.MaxPayload {
		return &errcode.E{C: errcode.Bounds, Op: "write", Msg: "payload too long"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(wire.EncodeWrite(addr, data)); err != nil {
		return err
	}
	var reply [wire.ReplyStatusLen]byte
	if err := c.recv(reply[:]); err != nil {
		c.flush()
		return err
	}
	if err := wire.ParseWriteReply(addr, reply[:]); err != nil {
		c.flush()
		return err
	}
	return nil
}

// ReadRegister fetches n bytes from addr.
func (c *Client) ReadRegister(addr byte, n int) ([]byte, error) {
	if n > wire.MaxPayload {
		return nil, &errcode.E{C: errcode.Bounds, Op: "read", Msg: "length too long"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.send(wire.EncodeRead(addr, byte(n))); err != nil {
		return nil, err
	}
	reply := make([]byte, n+3)
	if err := c.recv(reply); err != nil {
		c.flush()
		return nil, err
	}
	data, err := wire.ParseReadReply(addr, byte(n), reply)
	if err != nil {
		c.flush()
		return nil, err
	}
	return data, nil
}

// Little-endian typed views matching the device's field encoding.

func (c *Client) ReadU8(addr byte) (byte, error) {
	b, err := c.ReadRegister(addr, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Client) ReadU16(addr byte) (uint16, error) {
	b, err := c.ReadRegister(addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (c *Client) ReadI32(addr byte) (int32, error) {
	b, err := c.ReadRegister(addr, 4)
	if err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(b)), nil
}

func (c *Client) WriteU8(addr, v byte) error {
	return c.WriteRegister(addr, []byte{v})
}

func (c *Client) WriteU16(addr byte, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return c.WriteRegister(addr, b[:])
}

func (c *Client) WriteI32(addr byte, v int32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return c.WriteRegister(addr, b[:])
}

func (c *Client) send(frame []byte) error {
	n, err := c.port.Write(frame)
	if err != nil {
		return &errcode.E{C: errcode.LinkDown, Op: "send", Err: err}
	}
	if n != len(frame) {
		return &errcode.E{C: errcode.LinkDown, Op: "send", Msg: "short write"}
	}
	return nil
}

// recv fills buf, treating a zero-byte read as the deadline expiring.
func (c *Client) recv(buf []byte) error {
	got := 0
	for got < len(buf) {
		n, err := c.port.Read(buf[got:])
		if err != nil {
			return &errcode.E{C: errcode.LinkDown, Op: "recv", Err: err}
		}
		if n == 0 {
			return &errcode.E{C: errcode.Timeout, Op: "recv"}
		}
		got += n
	}
	return nil
}

// flush drops whatever is mid-flight so the next exchange resynchronizes on
// a frame boundary. Best effort; errors here are not actionable.
func (c *Client) flush() {
	c.port.SetReadTimeout(20 * time.Millisecond)
	junk := make([]byte, 256)
	for {
		n, err := c.port.Read(junk)
		if err != nil || n == 0 {
			break
		}
	}
	c.port.ResetInputBuffer()
	c.port.SetReadTimeout(c.timeout)
}
