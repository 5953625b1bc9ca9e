package commandlink

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pgallienne/stepper-control-system/errcode"
	"github.com/pgallienne/stepper-control-system/registers"
	"github.com/pgallienne/stepper-control-system/wire"
)

func newServer(t *testing.T) (*Server, *registers.Map, *PipeEnd) {
	t.Helper()
	dev, host := NewPipe()
	regs := registers.NewMap()
	require.NoError(t, host.SetReadTimeout(100*time.Millisecond))
	return NewServer(dev, regs), regs, host
}

func reply(t *testing.T, host *PipeEnd, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	got := 0
	for got < n {
		k, err := host.Read(buf[got:])
		require.NoError(t, err)
		require.NotZero(t, k, "timed out waiting for %d reply bytes", n)
		got += k
	}
	return buf
}

func noReply(t *testing.T, host *PipeEnd) {
	t.Helper()
	buf := make([]byte, 1)
	n, err := host.Read(buf)
	require.NoError(t, err)
	require.Zero(t, n, "unexpected reply byte %#02x", buf[0])
}

func TestServer_PollWithoutData(t *testing.T) {
	srv, _, _ := newServer(t)
	require.NoError(t, srv.Poll())
}

func TestServer_WriteReadRoundtrip(t *testing.T) {
	srv, _, host := newServer(t)

	// Every valid (addr, len) window in the map.
	for addr := 0; addr < registers.MapSize; addr++ {
		for n := 0; n <= wire.MaxPayload && addr+n <= registers.MapSize; n++ {
			data := make([]byte, n)
			for i := range data {
				data[i] = byte(addr + i + 1)
			}
			host.Write(wire.EncodeWrite(byte(addr), data))
			require.NoError(t, srv.Poll())
			require.NoError(t, wire.ParseWriteReply(byte(addr), reply(t, host, wire.ReplyStatusLen)))

			host.Write(wire.EncodeRead(byte(addr), byte(n)))
			require.NoError(t, srv.Poll())
			got, err := wire.ParseReadReply(byte(addr), byte(n), reply(t, host, n+3))
			require.NoError(t, err)
			require.Equal(t, data, got)
		}
	}
}

func TestServer_CorruptedWriteNACKedAndIgnored(t *testing.T) {
	payload := []byte{0xAA, 0x55, 0x0F}
	frame := wire.EncodeWrite(registers.RegMotor1TargetPos, payload)

	// Flipping any single bit of the address, payload or checksum bytes
	// must produce a NACK and leave the map untouched.
	for i := 1; i < len(frame); i++ {
		if i == 2 {
			continue // length byte changes the frame size itself, below
		}
		for bit := 0; bit < 8; bit++ {
			srv, regs, host := newServer(t)
			bad := append([]byte(nil), frame...)
			bad[i] ^= 1 << bit

			host.Write(bad)
			err := srv.Poll()
			require.Error(t, err, "byte %d bit %d accepted", i, bit)

			if errcode.Of(err) == errcode.Checksum {
				got := reply(t, host, wire.ReplyStatusLen)
				require.Equal(t, byte(wire.StatusNACK), got[1])
			}
			for addr := 0; addr < registers.MapSize; addr++ {
				b, _ := regs.ReadByte(addr)
				require.Zero(t, b, "register %#02x mutated", addr)
			}
		}
	}
}

func TestServer_ShrunkLengthFailsChecksum(t *testing.T) {
	srv, regs, host := newServer(t)
	bad := wire.EncodeWrite(registers.RegMotor1MaxSpeed, []byte{0x34})
	bad[2] = 0 // declare no payload; data byte is now read as the checksum

	host.Write(bad)
	err := srv.Poll()
	require.Equal(t, errcode.Checksum, errcode.Of(err))
	got := reply(t, host, wire.ReplyStatusLen)
	require.Equal(t, byte(wire.StatusNACK), got[1])
	b, _ := regs.ReadByte(registers.RegMotor1MaxSpeed)
	require.Zero(t, b)
}

func TestServer_UnknownCommandDropped(t *testing.T) {
	srv, regs, host := newServer(t)
	host.Write([]byte{0x7E, 0x10, 0x01})
	err := srv.Poll()
	require.Equal(t, errcode.Framing, errcode.Of(err))
	noReply(t, host)
	b, _ := regs.ReadByte(registers.RegMotor1Control)
	require.Zero(t, b)
	// No recovery is defined for this case: trailing bytes of the bad
	// message stay in the stream and later frames may desynchronize.
}

func TestServer_OutOfBoundsWriteRejectedAndStreamStaysAligned(t *testing.T) {
	srv, regs, host := newServer(t)

	// addr = mapSize-1 with len 2 exceeds the map.
	host.Write(wire.EncodeWrite(registers.MapSize-1, []byte{0x01, 0x02}))
	err := srv.Poll()
	require.Equal(t, errcode.Bounds, errcode.Of(err))
	noReply(t, host)
	b, _ := regs.ReadByte(registers.MapSize - 1)
	require.Zero(t, b)

	// The trailing bytes were drained: the next frame parses cleanly.
	host.Write(wire.EncodeWrite(registers.RegMotor1Control, []byte{registers.CtrlStart}))
	require.NoError(t, srv.Poll())
	require.NoError(t, wire.ParseWriteReply(registers.RegMotor1Control, reply(t, host, wire.ReplyStatusLen)))
	b, _ = regs.ReadByte(registers.RegMotor1Control)
	require.Equal(t, byte(registers.CtrlStart), b)
}

func TestServer_OversizedPayloadRejected(t *testing.T) {
	srv, _, host := newServer(t)
	data := make([]byte, wire.MaxPayload+1)
	host.Write(wire.EncodeWrite(0x00, data))
	err := srv.Poll()
	require.Equal(t, errcode.Bounds, errcode.Of(err))
	noReply(t, host)

	host.Write(wire.EncodeRead(registers.RegStatus, 1))
	require.NoError(t, srv.Poll())
	_, err = wire.ParseReadReply(registers.RegStatus, 1, reply(t, host, 4))
	require.NoError(t, err)
}

func TestServer_CorruptedReadDroppedSilently(t *testing.T) {
	srv, _, host := newServer(t)
	frame := wire.EncodeRead(registers.RegStatus, 1)
	frame[3] ^= 0x01

	host.Write(frame)
	err := srv.Poll()
	require.Equal(t, errcode.Checksum, errcode.Of(err))
	// Unlike a bad WRITE there is no NACK; the host only sees its own
	// read timeout expire.
	noReply(t, host)
}
