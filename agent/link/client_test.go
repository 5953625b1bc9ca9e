package link

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pgallienne/stepper-control-system/commandlink"
	"github.com/pgallienne/stepper-control-system/errcode"
	"github.com/pgallienne/stepper-control-system/registers"
)

// startServer polls a real device-side server over an in-memory link. The
// returned device end lets tests inject stray bytes toward the client.
func startServer(t *testing.T) (*Client, *registers.Map, *commandlink.PipeEnd) {
	t.Helper()
	dev, host := commandlink.NewPipe()
	regs := registers.NewMap()
	srv := commandlink.NewServer(dev, regs)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		for ctx.Err() == nil {
			srv.Poll()
			time.Sleep(time.Millisecond)
		}
	}()

	c, err := NewClient(host, 250*time.Millisecond)
	require.NoError(t, err)
	return c, regs, dev
}

func TestClient_WriteReadRoundtrip(t *testing.T) {
	c, regs, _ := startServer(t)

	require.NoError(t, c.WriteRegister(registers.RegMotor1TargetPos, []byte{1, 2, 3, 4}))
	got, err := c.ReadRegister(registers.RegMotor1TargetPos, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, got)

	// The bytes really landed in the device map.
	v, err := regs.ReadI32(registers.RegMotor1TargetPos)
	require.NoError(t, err)
	require.Equal(t, int32(0x04030201), v)
}

func TestClient_TypedAccessors(t *testing.T) {
	c, regs, _ := startServer(t)

	require.NoError(t, c.WriteU16(registers.RegMotor2MaxSpeed, 1200))
	require.NoError(t, c.WriteI32(registers.RegMotor2TargetPos, -42))

	v16, err := regs.ReadU16(registers.RegMotor2MaxSpeed)
	require.NoError(t, err)
	require.Equal(t, uint16(1200), v16)

	got, err := c.ReadI32(registers.RegMotor2TargetPos)
	require.NoError(t, err)
	require.Equal(t, int32(-42), got)

	regs.WriteByte(registers.RegStatus, registers.StatusReady)
	b, err := c.ReadU8(registers.RegStatus)
	require.NoError(t, err)
	require.Equal(t, byte(registers.StatusReady), b)
}

func TestClient_TimeoutWithoutDevice(t *testing.T) {
	_, host := commandlink.NewPipe()
	c, err := NewClient(host, 30*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.ReadRegister(registers.RegStatus, 1)
	require.Equal(t, errcode.Timeout, errcode.Of(err))
	require.Less(t, time.Since(start), time.Second)
}

func TestClient_ResynchronizesAfterGarbage(t *testing.T) {
	c, _, dev := startServer(t)

	// Stale bytes from an interrupted earlier exchange sit in the client's
	// receive buffer; the reply parser rejects them and the client flushes.
	dev.Write([]byte{0xDE, 0xAD, 0xBE})

	err := c.WriteRegister(registers.RegMotor1Control, []byte{registers.CtrlStart})
	require.Error(t, err)

	// After the flush the link is aligned again.
	require.NoError(t, c.WriteU16(registers.RegMotor1MaxSpeed, 100))
	v, err := c.ReadU16(registers.RegMotor1MaxSpeed)
	require.NoError(t, err)
	require.Equal(t, uint16(100), v)
}

func TestClient_OversizedRequestsRefusedLocally(t *testing.T) {
	c, _, _ := startServer(t)
	require.Equal(t, errcode.Bounds, errcode.Of(c.WriteRegister(0, make([]byte, 17))))
	_, err := c.ReadRegister(0, 17)
	require.Equal(t, errcode.Bounds, errcode.Of(err))
}
