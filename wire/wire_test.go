package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pgallienne/stepper-control-system/errcode"
)

func TestChecksum(t *testing.T) {
	require.Equal(t, byte(0), Checksum(nil))
	require.Equal(t, byte(0x01^0x10^0x04), Checksum([]byte{0x01, 0x10, 0x04}))
	// Chunked and contiguous forms agree.
	require.Equal(t,
		Checksum([]byte{1, 2, 3, 4}),
		Checksum([]byte{1, 2}, []byte{3, 4}))
}

func TestEncodeRead(t *testing.T) {
	f := EncodeRead(0x15, 4)
	require.Equal(t, []byte{CmdRead, 0x15, 0x04, 0x01 ^ 0x15 ^ 0x04}, f)
}

func TestEncodeWrite(t *testing.T) {
	f := EncodeWrite(0x11, []byte{0xAA, 0x55})
	want := []byte{CmdWrite, 0x11, 0x02, 0xAA, 0x55, 0}
	want[5] = Checksum(want[:5])
	require.Equal(t, want, f)
}

func TestTrailLen(t *testing.T) {
	require.Equal(t, 1, Header{Cmd: CmdRead, Len: 9}.TrailLen())
	require.Equal(t, 6, Header{Cmd: CmdWrite, Len: 5}.TrailLen())
	require.Equal(t, -1, Header{Cmd: 0x7F}.TrailLen())
}

func TestParseReadReply(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	f := EncodeReadReply(0x25, data)
	got, err := ParseReadReply(0x25, 4, f)
	require.NoError(t, err)
	require.Equal(t, data, got)

	// Any single-bit corruption is rejected.
	for i := range f {
		for bit := 0; bit < 8; bit++ {
			bad := append([]byte(nil), f...)
			bad[i] ^= 1 << bit
			_, err := ParseReadReply(0x25, 4, bad)
			require.Error(t, err, "corruption at byte %d bit %d accepted", i, bit)
		}
	}
}

func TestParseWriteReply(t *testing.T) {
	require.NoError(t, ParseWriteReply(0x10, EncodeWriteReply(0x10, true)))

	err := ParseWriteReply(0x10, EncodeWriteReply(0x10, false))
	require.Equal(t, errcode.NACK, errcode.Of(err))

	err = ParseWriteReply(0x11, EncodeWriteReply(0x10, true))
	require.Equal(t, errcode.Framing, errcode.Of(err))

	bad := EncodeWriteReply(0x10, true)
	bad[2] ^= 0x40
	err = ParseWriteReply(0x10, bad)
	require.Equal(t, errcode.Checksum, errcode.Of(err))
}
