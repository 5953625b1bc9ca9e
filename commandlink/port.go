package commandlink

// Port is the byte stream the server reads commands from and writes replies
// to. Buffered is the non-blocking "data available" probe that gates each
// Poll; ReadByte blocks until a byte arrives. There is deliberately no read
// deadline: once a message start has been seen the server commits to the
// declared byte count, so a host that stops mid-message stalls that Poll.
type Port interface {
	Buffered() int
	ReadByte() (byte, error)
	Write(p []byte) (int, error)
}

func readFull(p Port, buf []byte) error {
	for i := range buf {
		b, err := p.ReadByte()
		if err != nil {
			return err
		}
		buf[i] = b
	}
	return nil
}
