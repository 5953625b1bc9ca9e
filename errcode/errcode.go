package errcode

// Code is a stable, link-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Command-link classes. All are local to one message exchange and
	// never fatal to the control loop.
	Framing  Code = "framing"  // unrecognized command type, no stream recovery
	Bounds   Code = "bounds"   // address/length outside the register map
	Checksum Code = "checksum" // integrity mismatch
	NACK     Code = "nack"     // peer rejected a write
	Timeout  Code = "timeout"
	LinkDown Code = "link_down"

	// Driver-chip bus. Reserved: the chip link never raises this itself,
	// anomalies are only visible through the raw status byte.
	BusFault Code = "bus_fault"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	if e.Msg != "" {
		return string(e.C) + ": " + e.Msg
	}
	return string(e.C)
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
