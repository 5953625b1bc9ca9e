// Package registers defines the shared register bank that is the single
// source of truth exchanged between the host link, the motion controller
// and the switch scanner.
package registers

// Register addresses for the current board revision. Multi-byte fields are
// little-endian and span contiguous addresses starting at the listed one.
const (
	// Status block (read-only for the host).
	RegStatus       = 0x00 // bit0 ready, bit1 M1 moving, bit2 M2 moving, bit3/4 homing (reserved)
	RegSwitchStatus = 0x01 // bit0 SW1 pressed (active low), bit1 SW2 pressed
	RegErrorFlags   = 0x02 // reserved, never set by current logic

	// Motor 1.
	RegMotor1Control    = 0x10 // bit0 start, bit1 stop, bit2 home (reserved)
	RegMotor1TargetPos  = 0x11 // i32
	RegMotor1CurrentPos = 0x15 // i32, read-only for the host
	RegMotor1MaxSpeed   = 0x19 // u16, steps/s
	RegMotor1Accel      = 0x1B // u16, steps/s^2
	RegMotor1Config     = 0x1D // u16, driver-chip config word

	// Motor 2, same shape.
	RegMotor2Control    = 0x20
	RegMotor2TargetPos  = 0x21
	RegMotor2CurrentPos = 0x25
	RegMotor2MaxSpeed   = 0x29
	RegMotor2Accel      = 0x2B
	RegMotor2Config     = 0x2D

	// MapSize is the highest defined address + 1 (config word spills one past).
	MapSize = RegMotor2Config + 1
)

// Status register bits.
const (
	StatusReady    = 1 << 0
	StatusM1Moving = 1 << 1
	StatusM2Moving = 1 << 2
	StatusM1Homing = 1 << 3 // reserved
	StatusM2Homing = 1 << 4 // reserved
)

// Control register bits. Edge-triggered commands: the consumer clears them
// exactly once on ingestion.
const (
	CtrlStart = 1 << 0
	CtrlStop  = 1 << 1
	CtrlHome  = 1 << 2 // reserved, no backing logic
)

// Switch status bits, one per channel.
const (
	SwitchCh1 = 1 << 0
	SwitchCh2 = 1 << 1
)

// Error flag bits. Defined so fault reporting (driver-chip status, unexpected
// limit activity while moving) can be added without a map change.
const (
	ErrDriverFault = 1 << 0 // reserved
	ErrLimitUnexp  = 1 << 1 // reserved
)
