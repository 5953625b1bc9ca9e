package tmc2130

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// PinOutput sets the logical level of an output pin. The chip-select line is
// active low; true means deselected.
type PinOutput func(bool)

// Driver configuration applied by Setup. Current scales are in 1/31 steps of
// the sense-resistor maximum, per the datasheet.
type Config struct {
	RunCurrent  uint8 // IRUN, 0..31
	HoldCurrent uint8 // IHOLD, 0..31
	HoldDelay   uint8 // IHOLDDELAY, 0..15
	TPowerDown  uint8 // standstill delay before power down, ~2^18 clocks/LSB
	Microsteps  uint16
}

func DefaultConfig() Config {
	return Config{
		RunCurrent:  10,
		HoldCurrent: 5,
		HoldDelay:   4,
		TPowerDown:  20,
		Microsteps:  16,
	}
}

func (c Config) Validate() error {
	if c.RunCurrent > 31 || c.HoldCurrent > 31 {
		return errors.New("current scale must be 0..31")
	}
	if c.HoldDelay > 15 {
		return errors.New("HoldDelay must be 0..15")
	}
	if mresFromMicrosteps(c.Microsteps) < 0 {
		return errors.New("Microsteps must be a power of two in 1..256")
	}
	return nil
}

// Device is one TMC2130 on a shared SPI bus behind its own select line.
// It is stateless beyond the line and the last raw status byte.
type Device struct {
	spi drivers.SPI
	cs  PinOutput

	// delay is swappable so tests do not sleep.
	delay func(time.Duration)

	status byte
	w, r   [5]byte
}

// csSettle pads both edges of the select line; readSettle separates the two
// phases of a register read.
const (
	csSettle   = 2 * time.Microsecond
	readSettle = 50 * time.Microsecond
)

func New(spi drivers.SPI, cs PinOutput) *Device {
	cs(true)
	return &Device{spi: spi, cs: cs, delay: time.Sleep}
}

// transfer clocks one 40-bit datagram with the select line asserted for
// exactly the duration of the transfer.
func (d *Device) transfer() error {
	d.cs(false)
	d.delay(csSettle)
	err := d.spi.Tx(d.w[:], d.r[:])
	d.delay(csSettle)
	d.cs(true)
	if err != nil {
		return err
	}
	d.status = d.r[0]
	return nil
}

// WriteRegister stores a 32-bit value, big-endian on the wire.
func (d *Device) WriteRegister(reg byte, value uint32) error {
	d.w[0] = reg | writeBit
	d.w[1] = byte(value >> 24)
	d.w[2] = byte(value >> 16)
	d.w[3] = byte(value >> 8)
	d.w[4] = byte(value)
	return d.transfer()
}

// ReadRegister fetches a 32-bit value. The chip pipelines reads by one
// transaction: the first transfer latches the address and returns stale
// data, the second clocks out the requested value. That one-transaction
// latency is part of the chip's contract and must not be collapsed.
func (d *Device) ReadRegister(reg byte) (uint32, error) {
	d.w[0] = reg &^ writeBit
	d.w[1], d.w[2], d.w[3], d.w[4] = 0, 0, 0, 0
	if err := d.transfer(); err != nil {
		return 0, err
	}
	d.delay(readSettle)

	// Dummy address; the data clocked out belongs to reg.
	d.w[0] = 0
	if err := d.transfer(); err != nil {
		return 0, err
	}
	v := uint32(d.r[1])<<24 | uint32(d.r[2])<<16 | uint32(d.r[3])<<8 | uint32(d.r[4])
	return v, nil
}

// Status returns the raw SPI status byte of the most recent transfer. No
// retry or fault handling happens at this layer.
func (d *Device) Status() byte { return d.status }

// ReadDriverStatus fetches DRV_STATUS for callers that want to inspect
// stall, temperature and short flags.
func (d *Device) ReadDriverStatus() (uint32, error) {
	return d.ReadRegister(regDRVSTATUS)
}

// Setup applies the power-on configuration: clears sticky reset/error flags,
// programs motor currents and the standstill power-down delay, and sets the
// chopper up for the configured microstep resolution with interpolation on.
func (d *Device) Setup(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := d.WriteRegister(regGSTAT, gstatReset|gstatDrvErr|gstatUvCp); err != nil {
		return err
	}
	ihold := uint32(cfg.HoldCurrent)<<iholdShift |
		uint32(cfg.RunCurrent)<<irunShift |
		uint32(cfg.HoldDelay)<<iholdDelayShift
	if err := d.WriteRegister(regIHoldIRun, ihold); err != nil {
		return err
	}
	if err := d.WriteRegister(regTPowerDown, uint32(cfg.TPowerDown)); err != nil {
		return err
	}
	return d.WriteRegister(regCHOPCONF, d.chopconf(cfg))
}

// chopconf builds the chopper word: TOFF=3, HSTRT=4, HEND=1, TBL=2,
// SpreadCycle, plus the configured microstep resolution.
func (d *Device) chopconf(cfg Config) uint32 {
	mres := uint32(mresFromMicrosteps(cfg.Microsteps))
	return 3<<chopToffShift |
		4<<chopHstrtShift |
		1<<chopHendShift |
		2<<chopTblShift |
		mres<<chopMresShift |
		chopIntpol
}

// mresFromMicrosteps maps a microstep count onto the MRES code (0 = 256
// microsteps, 8 = full step). Returns -1 for an invalid count.
func mresFromMicrosteps(ms uint16) int {
	code := 0
	for n := uint16(256); n >= 1; n >>= 1 {
		if ms == n {
			return code
		}
		code++
	}
	return -1
}
