// Package tmc2130 drives a TMC2130 stepper driver over its SPI register
// interface.
package tmc2130

// Register sub-addresses (write access sets the MSB of the address byte).
const (
	writeBit = 0x80

	// General configuration / status
	regGCONF      = 0x00 // R/W
	regGSTAT      = 0x01 // R/Clear, write 1 to clear
	regIOIN       = 0x04 // R
	regIHoldIRun  = 0x10 // W
	regTPowerDown = 0x11 // W
	regTSTEP      = 0x12 // R
	regTPWMTHRS   = 0x13 // W
	regTCOOLTHRS  = 0x14 // W
	regTHIGH      = 0x15 // W

	// Chopper / cool step / stall guard
	regCHOPCONF  = 0x6C // R/W
	regCOOLCONF  = 0x6D // W
	regDRVSTATUS = 0x6F // R
	regPWMCONF   = 0x70 // W
)

// GSTAT bits (write 1 to clear).
const (
	gstatReset  = 1 << 0
	gstatDrvErr = 1 << 1
	gstatUvCp   = 1 << 2
)

// IHOLD_IRUN field shifts.
const (
	iholdShift      = 0  // IHOLD(4:0)
	irunShift       = 8  // IRUN(12:8)
	iholdDelayShift = 16 // IHOLDDELAY(19:16)
)

// CHOPCONF field shifts.
const (
	chopToffShift  = 0  // TOFF(3:0)
	chopHstrtShift = 4  // HSTRT(6:4)
	chopHendShift  = 7  // HEND(10:7)
	chopTblShift   = 15 // TBL(16:15)
	chopMresShift  = 24 // MRES(27:24)
	chopIntpol     = 1 << 28
)

// SPI status byte bits, returned as the first byte of every transfer. This
// layer keeps the byte raw; interpretation is the caller's business.
const (
	StatusResetFlag   = 1 << 0
	StatusDriverError = 1 << 1
	StatusStallGuard  = 1 << 2
	StatusStandstill  = 1 << 3
)
