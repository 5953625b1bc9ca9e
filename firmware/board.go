// Package firmware assembles the controller subsystems and runs the
// cooperative control loop.
package firmware

import (
	"tinygo.org/x/drivers"

	"github.com/pgallienne/stepper-control-system/commandlink"
	"github.com/pgallienne/stepper-control-system/drivers/tmc2130"
	"github.com/pgallienne/stepper-control-system/switches"
)

// Board is everything the control loop needs from the hardware. The rp2040
// build wires the real peripherals; the host build provides fakes for tests
// and the simulator.
type Board struct {
	// Link is the host-facing serial port.
	Link commandlink.Port

	// SPI is the bus shared by both driver chips; each chip has its own
	// select line, asserted only for the duration of one transfer.
	SPI         drivers.SPI
	ChipSelects [2]tmc2130.PinOutput

	// Switch inputs, idle high with pull-ups.
	Switches [2]switches.PinInput
}
