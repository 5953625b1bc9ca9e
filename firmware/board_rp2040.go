//go:build rp2040

package firmware

import (
	"context"
	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"github.com/pgallienne/stepper-control-system/drivers/tmc2130"
	"github.com/pgallienne/stepper-control-system/switches"
)

// Revision-A board wiring.
const (
	linkBaud  = 115200
	uartTXPin = machine.Pin(0)
	uartRXPin = machine.Pin(1)

	spiFreq    = 500_000
	spiMISOPin = machine.Pin(16)
	spiCS1Pin  = machine.Pin(17)
	spiCS2Pin  = machine.Pin(2)
	spiSCKPin  = machine.Pin(18)
	spiMOSIPin = machine.Pin(19)

	switch1Pin = machine.Pin(20)
	switch2Pin = machine.Pin(21)
)

// uartLinkPort adapts uartx to the command-link port contract: Buffered is
// the non-blocking probe, ReadByte blocks until a byte arrives.
type uartLinkPort struct{ u *uartx.UART }

func (p *uartLinkPort) Buffered() int { return p.u.Buffered() }

func (p *uartLinkPort) ReadByte() (byte, error) {
	var b [1]byte
	for {
		n, err := p.u.RecvSomeContext(context.Background(), b[:])
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return b[0], nil
		}
	}
}

func (p *uartLinkPort) Write(b []byte) (int, error) { return p.u.Write(b) }

func csPin(pin machine.Pin) tmc2130.PinOutput {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.High() // deselected
	return func(high bool) { pin.Set(high) }
}

func switchPin(pin machine.Pin) switches.PinInput {
	pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return pin.Get
}

// NewPicoBoard configures the real peripherals: UART0 to the host, SPI0
// shared by both TMC2130s (mode 3), switch inputs with pull-ups.
func NewPicoBoard() (Board, error) {
	hw := uartx.UART0
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: linkBaud,
		TX:       uartTXPin,
		RX:       uartRXPin,
	}); err != nil {
		return Board{}, err
	}

	if err := machine.SPI0.Configure(machine.SPIConfig{
		Frequency: spiFreq,
		SCK:       spiSCKPin,
		SDO:       spiMOSIPin,
		SDI:       spiMISOPin,
		Mode:      3,
	}); err != nil {
		return Board{}, err
	}

	return Board{
		Link:        &uartLinkPort{u: hw},
		SPI:         machine.SPI0,
		ChipSelects: [2]tmc2130.PinOutput{csPin(spiCS1Pin), csPin(spiCS2Pin)},
		Switches:    [2]switches.PinInput{switchPin(switch1Pin), switchPin(switch2Pin)},
	}, nil
}
