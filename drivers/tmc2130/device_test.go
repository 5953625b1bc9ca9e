package tmc2130

import (
	"testing"
	"time"
)

// fakeBus emulates the chip's SPI pipeline: the data clocked out of any
// transfer belongs to the address latched by the transfer before it.
type fakeBus struct {
	t    *testing.T
	regs map[byte]uint32

	latched   byte
	selected  bool
	transfers int
}

func (f *fakeBus) Tx(w, r []byte) error {
	f.t.Helper()
	if !f.selected {
		f.t.Fatal("transfer without chip select asserted")
	}
	f.transfers++
	if len(w) != 5 || len(r) != 5 {
		f.t.Fatalf("datagram must be 5 bytes, got w=%d r=%d", len(w), len(r))
	}
	r[0] = StatusStandstill // arbitrary status for inspection

	// Response data reflects the previously latched address.
	prev := f.regs[f.latched]
	r[1], r[2], r[3], r[4] = byte(prev>>24), byte(prev>>16), byte(prev>>8), byte(prev)

	if w[0]&writeBit != 0 {
		addr := w[0] &^ writeBit
		f.regs[addr] = uint32(w[1])<<24 | uint32(w[2])<<16 | uint32(w[3])<<8 | uint32(w[4])
	} else {
		f.latched = w[0]
	}
	return nil
}

func (f *fakeBus) Transfer(b byte) (byte, error) { return 0, nil }

func newFakeDevice(t *testing.T) (*Device, *fakeBus, *int) {
	bus := &fakeBus{t: t, regs: map[byte]uint32{}}
	selects := 0
	d := New(bus, func(high bool) {
		if !high {
			selects++
		}
		bus.selected = !high
	})
	d.delay = func(time.Duration) {}
	return d, bus, &selects
}

func TestWriteRegister_Wire(t *testing.T) {
	d, bus, selects := newFakeDevice(t)
	if err := d.WriteRegister(regIHoldIRun, 0x000A0504); err != nil {
		t.Fatal(err)
	}
	if got := bus.regs[regIHoldIRun]; got != 0x000A0504 {
		t.Fatalf("wrote %08x", got)
	}
	if bus.transfers != 1 || *selects != 1 {
		t.Fatalf("write took %d transfers, %d selects", bus.transfers, *selects)
	}
	if bus.selected {
		t.Fatal("select line left asserted after transfer")
	}
}

func TestReadRegister_TwoPhase(t *testing.T) {
	d, bus, selects := newFakeDevice(t)
	bus.regs[regCHOPCONF] = 0x10000053
	bus.regs[0x00] = 0xFFFFFFFF // GCONF; must not leak into the result

	v, err := d.ReadRegister(regCHOPCONF)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x10000053 {
		t.Fatalf("read %08x, want value of the previously addressed register", v)
	}
	if bus.transfers != 2 {
		t.Fatalf("read took %d transfers, want exactly 2", bus.transfers)
	}
	if *selects != 2 {
		t.Fatal("select must be released between the two phases")
	}
	if d.Status() != StatusStandstill {
		t.Fatalf("raw status byte not retained: %02x", d.Status())
	}
}

func TestReadRegister_LatencyIsOneTransaction(t *testing.T) {
	d, bus, _ := newFakeDevice(t)
	bus.regs[regDRVSTATUS] = 0xAABBCCDD
	bus.latched = regGCONF
	bus.regs[regGCONF] = 0x11111111

	// The first phase of this read still clocks out the prior latch; only
	// the second phase carries DRV_STATUS.
	v, err := d.ReadDriverStatus()
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xAABBCCDD {
		t.Fatalf("got %08x", v)
	}
}

func TestSetup_ProgramsChip(t *testing.T) {
	d, bus, _ := newFakeDevice(t)
	if err := d.Setup(DefaultConfig()); err != nil {
		t.Fatal(err)
	}
	if bus.regs[regGSTAT] != gstatReset|gstatDrvErr|gstatUvCp {
		t.Fatalf("GSTAT %08x", bus.regs[regGSTAT])
	}
	if bus.regs[regIHoldIRun] != 5|10<<irunShift|4<<iholdDelayShift {
		t.Fatalf("IHOLD_IRUN %08x", bus.regs[regIHoldIRun])
	}
	if bus.regs[regTPowerDown] != 20 {
		t.Fatalf("TPOWERDOWN %08x", bus.regs[regTPowerDown])
	}
	chop := bus.regs[regCHOPCONF]
	if chop&chopIntpol == 0 {
		t.Fatal("interpolation not enabled")
	}
	if mres := chop >> chopMresShift & 0xF; mres != 4 {
		t.Fatalf("MRES %d, want 4 for 16 microsteps", mres)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RunCurrent = 32
	if cfg.Validate() == nil {
		t.Fatal("over-range current accepted")
	}
	cfg = DefaultConfig()
	cfg.Microsteps = 3
	if cfg.Validate() == nil {
		t.Fatal("non power-of-two microsteps accepted")
	}
}
