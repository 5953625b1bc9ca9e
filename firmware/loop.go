package firmware

import (
	"context"
	"time"

	"github.com/pgallienne/stepper-control-system/commandlink"
	"github.com/pgallienne/stepper-control-system/drivers/tmc2130"
	"github.com/pgallienne/stepper-control-system/motion"
	"github.com/pgallienne/stepper-control-system/registers"
	"github.com/pgallienne/stepper-control-system/switches"
)

// Loop is the single-threaded cooperative scheduler. Each iteration runs, in
// fixed order: command-link poll, motion command ingest, switch scan, motion
// status/position synthesis. The register map is the only shared resource
// and all of it goes through guarded accessors, so no other synchronization
// exists here.
type Loop struct {
	// Interval paces iterations when running under Run. Zero means tight.
	Interval time.Duration

	regs     *registers.Map
	link     *commandlink.Server
	motion   *motion.Controller
	switches *switches.Scanner
	chips    [2]*tmc2130.Device
}

// New wires the subsystems and configures both driver chips.
func New(b Board, regs *registers.Map) (*Loop, error) {
	l := &Loop{
		Interval: time.Millisecond,
		regs:     regs,
		link:     commandlink.NewServer(b.Link, regs),
		motion:   motion.NewController(regs),
		switches: switches.NewScanner(regs, b.Switches[0], b.Switches[1]),
	}
	for i, cs := range b.ChipSelects {
		l.chips[i] = tmc2130.New(b.SPI, cs)
		if err := l.chips[i].Setup(tmc2130.DefaultConfig()); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Chip exposes one driver chip, mainly so bring-up code can inspect its raw
// status byte.
func (l *Loop) Chip(i int) *tmc2130.Device { return l.chips[i] }

// Step runs one iteration. Link-level rejections are local to one message
// and never stop the loop; the error is returned for visibility only.
func (l *Loop) Step() error {
	err := l.link.Poll()
	l.motion.IngestCommands()
	l.switches.Update()
	l.motion.Synthesize()
	return err
}

// Run iterates until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		l.Step()
		if l.Interval > 0 {
			time.Sleep(l.Interval)
		}
	}
}
