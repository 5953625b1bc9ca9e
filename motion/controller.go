// Package motion runs the per-axis state machine: it turns register-level
// commands into motor state and synthesizes position and status back into
// the map.
package motion

import (
	"time"

	"github.com/pgallienne/stepper-control-system/registers"
)

type State uint8

const (
	StateIdle State = iota
	StateMoving
	// StateHoming is reserved. The control bit and the status bits exist in
	// the register map but no transition logic backs them yet; the state is
	// kept so homing can be added without a register-layout change.
	StateHoming
)

// DefaultIngestInterval throttles command-bit ingestion independently of the
// loop rate. Position and status synthesis is not throttled.
const DefaultIngestInterval = 10 * time.Millisecond

// axisRegs is one axis's register block.
type axisRegs struct {
	control    int
	targetPos  int
	currentPos int
	maxSpeed   int
	accel      int
	movingBit  byte
}

type axis struct {
	regs axisRegs

	state    State
	current  int32
	target   int32
	maxSpeed uint16
	accel    uint16
}

// op is one decoded axis command. Commands are extracted from the control
// registers with an atomic read-and-clear, so each is applied exactly once
// no matter how ticks and host writes interleave.
type op uint8

const (
	opStart op = iota
	opStop
)

type command struct {
	axis int
	op   op
}

// Controller owns both axis state machines.
type Controller struct {
	regs *registers.Map
	axes [2]axis

	ingestEvery time.Duration
	lastIngest  time.Time
	ready       bool

	now func() time.Time
}

func NewController(regs *registers.Map) *Controller {
	c := &Controller{
		regs:        regs,
		ingestEvery: DefaultIngestInterval,
		now:         time.Now,
	}
	c.axes[0].regs = axisRegs{
		control:    registers.RegMotor1Control,
		targetPos:  registers.RegMotor1TargetPos,
		currentPos: registers.RegMotor1CurrentPos,
		maxSpeed:   registers.RegMotor1MaxSpeed,
		accel:      registers.RegMotor1Accel,
		movingBit:  registers.StatusM1Moving,
	}
	c.axes[1].regs = axisRegs{
		control:    registers.RegMotor2Control,
		targetPos:  registers.RegMotor2TargetPos,
		currentPos: registers.RegMotor2CurrentPos,
		maxSpeed:   registers.RegMotor2MaxSpeed,
		accel:      registers.RegMotor2Accel,
		movingBit:  registers.StatusM2Moving,
	}
	c.ready = true
	return c
}

// IngestCommands drains the edge-triggered control bits into commands and
// applies them. Rate-limited to the ingest interval; calls inside the window
// are no-ops.
func (c *Controller) IngestCommands() {
	now := c.now()
	if !c.lastIngest.IsZero() && now.Sub(c.lastIngest) < c.ingestEvery {
		return
	}
	c.lastIngest = now

	var cmds []command
	for i := range c.axes {
		got, err := c.regs.ConsumeBits(c.axes[i].regs.control, registers.CtrlStart|registers.CtrlStop)
		if err != nil {
			continue
		}
		// Start before stop, matching bit order: a frame carrying both
		// ends stopped.
		if got&registers.CtrlStart != 0 {
			cmds = append(cmds, command{axis: i, op: opStart})
		}
		if got&registers.CtrlStop != 0 {
			cmds = append(cmds, command{axis: i, op: opStop})
		}
		// CtrlHome is reserved: left in the register, never acted on.
	}
	for _, cmd := range cmds {
		c.apply(cmd)
	}
}

func (c *Controller) apply(cmd command) {
	a := &c.axes[cmd.axis]
	switch cmd.op {
	case opStart:
		a.target, _ = c.regs.ReadI32(a.regs.targetPos)
		a.maxSpeed, _ = c.regs.ReadU16(a.regs.maxSpeed)
		a.accel, _ = c.regs.ReadU16(a.regs.accel)
		a.state = StateMoving
	case opStop:
		// Immediate halt, no ramp-down.
		a.state = StateIdle
	}
}

// Synthesize runs once per loop iteration: it advances moving axes and
// writes position and status back to the map.
//
// The one-unit-per-tick advance is a placeholder, not a motion profile. A
// production step generator must ramp velocity from maxSpeed and accel off a
// hardware timer; the profile shape is a product decision and is not
// invented here.
func (c *Controller) Synthesize() {
	for i := range c.axes {
		a := &c.axes[i]
		if a.state == StateMoving {
			switch {
			case a.current < a.target:
				a.current++
			case a.current > a.target:
				a.current--
			}
			if a.current == a.target {
				a.state = StateIdle
			}
		}
		c.regs.WriteI32(a.regs.currentPos, a.current)
	}

	var set, clear byte
	if c.ready {
		set |= registers.StatusReady
	}
	for i := range c.axes {
		if c.axes[i].state == StateMoving {
			set |= c.axes[i].regs.movingBit
		} else {
			clear |= c.axes[i].regs.movingBit
		}
	}
	// Homing status bits stay reserved; error flags are defined in the map
	// but nothing populates them yet.
	c.regs.UpdateByte(registers.RegStatus, set, clear)
}

// AxisState reports the state machine position of one axis.
func (c *Controller) AxisState(i int) State {
	if i < 0 || i >= len(c.axes) {
		return StateIdle
	}
	return c.axes[i].state
}

// Position reports the internal current position of one axis.
func (c *Controller) Position(i int) int32 {
	if i < 0 || i >= len(c.axes) {
		return 0
	}
	return c.axes[i].current
}
