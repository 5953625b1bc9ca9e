// Package agent bridges the controller board to MQTT: it applies remote
// commands to board registers over the serial link and publishes periodic
// status snapshots.
package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang/glog"

	"github.com/pgallienne/stepper-control-system/agent/link"
	"github.com/pgallienne/stepper-control-system/registers"
)

// Publisher is where status snapshots go. The MQTT bridge implements it;
// tests substitute a recorder.
type Publisher interface {
	PublishStatus(s Status) error
}

// Status is one snapshot of the board's readable state.
type Status struct {
	Timestamp   int64 `json:"timestamp"`
	StatusFlags byte  `json:"status_flags"`
	SwitchFlags byte  `json:"switch_flags"`
	ErrorFlags  byte  `json:"error_flags"`
	Motor1Pos   int32 `json:"motor1_pos"`
	Motor2Pos   int32 `json:"motor2_pos"`
}

// equalState ignores the timestamp so unchanged snapshots are not republished.
func (s Status) equalState(o Status) bool {
	return s.StatusFlags == o.StatusFlags &&
		s.SwitchFlags == o.SwitchFlags &&
		s.ErrorFlags == o.ErrorFlags &&
		s.Motor1Pos == o.Motor1Pos &&
		s.Motor2Pos == o.Motor2Pos
}

// Command is a remote request against one motor.
type Command struct {
	Action string `json:"action"`
	Motor  int    `json:"motor"` // 1 or 2
	Value  *int64 `json:"value,omitempty"`
}

// motorRegs maps a motor number onto its register block.
type motorRegs struct {
	control   byte
	targetPos byte
	maxSpeed  byte
	accel     byte
	config    byte
}

var motors = map[int]motorRegs{
	1: {
		control:   registers.RegMotor1Control,
		targetPos: registers.RegMotor1TargetPos,
		maxSpeed:  registers.RegMotor1MaxSpeed,
		accel:     registers.RegMotor1Accel,
		config:    registers.RegMotor1Config,
	},
	2: {
		control:   registers.RegMotor2Control,
		targetPos: registers.RegMotor2TargetPos,
		maxSpeed:  registers.RegMotor2MaxSpeed,
		accel:     registers.RegMotor2Accel,
		config:    registers.RegMotor2Config,
	},
}

// Agent owns the serial client and pushes state between the board and the
// publisher.
type Agent struct {
	cfg    *Config
	client *link.Client
	pub    Publisher

	last    Status
	hasLast bool
}

func New(cfg *Config, client *link.Client, pub Publisher) *Agent {
	return &Agent{cfg: cfg, client: client, pub: pub}
}

// SetPublisher installs the status sink. Used when the publisher needs the
// agent's command handler first and so cannot exist before the agent does.
func (a *Agent) SetPublisher(pub Publisher) { a.pub = pub }

// ApplyMotorSettings pushes the configured per-motor speed, acceleration and
// driver config words to the board. Called once at startup. Individual writes
// that the board refuses are logged and skipped so one bad setting does not
// block the rest; the count of applied settings is returned.
func (a *Agent) ApplyMotorSettings() int {
	applied := 0
	push := func(motor int, name string, addr byte, v uint16) {
		if v == 0 {
			return
		}
		if err := a.client.WriteU16(addr, v); err != nil {
			glog.Warningf("motor %d %s not applied: %v", motor, name, err)
			return
		}
		applied++
	}
	for i, m := range a.cfg.Motors {
		regs := motors[i+1]
		push(i+1, "max_speed", regs.maxSpeed, m.MaxSpeed)
		push(i+1, "accel", regs.accel, m.Accel)
		push(i+1, "config", regs.config, m.Config)
	}
	return applied
}

// HandleCommand applies one remote command. Errors are logged, not fatal:
// the host supplies its own retry policy.
func (a *Agent) HandleCommand(payload []byte) {
	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		glog.Errorf("command: bad payload: %v", err)
		return
	}
	regs, ok := motors[cmd.Motor]
	if !ok {
		glog.Warningf("command %q: unknown motor %d", cmd.Action, cmd.Motor)
		return
	}

	var err error
	switch cmd.Action {
	case "set_target":
		if cmd.Value == nil {
			glog.Warning("set_target: missing value")
			return
		}
		// Setting a target also triggers the move.
		if err = a.client.WriteI32(regs.targetPos, int32(*cmd.Value)); err == nil {
			err = a.client.WriteU8(regs.control, registers.CtrlStart)
		}
	case "start_move":
		err = a.client.WriteU8(regs.control, registers.CtrlStart)
	case "stop_move":
		err = a.client.WriteU8(regs.control, registers.CtrlStop)
	case "set_speed":
		if cmd.Value == nil {
			glog.Warning("set_speed: missing value")
			return
		}
		err = a.client.WriteU16(regs.maxSpeed, uint16(*cmd.Value))
	case "set_accel":
		if cmd.Value == nil {
			glog.Warning("set_accel: missing value")
			return
		}
		err = a.client.WriteU16(regs.accel, uint16(*cmd.Value))
	default:
		glog.Warningf("unknown action %q for motor %d", cmd.Action, cmd.Motor)
		return
	}
	if err != nil {
		glog.Errorf("command %q motor %d: %v", cmd.Action, cmd.Motor, err)
	}
}

// ReadStatus collects one snapshot from the board.
func (a *Agent) ReadStatus() (Status, error) {
	var s Status
	var err error
	if s.StatusFlags, err = a.client.ReadU8(registers.RegStatus); err != nil {
		return s, err
	}
	if s.SwitchFlags, err = a.client.ReadU8(registers.RegSwitchStatus); err != nil {
		return s, err
	}
	if s.ErrorFlags, err = a.client.ReadU8(registers.RegErrorFlags); err != nil {
		return s, err
	}
	if s.Motor1Pos, err = a.client.ReadI32(registers.RegMotor1CurrentPos); err != nil {
		return s, err
	}
	if s.Motor2Pos, err = a.client.ReadI32(registers.RegMotor2CurrentPos); err != nil {
		return s, err
	}
	s.Timestamp = time.Now().Unix()
	return s, nil
}

// Run drives the status loop until the context is cancelled. Snapshots are
// published only when the state changed since the previous publish.
func (a *Agent) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.StatusInterval())
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		s, err := a.ReadStatus()
		if err != nil {
			failures++
			glog.Errorf("status read failed (%d consecutive): %v", failures, err)
			continue
		}
		failures = 0

		if a.hasLast && s.equalState(a.last) {
			continue
		}
		if err := a.pub.PublishStatus(s); err != nil {
			glog.Errorf("status publish: %v", err)
			continue
		}
		a.last, a.hasLast = s, true
	}
}
