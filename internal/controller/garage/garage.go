// Package garage implements the garage-door device controller: three
// door contacts, actuated by pulsing the relay matching each requested
// door.
package garage

import (
	"fmt"
	"time"

	"github.com/lucasdietrich/caniot-controller/internal/caniot"
	"github.com/lucasdietrich/caniot-controller/internal/controller"
	"github.com/lucasdietrich/caniot-controller/internal/device"
	"github.com/lucasdietrich/caniot-controller/internal/scheduler"
)

// Door identifies one of the three tracked doors.
type Door int

const (
	DoorLeft Door = iota
	DoorRight
	DoorGate
)

// Config is the persisted configuration for one garage device.
type Config struct {
	PulseDurationMs int
}

// ConfigPatch carries only the fields a caller wants to change.
type ConfigPatch struct {
	PulseDurationMs *int
}

// SetStatus is the controller-specific action pulsing the relays for the
// given doors.
type SetStatus struct {
	Doors []Door
}

// Controller is the garage-door state machine.
type Controller struct {
	did    caniot.DeviceId
	cfg    Config
	status [3]bool
}

// New builds a garage controller for did with the given persisted config.
func New(did caniot.DeviceId, cfg Config) *Controller {
	return &Controller{did: did, cfg: cfg}
}

func (c *Controller) Kind() string { return "garage" }

func (c *Controller) GetConfig() any { return c.cfg }

func (c *Controller) PatchConfig(partial any, ctx *controller.ProcessContext) error {
	p, ok := partial.(ConfigPatch)
	if !ok {
		return fmt.Errorf("garage: unsupported config patch type %T", partial)
	}
	if p.PulseDurationMs != nil {
		c.cfg.PulseDurationMs = *p.PulseDurationMs
	}
	return nil
}

func (c *Controller) ResetConfig(ctx *controller.ProcessContext) error {
	c.cfg = Config{PulseDurationMs: 500}
	return nil
}

// HandleFrame tracks the three door-contact inputs from class-0
// telemetry.
func (c *Controller) HandleFrame(resp caniot.Response, measures *device.Measures, ctx *controller.ProcessContext) controller.Verdict {
	tel, ok := resp.Data.(caniot.TelemetryResponse)
	if !ok {
		return controller.NoVerdict
	}
	cls0, err := caniot.DecodeClass0Telemetry(tel.Payload)
	if err != nil {
		return controller.NoVerdict
	}
	c.status[DoorLeft] = cls0.In1
	c.status[DoorRight] = cls0.In2
	c.status[DoorGate] = cls0.In3
	return controller.NoVerdict
}

// HandleAction supports the controller-specific SetStatus action,
// pulsing the relay matching each requested door.
func (c *Controller) HandleAction(action controller.Action, ctx *controller.ProcessContext) controller.ActionVerdict {
	inner, ok := action.(controller.Inner)
	if !ok {
		return controller.Rejected("garage: not a controller action")
	}
	set, ok := inner.Payload.(SetStatus)
	if !ok {
		return controller.Rejected("garage: unsupported action payload")
	}
	if len(set.Doors) == 0 {
		return controller.Rejected("garage: no doors requested")
	}

	var cmd caniot.Class0Command
	for _, d := range set.Doors {
		switch d {
		case DoorLeft:
			cmd.Coc1 = caniot.XpsPulseOn
		case DoorRight:
			cmd.Coc2 = caniot.XpsPulseOn
		case DoorGate:
			cmd.Crl1 = caniot.XpsPulseOn
		default:
			return controller.Rejected("garage: unknown door")
		}
	}

	return controller.PendingOn(caniot.CommandRequest{Endpoint: caniot.ApplicationDefault, Payload: cmd.Encode()})
}

func (c *Controller) HandleActionResult(action controller.Action, completing caniot.Response) any {
	return c.status
}

func (c *Controller) ProcessJob(job *scheduler.Job, now time.Time, ctx *controller.ProcessContext) controller.Verdict {
	return controller.NoVerdict
}

func (c *Controller) UpdateJob(job *scheduler.Job) controller.JobDecision {
	return controller.Keep
}

// Status returns the current per-door contact state.
func (c *Controller) Status() [3]bool { return c.status }

// Alert reports a warning while any tracked door is open.
func (c *Controller) Alert() (controller.Alert, bool) {
	if c.status[DoorLeft] || c.status[DoorRight] || c.status[DoorGate] {
		return controller.Alert{Name: "garage door(s) open", Severity: controller.AlertWarning}, true
	}
	return controller.Alert{}, false
}
