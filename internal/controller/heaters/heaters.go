// Package heaters implements the four-heater device controller: tracks
// each heater's mode and a power-presence flag, and provides a one-shot job
// (NewAttachJobs) that requests telemetry to learn current state. Nothing in
// the registry or the core registers that job on attach.
package heaters

import (
	"fmt"
	"time"

	"github.com/lucasdietrich/caniot-controller/internal/caniot"
	"github.com/lucasdietrich/caniot-controller/internal/controller"
	"github.com/lucasdietrich/caniot-controller/internal/device"
	"github.com/lucasdietrich/caniot-controller/internal/scheduler"
)

// Mode is one heater's operating mode.
type Mode uint8

const (
	ModeOff Mode = iota
	ModeComfort
	ModeComfortMinus1
	ModeComfortMinus2
	ModeEnergySaving
	ModeFrostProtection
)

const jobLearnState = "learn_state"

// Config is the persisted configuration for one heaters device.
type Config struct {
	DefaultMode Mode
}

// ConfigPatch carries only the fields a caller wants to change.
type ConfigPatch struct {
	DefaultMode *Mode
}

// SetMode is the controller-specific action changing one heater's mode.
type SetMode struct {
	Heater int // 0..3
	Mode   Mode
}

// Controller is the heaters state machine.
type Controller struct {
	did          caniot.DeviceId
	cfg          Config
	modes        [4]Mode
	powerPresent bool

	telemetryRxCount uint64
}

// New builds a heaters controller for did with a zero Config. It registers
// no jobs; NewAttachJobs returns the job that learns the device state.
func New(did caniot.DeviceId) *Controller {
	c := &Controller{did: did}
	return c
}

func (c *Controller) Kind() string { return "heaters" }

func (c *Controller) GetConfig() any { return c.cfg }

func (c *Controller) PatchConfig(partial any, ctx *controller.ProcessContext) error {
	p, ok := partial.(ConfigPatch)
	if !ok {
		return fmt.Errorf("heaters: unsupported config patch type %T", partial)
	}
	if p.DefaultMode != nil {
		c.cfg.DefaultMode = *p.DefaultMode
	}
	return nil
}

func (c *Controller) ResetConfig(ctx *controller.ProcessContext) error {
	c.cfg = Config{}
	return nil
}

// HandleFrame decodes class-0 telemetry's relay bits into heater modes
// is out of scope here (heaters use a command-only endpoint); instead it
// just updates the power-presence flag from input 1.
func (c *Controller) HandleFrame(resp caniot.Response, measures *device.Measures, ctx *controller.ProcessContext) controller.Verdict {
	tel, ok := resp.Data.(caniot.TelemetryResponse)
	if !ok {
		return controller.NoVerdict
	}
	cls0, err := caniot.DecodeClass0Telemetry(tel.Payload)
	if err != nil {
		return controller.NoVerdict
	}
	c.telemetryRxCount++
	c.powerPresent = cls0.In1
	return controller.NoVerdict
}

// HandleAction supports the controller-specific SetMode action.
func (c *Controller) HandleAction(action controller.Action, ctx *controller.ProcessContext) controller.ActionVerdict {
	inner, ok := action.(controller.Inner)
	if !ok {
		return controller.Rejected("heaters: not a controller action")
	}
	set, ok := inner.Payload.(SetMode)
	if !ok {
		return controller.Rejected("heaters: unsupported action payload")
	}
	if set.Heater < 0 || set.Heater > 3 {
		return controller.Rejected("heaters: heater index out of range")
	}

	c.modes[set.Heater] = set.Mode

	cmd := modesToCommand(c.modes)
	return controller.PendingOn(caniot.CommandRequest{Endpoint: caniot.ApplicationDefault, Payload: cmd.Encode()})
}

func (c *Controller) HandleActionResult(action controller.Action, completing caniot.Response) any {
	return c.modes
}

// ProcessJob runs the one-shot device-add job that learns current state.
func (c *Controller) ProcessJob(job *scheduler.Job, now time.Time, ctx *controller.ProcessContext) controller.Verdict {
	if job.ID != jobLearnState {
		return controller.NoVerdict
	}
	return controller.Verdict{Emit: caniot.TelemetryRequest{Endpoint: caniot.ApplicationDefault}}
}

func (c *Controller) UpdateJob(job *scheduler.Job) controller.JobDecision {
	return controller.Keep
}

// NewAttachJobs returns the one-shot "learn current state" job. The
// registry's attach step does not call it; the job runs only once a caller
// adds it to the scheduler.
func (c *Controller) NewAttachJobs(now time.Time) []*scheduler.Job {
	return []*scheduler.Job{scheduler.NewImmediateJob(jobLearnState, now)}
}

// Modes returns the current per-heater modes, for stats/testing.
func (c *Controller) Modes() [4]Mode { return c.modes }

// PowerPresent reports whether input 1 (mains presence) is asserted.
func (c *Controller) PowerPresent() bool { return c.powerPresent }

// Alert reports unknown state before the first telemetry sample, a
// warning while mains presence is missing, and a notification while any
// heater is actively on.
func (c *Controller) Alert() (controller.Alert, bool) {
	if c.telemetryRxCount == 0 {
		return controller.Alert{
			Name:        "heaters state unknown",
			Severity:    controller.AlertWarning,
			Description: "no telemetry received yet for the heaters state",
		}, true
	}
	if !c.powerPresent {
		return controller.Alert{
			Name:        "heaters unpowered",
			Severity:    controller.AlertWarning,
			Description: "no mains presence detected on the heaters",
		}, true
	}
	for _, m := range c.modes {
		if m != ModeOff {
			return controller.Alert{
				Name:        "heater on",
				Severity:    controller.AlertNotification,
				Description: "at least one heater is on",
			}, true
		}
	}
	return controller.Alert{}, false
}

// modesToCommand packs four heater modes into a class-0 command, one 3-bit
// XPS field per heater (Coc1, Coc2, Crl1, Crl2 for heaters 0 to 3), reusing
// the generic board command shape rather than a bespoke payload.
func modesToCommand(modes [4]Mode) caniot.Class0Command {
	return caniot.Class0Command{
		Coc1: modeToXps(modes[0]),
		Coc2: modeToXps(modes[1]),
		Crl1: modeToXps(modes[2]),
		Crl2: modeToXps(modes[3]),
	}
}

func modeToXps(m Mode) caniot.Xps {
	switch m {
	case ModeOff:
		return caniot.XpsSetOff
	case ModeComfort, ModeComfortMinus1, ModeComfortMinus2:
		return caniot.XpsSetOn
	case ModeEnergySaving:
		return caniot.XpsPulseOn
	case ModeFrostProtection:
		return caniot.XpsPulseOff
	default:
		return caniot.XpsNone
	}
}
