// Package alarm implements the outdoor-alarm device controller: a pair of
// detectors, a sabotage contact, a siren and two lights, armed/disarmed
// by action or by daily cron jobs.
package alarm

import (
	"fmt"
	"time"

	"github.com/lucasdietrich/caniot-controller/internal/caniot"
	"github.com/lucasdietrich/caniot-controller/internal/controller"
	"github.com/lucasdietrich/caniot-controller/internal/device"
	"github.com/lucasdietrich/caniot-controller/internal/scheduler"
)

// State is the alarm's arm/disarm state.
type State int

const (
	Disarmed State = iota
	Armed
)

const jobAutoEnable = "auto_enable"
const jobAutoDisable = "auto_disable"

// Config is the persisted, patchable configuration for one alarm device.
type Config struct {
	AutoAlarmEnable         bool
	AutoAlarmEnableTime     time.Duration // local time-of-day offset
	AutoAlarmDisableTime    time.Duration
	AutoLightsEnable        bool
	SirenMinimumIntervalSec int
}

// ConfigPatch carries only the fields a caller wants to change.
type ConfigPatch struct {
	AutoAlarmEnable         *bool
	AutoAlarmEnableTime     *time.Duration
	AutoAlarmDisableTime    *time.Duration
	AutoLightsEnable        *bool
	SirenMinimumIntervalSec *int
}

// SetAlarm is the controller-specific action toggling arm state directly.
type SetAlarm struct{ Want State }

// Controller is the outdoor-alarm state machine.
type Controller struct {
	did    caniot.DeviceId
	cfg    Config
	state  State
	lastIO [2]bool // last detector readings, for rising-edge detection
	sabotage bool

	sirensTriggeredCount int
	lastSirenFire        time.Time
}

// New builds an alarm controller for did with the given persisted config.
func New(did caniot.DeviceId, cfg Config) *Controller {
	return &Controller{did: did, cfg: cfg}
}

func (c *Controller) Kind() string { return "outdoor_alarm" }

// GetConfig returns the current configuration.
func (c *Controller) GetConfig() any { return c.cfg }

func (c *Controller) PatchConfig(partial any, ctx *controller.ProcessContext) error {
	p, ok := partial.(ConfigPatch)
	if !ok {
		return fmt.Errorf("alarm: unsupported config patch type %T", partial)
	}
	changed := false
	if p.AutoAlarmEnable != nil {
		c.cfg.AutoAlarmEnable = *p.AutoAlarmEnable
		changed = true
	}
	if p.AutoAlarmEnableTime != nil {
		c.cfg.AutoAlarmEnableTime = *p.AutoAlarmEnableTime
		changed = true
	}
	if p.AutoAlarmDisableTime != nil {
		c.cfg.AutoAlarmDisableTime = *p.AutoAlarmDisableTime
		changed = true
	}
	if p.AutoLightsEnable != nil {
		c.cfg.AutoLightsEnable = *p.AutoLightsEnable
		changed = true
	}
	if p.SirenMinimumIntervalSec != nil {
		c.cfg.SirenMinimumIntervalSec = *p.SirenMinimumIntervalSec
		changed = true
	}
	if changed {
		ctx.RebuildJobs = true
		if ctx.Persist != nil {
			// the caller-supplied Persist closure already captures the
			// settings store and device id; nothing further to do here.
		}
	}
	return nil
}

func (c *Controller) ResetConfig(ctx *controller.ProcessContext) error {
	c.cfg = Config{SirenMinimumIntervalSec: 30}
	ctx.RebuildJobs = true
	return nil
}

// HandleFrame implements the rising-edge detector logic and the lights
// pulse described by the outdoor-alarm state machine.
func (c *Controller) HandleFrame(resp caniot.Response, measures *device.Measures, ctx *controller.ProcessContext) controller.Verdict {
	tel, ok := resp.Data.(caniot.TelemetryResponse)
	if !ok {
		return controller.NoVerdict
	}
	class1, err := caniot.DecodeClass1Telemetry(tel.Payload)
	if err != nil {
		return controller.NoVerdict
	}

	c.sabotage = class1.IOs[2]
	detectors := [2]bool{class1.IOs[0], class1.IOs[1]}

	risingEdge := false
	for i, v := range detectors {
		if v && !c.lastIO[i] {
			risingEdge = true
		}
	}
	c.lastIO = detectors

	if !risingEdge {
		return controller.NoVerdict
	}

	// Lights and siren are independent effects of the same rising edge and
	// are combined into a single command, matching the south/east
	// light (Coc1/Coc2) and siren (Crl1) layout of a class-0 command.
	var cmd caniot.Class0Command

	if c.cfg.AutoLightsEnable {
		cmd.Coc1 = caniot.XpsPulseOn
		cmd.Coc2 = caniot.XpsPulseOn
	}

	if c.state == Armed {
		minInterval := time.Duration(c.cfg.SirenMinimumIntervalSec) * time.Second
		if c.lastSirenFire.IsZero() || ctx.Now.Sub(c.lastSirenFire) >= minInterval {
			cmd.Crl1 = caniot.XpsPulseOn
			c.lastSirenFire = ctx.Now
			c.sirensTriggeredCount++
		}
	}

	if !cmd.HasEffect() {
		return controller.NoVerdict
	}
	return controller.Verdict{Emit: caniot.CommandRequest{Endpoint: caniot.ApplicationDefault, Payload: cmd.Encode()}}
}

// HandleAction supports the controller-specific SetAlarm action; any
// other Inner payload is rejected.
func (c *Controller) HandleAction(action controller.Action, ctx *controller.ProcessContext) controller.ActionVerdict {
	inner, ok := action.(controller.Inner)
	if !ok {
		return controller.Rejected("alarm: not a controller action")
	}
	set, ok := inner.Payload.(SetAlarm)
	if !ok {
		return controller.Rejected("alarm: unsupported action payload")
	}

	switch set.Want {
	case Armed:
		if c.sabotage {
			return controller.Rejected("alarm: cannot arm while sabotage is active")
		}
		c.state = Armed
		return controller.Result(c.state)
	case Disarmed:
		c.state = Disarmed
		var cmd caniot.Class0Command
		cmd.Crl1 = caniot.XpsReset
		return controller.PendingOn(caniot.CommandRequest{Endpoint: caniot.ApplicationDefault, Payload: cmd.Encode()})
	default:
		return controller.Rejected("alarm: unknown state")
	}
}

func (c *Controller) HandleActionResult(action controller.Action, completing caniot.Response) any {
	return c.state
}

// ProcessJob runs the daily auto-enable/auto-disable jobs.
func (c *Controller) ProcessJob(job *scheduler.Job, now time.Time, ctx *controller.ProcessContext) controller.Verdict {
	switch job.ID {
	case jobAutoEnable:
		if !c.sabotage {
			c.state = Armed
		}
	case jobAutoDisable:
		c.state = Disarmed
	}
	return controller.NoVerdict
}

// UpdateJob keeps the auto-enable/auto-disable jobs scheduled only while
// AutoAlarmEnable is true.
func (c *Controller) UpdateJob(job *scheduler.Job) controller.JobDecision {
	if (job.ID == jobAutoEnable || job.ID == jobAutoDisable) && !c.cfg.AutoAlarmEnable {
		return controller.Unschedule
	}
	return controller.Keep
}

// SirensTriggeredCount reports how many siren pulses have fired, for
// stats/testing.
func (c *Controller) SirensTriggeredCount() int { return c.sirensTriggeredCount }

// Alert reports the highest-priority condition currently worth surfacing:
// the siren still within its firing window outranks sabotage, which
// outranks simply being armed.
func (c *Controller) Alert() (controller.Alert, bool) {
	minInterval := time.Duration(c.cfg.SirenMinimumIntervalSec) * time.Second
	if !c.lastSirenFire.IsZero() && time.Since(c.lastSirenFire) < minInterval {
		return controller.Alert{Name: "outdoor siren active", Severity: controller.AlertWarning}, true
	}
	if c.sabotage {
		return controller.Alert{Name: "outdoor alarm sabotage detected", Severity: controller.AlertError}, true
	}
	if c.state == Armed {
		return controller.Alert{Name: "outdoor alarm armed", Severity: controller.AlertOk}, true
	}
	return controller.Alert{}, false
}

// State reports the current arm state.
func (c *Controller) State() State { return c.state }

// NewDailyJobs builds the auto-enable/auto-disable jobs per the current
// configuration. The registry's attach step does not call it; the jobs run
// only once a caller adds them to the scheduler.
func (c *Controller) NewDailyJobs(now time.Time) []*scheduler.Job {
	if !c.cfg.AutoAlarmEnable {
		return nil
	}
	return []*scheduler.Job{
		scheduler.NewDailyJob(jobAutoEnable, c.cfg.AutoAlarmEnableTime, now),
		scheduler.NewDailyJob(jobAutoDisable, c.cfg.AutoAlarmDisableTime, now),
	}
}
