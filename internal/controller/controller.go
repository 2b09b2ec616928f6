// Package controller defines the polymorphic per-device controller
// surface the core loop dispatches against, plus the built-in actions
// that apply to every device regardless of its concrete kind.
package controller

import (
	"time"

	"github.com/lucasdietrich/caniot-controller/internal/caniot"
	"github.com/lucasdietrich/caniot-controller/internal/device"
	"github.com/lucasdietrich/caniot-controller/internal/scheduler"
)

// Verdict is the outcome of handing a frame or a job to a controller:
// either nothing to do, or one request to emit on the bus.
type Verdict struct {
	Emit caniot.RequestData // nil means "None"
}

// NoVerdict is the zero Verdict (no request emitted).
var NoVerdict = Verdict{}

// ActionVerdictKind tags which case an ActionVerdict is in.
type ActionVerdictKind int

const (
	ActionResult ActionVerdictKind = iota
	ActionPendingOn
	ActionRejected
)

// ActionVerdict is the outcome of HandleAction: an immediate result, a
// request to await (the action becomes that pending query's tenant), or
// a rejection with a reason.
type ActionVerdict struct {
	Kind      ActionVerdictKind
	Result    any
	PendingOn caniot.RequestData
	Reason    string
}

func Result(v any) ActionVerdict            { return ActionVerdict{Kind: ActionResult, Result: v} }
func PendingOn(r caniot.RequestData) ActionVerdict {
	return ActionVerdict{Kind: ActionPendingOn, PendingOn: r}
}
func Rejected(reason string) ActionVerdict { return ActionVerdict{Kind: ActionRejected, Reason: reason} }

// JobDecision is UpdateJob's verdict on whether to keep a job scheduled.
type JobDecision int

const (
	Keep JobDecision = iota
	Unschedule
)

// Action is implemented by every action payload: the four built-ins in
// this package, and each concrete controller's own action types wrapped
// in Inner.
type Action interface{ isAction() }

type Reset struct{}
type ResetSettings struct{}
type InhibitControl struct{ Mode caniot.TSP }
type Ping struct{ Endpoint caniot.Endpoint }

// Inner wraps a controller-kind-specific action payload (e.g. a Garage
// SetStatus or a Heaters SetMode), so the API layer can dispatch "find
// the one device whose controller accepts this Inner payload" without
// knowing every concrete controller kind.
type Inner struct{ Payload any }

func (Reset) isAction()          {}
func (ResetSettings) isAction()  {}
func (InhibitControl) isAction() {}
func (Ping) isAction()           {}
func (Inner) isAction()          {}

// ProcessContext carries the side effects a handler wants to apply. The
// runtime applies them in a fixed order after the handler returns:
// rebuild scheduled jobs if requested, register any new jobs, then run
// Persist. An error from Persist is logged by the core loop; it is not
// returned to the API caller.
type ProcessContext struct {
	Now         time.Time
	NewJobs     []*scheduler.Job
	RebuildJobs bool
	Persist     func() error
}

// AddJob queues a new job to be registered once the handler returns.
func (c *ProcessContext) AddJob(j *scheduler.Job) {
	c.NewJobs = append(c.NewJobs, j)
}

// Controller is the full polymorphic surface a device controller
// implements. Concrete controllers additionally expose a typed Config
// accessor and typed action constructors in their own package.
type Controller interface {
	device.Controller

	HandleFrame(resp caniot.Response, measures *device.Measures, ctx *ProcessContext) Verdict
	HandleAction(action Action, ctx *ProcessContext) ActionVerdict
	HandleActionResult(action Action, completing caniot.Response) any
	ProcessJob(job *scheduler.Job, now time.Time, ctx *ProcessContext) Verdict
	UpdateJob(job *scheduler.Job) JobDecision
	PatchConfig(partial any, ctx *ProcessContext) error
	ResetConfig(ctx *ProcessContext) error
	GetConfig() any

	// Alert reports the controller's currently synthesized condition, if
	// any. The bool mirrors Rust's Option: false means no alert is active.
	Alert() (Alert, bool)
}

// AlertSeverity orders how urgently an alert should be surfaced. Higher
// values are more severe; AlertError outranks every other case.
type AlertSeverity int

const (
	AlertOk AlertSeverity = iota
	AlertNotification
	AlertWarning
	AlertInhibited
	AlertError AlertSeverity = 10
)

// Alert is a controller-synthesized device condition, surfaced through
// GetDevices' FilterWithActiveAlert filter.
type Alert struct {
	Name        string
	Severity    AlertSeverity
	Description string
}

// zeroBoardCommand is the 7 class-payload bytes prepended to every
// board-level SysCtrl byte when a built-in action has no class-specific
// payload of its own.
var zeroBoardCommand = make([]byte, 7)

// BuiltinRequest maps a built-in action to the board-level request it
// waits on, per "Built-in per-device actions (not controller-specific)".
// It returns false for Inner actions, which a concrete controller must
// handle itself.
func BuiltinRequest(action Action) (caniot.RequestData, bool) {
	switch a := action.(type) {
	case Reset:
		return caniot.CommandRequest{
			Endpoint: caniot.BoardControl,
			Payload:  caniot.AppendSysCtrl(zeroBoardCommand, caniot.HardwareResetSysCtrl),
		}, true
	case InhibitControl:
		return caniot.CommandRequest{
			Endpoint: caniot.BoardControl,
			Payload:  caniot.AppendSysCtrl(zeroBoardCommand, caniot.SysCtrl{Inhibit: a.Mode}),
		}, true
	case Ping:
		return caniot.TelemetryRequest{Endpoint: a.Endpoint}, true
	case ResetSettings:
		return caniot.AttributeWriteRequest{Key: uint16(caniot.AttrConfigFlags), Value: 0}, true
	default:
		return nil, false
	}
}

// BuiltinResult extracts the typed result a built-in action produces
// once its awaited response arrives.
func BuiltinResult(action Action, resp caniot.Response) any {
	switch action.(type) {
	case Reset, InhibitControl, ResetSettings:
		return resp.Data
	case Ping:
		tel, ok := resp.Data.(caniot.TelemetryResponse)
		if !ok {
			return resp.Data
		}
		return tel
	default:
		return resp.Data
	}
}
