// Package api defines the request/reply mailbox messages exchanged between
// external transports (RPC, HTTP) and the core event loop, exactly as
// spec.md §4.7. Every message is stamped with a correlation id for log
// tracing, the same way the teacher tags each exchange with an exchange ID.
package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/lucasdietrich/caniot-controller/internal/caniot"
	"github.com/lucasdietrich/caniot-controller/internal/controller"
)

// FilterKind selects which devices GetDevices returns.
type FilterKind int

const (
	FilterAll FilterKind = iota
	FilterByDid
	FilterWithActiveAlert
)

// Filter parametrizes GetDevices per FilterKind.
type Filter struct {
	Kind FilterKind
	Did  caniot.DeviceId
}

// DeviceInfo is one entry of a GetDevices reply.
type DeviceInfo struct {
	Did      caniot.DeviceId
	Kind     string
	LastSeen time.Time
	Attached bool
	Alert    *controller.Alert // nil when no alert is currently active
}

// Errors returned to API callers, per spec.md §4.7.
var (
	ErrTimeout                      = apiErr("timeout")
	ErrNoSuchDevice                 = apiErr("no such device")
	ErrNoSuchDeviceForAction        = apiErr("no device can handle this action")
	ErrMultipleDevicesForAction     = apiErr("multiple devices can handle this action")
	ErrGenericDeviceActionNeedsDID  = apiErr("this action requires an explicit device id")
	ErrUnsupportedQuery             = apiErr("unsupported query")
	ErrUndifferentiablePendingQuery = apiErr("an undifferentiable pending query already exists")
)

type apiErrString string

func apiErr(s string) error { return apiErrString(s) }

func (e apiErrString) Error() string { return string(e) }

// Message is the common envelope every mailbox message carries: a
// correlation id used purely for log tracing.
type Message struct {
	ID uuid.UUID
}

func newMessage() Message { return Message{ID: uuid.New()} }

// GetDevices requests device listings matching filter.
type GetDevices struct {
	Message
	Filter Filter
	Reply  chan<- GetDevicesResult
}

// NewGetDevices builds a stamped GetDevices message.
func NewGetDevices(filter Filter, reply chan<- GetDevicesResult) GetDevices {
	return GetDevices{Message: newMessage(), Filter: filter, Reply: reply}
}

// GetDevicesResult is the reply payload for GetDevices.
type GetDevicesResult struct {
	Devices []DeviceInfo
	Err     error
}

// Query sends a request and optionally waits for the matching response.
type Query struct {
	Message
	Did     caniot.DeviceId
	Request caniot.RequestData
	Timeout time.Duration
	Reply   chan<- QueryResult // nil means send-and-forget
}

// QueryResult is the reply payload for Query.
type QueryResult struct {
	Response caniot.Response
	Err      error
}

// DeviceAction dispatches a controller action, optionally against an
// explicit device id.
type DeviceAction struct {
	Message
	Did     *caniot.DeviceId // nil: locate the unique matching controller
	Action  controller.Action
	Timeout time.Duration
	Reply   chan<- DeviceActionResult
}

// DeviceActionResult is the reply payload for DeviceAction.
type DeviceActionResult struct {
	Result any
	Err    error
}

// DevicesResetMeasuresStats resets per-device min/max monitors only.
type DevicesResetMeasuresStats struct {
	Message
}

// DevicesResetSettings invokes ResetConfig on every device and waits for
// the persistence futures to complete.
type DevicesResetSettings struct {
	Message
	Reply chan<- error
}

// EmulatorRequest is an opaque passthrough to the CAN interface's ioctl.
type EmulatorRequest struct {
	Message
	Event uint32
	Reply chan<- error
}
