// Package device holds the per-device state the core loop maintains:
// identity, traffic counters, last-seen measures, and the attached
// controller (if any).
package device

import (
	"time"

	"github.com/lucasdietrich/caniot-controller/internal/caniot"
)

// Controller is the minimal surface the device package depends on; the
// full interface (with action/job/config dispatch) lives in
// internal/controller to avoid an import cycle.
type Controller interface {
	Kind() string
}

// Stats counts rx/tx traffic and lifecycle events for one device.
type Stats struct {
	RxTelemetry  uint64
	RxAttribute  uint64
	RxError      uint64
	TxTotal      uint64
	ResetsAsked  uint64
	JobsRun      uint64
	PqTimeout    uint64
	PqDuplicate  uint64
}

// Measures holds the last telemetry payload seen and per-quantity
// min/max monitors, keyed by a caller-defined quantity name (e.g.
// "temp_in", "temp_out_0").
type Measures struct {
	LastTelemetry []byte
	LastEndpoint  caniot.Endpoint
	monitors      map[string]*MinMax
}

// MinMax tracks the smallest and largest centi-Celsius value observed for
// one quantity.
type MinMax struct {
	Min, Max int16
	seen     bool
}

// Observe folds a new reading into the monitor.
func (m *MinMax) Observe(centiC int16) {
	if !m.seen {
		m.Min, m.Max, m.seen = centiC, centiC, true
		return
	}
	if centiC < m.Min {
		m.Min = centiC
	}
	if centiC > m.Max {
		m.Max = centiC
	}
}

// Monitor returns (creating if absent) the min/max tracker for a quantity.
func (m *Measures) Monitor(quantity string) *MinMax {
	if m.monitors == nil {
		m.monitors = make(map[string]*MinMax)
	}
	mm, ok := m.monitors[quantity]
	if !ok {
		mm = &MinMax{}
		m.monitors[quantity] = mm
	}
	return mm
}

// ResetMonitors clears every min/max tracker without touching the last
// telemetry payload.
func (m *Measures) ResetMonitors() {
	m.monitors = nil
}

// Device is one CANIOT node as tracked by the registry: its identity,
// traffic stats, last measures, scheduled jobs, and (if attached) its
// controller.
type Device struct {
	Did      caniot.DeviceId
	LastSeen time.Time

	Stats    Stats
	Measures Measures

	Controller Controller

	// JobsKey is a plain Did rather than a job list, to avoid an import
	// cycle with internal/scheduler; the core loop keeps the authoritative
	// job list keyed by Did in the scheduler package, and no job data is
	// stored on the Device itself.
	JobsKey caniot.DeviceId
}

// New creates a passive device entry (no controller).
func New(did caniot.DeviceId) *Device {
	return &Device{Did: did, JobsKey: did}
}

// Touch stamps LastSeen and, for a telemetry/attribute/error response,
// increments the matching counter.
func (d *Device) Touch(now time.Time, data caniot.ResponseData) {
	d.LastSeen = now
	switch data.(type) {
	case caniot.TelemetryResponse:
		d.Stats.RxTelemetry++
	case caniot.AttributeResponse:
		d.Stats.RxAttribute++
	case caniot.ErrorResponse:
		d.Stats.RxError++
	}
}

// IsAttached reports whether a controller has been instantiated for this
// device.
func (d *Device) IsAttached() bool {
	return d.Controller != nil
}
