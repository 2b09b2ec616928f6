// Package registry maintains the lazy DeviceId -> *device.Device map and
// the auto-attach policy that instantiates a controller the first time a
// configured device id is seen.
package registry

import (
	"fmt"

	"github.com/lucasdietrich/caniot-controller/internal/caniot"
	"github.com/lucasdietrich/caniot-controller/internal/device"
)

// Factory builds a controller for a newly-attached device, loading any
// persisted configuration it needs from the settings store.
type Factory func(did caniot.DeviceId) (device.Controller, error)

// Policy maps a DeviceId to the kind of controller it should run, if any.
type Policy interface {
	Lookup(did caniot.DeviceId) (kind string, ok bool)
}

// StaticPolicy is a fixed DID -> kind table, the common case driven by
// configuration.
type StaticPolicy map[caniot.DeviceId]string

func (p StaticPolicy) Lookup(did caniot.DeviceId) (string, bool) {
	kind, ok := p[did]
	return kind, ok
}

// Registry is the core loop's device table. It is not safe for concurrent
// use: only the single-threaded core goroutine may call its methods.
type Registry struct {
	devices  map[caniot.DeviceId]*device.Device
	policy   Policy
	factories map[string]Factory
	attached map[caniot.DeviceId]bool
}

// New builds an empty Registry consulting policy for auto-attach and
// factories for instantiating each controller kind.
func New(policy Policy, factories map[string]Factory) *Registry {
	return &Registry{
		devices:   make(map[caniot.DeviceId]*device.Device),
		policy:    policy,
		factories: factories,
		attached:  make(map[caniot.DeviceId]bool),
	}
}

// GetOrCreate returns the device for did, creating a passive entry on
// first sight and running the attach policy exactly once per device per
// process lifetime.
func (r *Registry) GetOrCreate(did caniot.DeviceId) (*device.Device, error) {
	d, ok := r.devices[did]
	if !ok {
		d = device.New(did)
		r.devices[did] = d
	}

	if !r.attached[did] {
		r.attached[did] = true
		if err := r.tryAttach(d); err != nil {
			return d, err
		}
	}

	return d, nil
}

func (r *Registry) tryAttach(d *device.Device) error {
	if r.policy == nil {
		return nil
	}
	kind, ok := r.policy.Lookup(d.Did)
	if !ok {
		return nil
	}
	factory, ok := r.factories[kind]
	if !ok {
		return fmt.Errorf("registry: no controller factory registered for kind %q", kind)
	}
	ctrl, err := factory(d.Did)
	if err != nil {
		return fmt.Errorf("registry: attach %s as %s: %w", d.Did, kind, err)
	}
	d.Controller = ctrl
	return nil
}

// Get returns the device for did without creating it.
func (r *Registry) Get(did caniot.DeviceId) (*device.Device, bool) {
	d, ok := r.devices[did]
	return d, ok
}

// All returns every known device, in ascending DID order.
func (r *Registry) All() []*device.Device {
	out := make([]*device.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sortByDid(out)
	return out
}

func sortByDid(devices []*device.Device) {
	for i := 1; i < len(devices); i++ {
		for j := i; j > 0 && devices[j].Did.ToU8() < devices[j-1].Did.ToU8(); j-- {
			devices[j], devices[j-1] = devices[j-1], devices[j]
		}
	}
}

// ResetMeasuresStats resets every device's min/max monitors only, leaving
// stats counters and controller state untouched.
func (r *Registry) ResetMeasuresStats() {
	for _, d := range r.devices {
		d.Measures.ResetMonitors()
	}
}
