package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasdietrich/caniot-controller/internal/api"
	"github.com/lucasdietrich/caniot-controller/internal/bus"
	"github.com/lucasdietrich/caniot-controller/internal/caniot"
	"github.com/lucasdietrich/caniot-controller/internal/controller"
	"github.com/lucasdietrich/caniot-controller/internal/controller/garage"
	"github.com/lucasdietrich/caniot-controller/internal/controller/heaters"
	"github.com/lucasdietrich/caniot-controller/internal/device"
	"github.com/lucasdietrich/caniot-controller/internal/pending"
	"github.com/lucasdietrich/caniot-controller/internal/registry"
)

// newTestCore wires a Core to one end of an in-process Emulator pair and
// returns the other end for the test to act as the "device" side.
func newTestCore(t *testing.T, policy registry.Policy, factories map[string]registry.Factory) (*Core, *bus.Emulator) {
	t.Helper()
	coreSide, devSide := bus.NewEmulatorPair()
	reg := registry.New(policy, factories)
	c := New(coreSide, reg, nil, nil, 16)
	go c.Run()
	t.Cleanup(c.Stop)
	return c, devSide
}

// responseID builds the wire id a device would use to reply to a telemetry
// request on ep: the same query-direction id with the direction bit (bit 2)
// set to mark it a response.
func responseID(t *testing.T, did caniot.DeviceId, ep caniot.Endpoint) uint16 {
	t.Helper()
	id, _, err := caniot.Encode(caniot.Request{DeviceId: did, Data: caniot.TelemetryRequest{Endpoint: ep}})
	require.NoError(t, err)
	return id | 0x4
}

func TestQueryRoundTrip(t *testing.T) {
	did, err := caniot.NewDeviceId(1, 3)
	require.NoError(t, err)

	c, devSide := newTestCore(t, nil, nil)

	reply := make(chan api.QueryResult, 1)
	c.Inbox() <- api.Query{
		Did:     did,
		Request: caniot.TelemetryRequest{Endpoint: caniot.BoardControl},
		Timeout: time.Second,
		Reply:   reply,
	}

	var tel caniot.Class0Telemetry
	tel.Oc1 = true
	require.NoError(t, devSide.Send(responseID(t, did, caniot.BoardControl), tel.Encode()))

	select {
	case r := <-reply:
		require.NoError(t, r.Err)
		telResp, ok := r.Response.Data.(caniot.TelemetryResponse)
		require.True(t, ok)
		decoded, err := caniot.DecodeClass0Telemetry(telResp.Payload)
		require.NoError(t, err)
		assert.True(t, decoded.Oc1)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for query reply")
	}
}

func TestQueryTimesOut(t *testing.T) {
	did, err := caniot.NewDeviceId(1, 4)
	require.NoError(t, err)

	c, _ := newTestCore(t, nil, nil)
	reply := make(chan api.QueryResult, 1)
	c.Inbox() <- api.Query{
		Did:     did,
		Request: caniot.TelemetryRequest{Endpoint: caniot.ApplicationDefault},
		Timeout: 30 * time.Millisecond,
		Reply:   reply,
	}

	select {
	case r := <-reply:
		assert.ErrorIs(t, r.Err, pending.ErrTimeout)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timeout reply")
	}
}

func TestUndifferentiablePendingActionRejected(t *testing.T) {
	did, err := caniot.NewDeviceId(2, 2)
	require.NoError(t, err)

	policy := registry.StaticPolicy{did: "heaters"}
	factories := map[string]registry.Factory{
		"heaters": func(did caniot.DeviceId) (device.Controller, error) { return heaters.New(did), nil },
	}
	c, _ := newTestCore(t, policy, factories)
	_, err = c.registry.GetOrCreate(did)
	require.NoError(t, err)

	first := make(chan api.DeviceActionResult, 1)
	c.Inbox() <- api.DeviceAction{
		Did:    &did,
		Action: controller.Inner{Payload: heaters.SetMode{Heater: 0, Mode: heaters.ModeComfort}},
		Reply:  first,
	}
	// let the core process the first action (and register its pending
	// query) before sending the second
	time.Sleep(20 * time.Millisecond)

	second := make(chan api.DeviceActionResult, 1)
	c.Inbox() <- api.DeviceAction{
		Did:    &did,
		Action: controller.Inner{Payload: heaters.SetMode{Heater: 1, Mode: heaters.ModeOff}},
		Reply:  second,
	}

	select {
	case r := <-second:
		assert.ErrorIs(t, r.Err, pending.ErrUndifferentiablePendingQuery)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for second action reply")
	}
}

func TestActionDispatchWithoutDIDLocatesUniqueController(t *testing.T) {
	heaterDid, err := caniot.NewDeviceId(2, 0)
	require.NoError(t, err)
	garageDid, err := caniot.NewDeviceId(2, 1)
	require.NoError(t, err)

	policy := registry.StaticPolicy{
		heaterDid: "heaters",
		garageDid: "garage",
	}
	factories := map[string]registry.Factory{
		"heaters": func(did caniot.DeviceId) (device.Controller, error) { return heaters.New(did), nil },
		"garage": func(did caniot.DeviceId) (device.Controller, error) {
			return garage.New(did, garage.Config{PulseDurationMs: 500}), nil
		},
	}

	c, devSide := newTestCore(t, policy, factories)
	_, err = c.registry.GetOrCreate(heaterDid)
	require.NoError(t, err)
	_, err = c.registry.GetOrCreate(garageDid)
	require.NoError(t, err)

	reply := make(chan api.DeviceActionResult, 1)
	c.Inbox() <- api.DeviceAction{
		Action: controller.Inner{Payload: heaters.SetMode{Heater: 0, Mode: heaters.ModeComfort}},
		Reply:  reply,
	}

	// the action is pending on the heater's command request; answer it from
	// the device side so the pending query completes
	select {
	case <-devSide.Recv():
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the heater command frame")
	}
	require.NoError(t, devSide.Send(responseID(t, heaterDid, caniot.ApplicationDefault), caniot.Class0Telemetry{}.Encode()))

	select {
	case r := <-reply:
		assert.NoError(t, r.Err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for action reply")
	}
}

func TestGetDevicesFilterWithActiveAlert(t *testing.T) {
	heaterDid, err := caniot.NewDeviceId(3, 0)
	require.NoError(t, err)
	garageDid, err := caniot.NewDeviceId(3, 1)
	require.NoError(t, err)

	policy := registry.StaticPolicy{
		heaterDid: "heaters",
		garageDid: "garage",
	}
	factories := map[string]registry.Factory{
		"heaters": func(did caniot.DeviceId) (device.Controller, error) { return heaters.New(did), nil },
		"garage": func(did caniot.DeviceId) (device.Controller, error) {
			return garage.New(did, garage.Config{PulseDurationMs: 500}), nil
		},
	}

	c, _ := newTestCore(t, policy, factories)
	_, err = c.registry.GetOrCreate(heaterDid)
	require.NoError(t, err)
	_, err = c.registry.GetOrCreate(garageDid)
	require.NoError(t, err)

	reply := make(chan api.GetDevicesResult, 1)
	c.Inbox() <- api.GetDevices{Filter: api.Filter{Kind: api.FilterWithActiveAlert}, Reply: reply}

	select {
	case r := <-reply:
		require.NoError(t, r.Err)
		require.Len(t, r.Devices, 1, "only the heaters device (no telemetry yet) should have an active alert")
		assert.Equal(t, heaterDid, r.Devices[0].Did)
		require.NotNil(t, r.Devices[0].Alert)
		assert.Equal(t, controller.AlertWarning, r.Devices[0].Alert.Severity)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for GetDevices reply")
	}
}

func TestActionDispatchWithoutDIDRejectsMultipleMatches(t *testing.T) {
	h1, err := caniot.NewDeviceId(2, 3)
	require.NoError(t, err)
	h2, err := caniot.NewDeviceId(2, 4)
	require.NoError(t, err)

	policy := registry.StaticPolicy{h1: "heaters", h2: "heaters"}
	factories := map[string]registry.Factory{
		"heaters": func(did caniot.DeviceId) (device.Controller, error) { return heaters.New(did), nil },
	}

	c, _ := newTestCore(t, policy, factories)
	_, err = c.registry.GetOrCreate(h1)
	require.NoError(t, err)
	_, err = c.registry.GetOrCreate(h2)
	require.NoError(t, err)

	reply := make(chan api.DeviceActionResult, 1)
	c.Inbox() <- api.DeviceAction{
		Action: controller.Inner{Payload: heaters.SetMode{Heater: 0, Mode: heaters.ModeComfort}},
		Reply:  reply,
	}

	select {
	case r := <-reply:
		assert.ErrorIs(t, r.Err, api.ErrMultipleDevicesForAction)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for action reply")
	}
}
