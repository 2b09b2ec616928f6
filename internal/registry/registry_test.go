package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasdietrich/caniot-controller/internal/caniot"
	"github.com/lucasdietrich/caniot-controller/internal/device"
)

type stubController struct{ kind string }

func (s stubController) Kind() string { return s.kind }

func TestGetOrCreateIsIdempotent(t *testing.T) {
	did, _ := caniot.NewDeviceId(0, 1)
	r := New(nil, nil)

	d1, err := r.GetOrCreate(did)
	require.NoError(t, err)
	d2, err := r.GetOrCreate(did)
	require.NoError(t, err)
	assert.Same(t, d1, d2)
}

func TestAutoAttachRunsOnce(t *testing.T) {
	did, _ := caniot.NewDeviceId(1, 0)
	calls := 0
	factories := map[string]Factory{
		"heaters": func(did caniot.DeviceId) (device.Controller, error) {
			calls++
			return stubController{kind: "heaters"}, nil
		},
	}
	r := New(StaticPolicy{did: "heaters"}, factories)

	d, err := r.GetOrCreate(did)
	require.NoError(t, err)
	require.True(t, d.IsAttached())
	assert.Equal(t, "heaters", d.Controller.Kind())

	_, err = r.GetOrCreate(did)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestUnknownDeviceStaysPassive(t *testing.T) {
	did, _ := caniot.NewDeviceId(2, 2)
	r := New(StaticPolicy{}, nil)

	d, err := r.GetOrCreate(did)
	require.NoError(t, err)
	assert.False(t, d.IsAttached())
}

func TestAllSortedByDid(t *testing.T) {
	r := New(nil, nil)
	d3, _ := caniot.NewDeviceId(3, 0)
	d1, _ := caniot.NewDeviceId(0, 1)
	d2, _ := caniot.NewDeviceId(1, 0)

	_, _ = r.GetOrCreate(d3)
	_, _ = r.GetOrCreate(d1)
	_, _ = r.GetOrCreate(d2)

	all := r.All()
	require.Len(t, all, 3)
	assert.True(t, all[0].Did.ToU8() <= all[1].Did.ToU8())
	assert.True(t, all[1].Did.ToU8() <= all[2].Did.ToU8())
}
