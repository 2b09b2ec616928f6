package pending

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasdietrich/caniot-controller/internal/caniot"
)

func mustDid(t *testing.T, class, sub uint8) caniot.DeviceId {
	t.Helper()
	did, err := caniot.NewDeviceId(class, sub)
	require.NoError(t, err)
	return did
}

func TestPushRejectsBroadcast(t *testing.T) {
	tr := New()
	ch := make(chan Outcome, 1)
	err := tr.Push(caniot.Broadcast, caniot.TelemetryRequest{Endpoint: caniot.ApplicationDefault}, time.Second, ReplyTenant(ch), time.Now())
	assert.ErrorIs(t, err, ErrUnsupportedQuery)
	assert.Equal(t, 0, tr.Len())
}

func TestPushRejectsUndifferentiable(t *testing.T) {
	tr := New()
	did := mustDid(t, 0, 1)
	now := time.Now()
	ch1 := make(chan Outcome, 1)
	ch2 := make(chan Outcome, 1)

	require.NoError(t, tr.Push(did, caniot.TelemetryRequest{Endpoint: caniot.BoardControl}, time.Second, ReplyTenant(ch1), now))
	err := tr.Push(did, caniot.TelemetryRequest{Endpoint: caniot.BoardControl}, time.Second, ReplyTenant(ch2), now)
	assert.ErrorIs(t, err, ErrUndifferentiablePendingQuery)
	assert.Equal(t, 1, tr.Len())
}

func TestPushAllowsDifferentEndpoints(t *testing.T) {
	tr := New()
	did := mustDid(t, 0, 1)
	now := time.Now()

	require.NoError(t, tr.Push(did, caniot.TelemetryRequest{Endpoint: caniot.ApplicationDefault}, time.Second, ReplyTenant(make(chan Outcome, 1)), now))
	require.NoError(t, tr.Push(did, caniot.TelemetryRequest{Endpoint: caniot.Application1}, time.Second, ReplyTenant(make(chan Outcome, 1)), now))
	assert.Equal(t, 2, tr.Len())
}

func TestOnResponseMatchesTelemetry(t *testing.T) {
	tr := New()
	did := mustDid(t, 0, 1)
	now := time.Now()
	ch := make(chan Outcome, 1)

	require.NoError(t, tr.Push(did, caniot.TelemetryRequest{Endpoint: caniot.BoardControl}, time.Second, ReplyTenant(ch), now))

	resp := caniot.Response{DeviceId: did, Data: caniot.TelemetryResponse{Endpoint: caniot.BoardControl, Payload: []byte{1}}}
	matched := tr.OnResponse(resp)
	assert.Equal(t, 1, matched)
	assert.Equal(t, 0, tr.Len())

	select {
	case out := <-ch:
		require.NoError(t, out.Err)
		assert.Equal(t, resp, out.Response)
	default:
		t.Fatal("tenant was not notified")
	}
}

func TestOnResponseIgnoresOtherDevices(t *testing.T) {
	tr := New()
	did := mustDid(t, 0, 1)
	other := mustDid(t, 0, 2)
	now := time.Now()
	ch := make(chan Outcome, 1)

	require.NoError(t, tr.Push(did, caniot.TelemetryRequest{Endpoint: caniot.BoardControl}, time.Second, ReplyTenant(ch), now))

	resp := caniot.Response{DeviceId: other, Data: caniot.TelemetryResponse{Endpoint: caniot.BoardControl}}
	matched := tr.OnResponse(resp)
	assert.Equal(t, 0, matched)
	assert.Equal(t, 1, tr.Len())
}

func TestOnResponseMatchesAttributeError(t *testing.T) {
	tr := New()
	did := mustDid(t, 0, 1)
	now := time.Now()
	ch := make(chan Outcome, 1)

	require.NoError(t, tr.Push(did, caniot.AttributeReadRequest{Key: 0x10}, time.Second, ReplyTenant(ch), now))

	resp := caniot.Response{DeviceId: did, Data: caniot.ErrorResponse{Source: caniot.ErrorSource{}}}
	matched := tr.OnResponse(resp)
	assert.Equal(t, 1, matched)
}

func TestOnResponseAttributeErrorMatchesOnlyKeyedQuery(t *testing.T) {
	tr := New()
	did := mustDid(t, 0, 1)
	now := time.Now()
	chA := make(chan Outcome, 1)
	chB := make(chan Outcome, 1)

	require.NoError(t, tr.Push(did, caniot.AttributeReadRequest{Key: 0x10}, time.Second, ReplyTenant(chA), now))
	require.NoError(t, tr.Push(did, caniot.AttributeReadRequest{Key: 0x20}, time.Second, ReplyTenant(chB), now))
	require.Equal(t, 2, tr.Len())

	argKey := uint32(0x20)
	resp := caniot.Response{DeviceId: did, Data: caniot.ErrorResponse{Source: caniot.ErrorSource{Arg: &argKey}}}
	matched := tr.OnResponse(resp)
	assert.Equal(t, 1, matched)
	assert.Equal(t, 1, tr.Len())

	select {
	case out := <-chB:
		require.NoError(t, out.Err)
	default:
		t.Fatal("query keyed 0x20 should have been resolved")
	}

	select {
	case <-chA:
		t.Fatal("query keyed 0x10 should not have been resolved by an error keyed to 0x20")
	default:
	}
}

func TestTickFailsDueEntries(t *testing.T) {
	tr := New()
	did := mustDid(t, 0, 1)
	start := time.Now()
	ch := make(chan Outcome, 1)

	require.NoError(t, tr.Push(did, caniot.TelemetryRequest{Endpoint: caniot.ApplicationDefault}, 10*time.Millisecond, ReplyTenant(ch), start))

	fired := tr.Tick(start)
	assert.Equal(t, 0, fired)

	fired = tr.Tick(start.Add(11 * time.Millisecond))
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, tr.Len())

	select {
	case out := <-ch:
		assert.ErrorIs(t, out.Err, ErrTimeout)
	default:
		t.Fatal("tenant was not notified of timeout")
	}
}

func TestNextDeadlineTracksEarliest(t *testing.T) {
	tr := New()
	did := mustDid(t, 0, 1)
	now := time.Now()

	_, ok := tr.NextDeadline()
	assert.False(t, ok)

	require.NoError(t, tr.Push(did, caniot.TelemetryRequest{Endpoint: caniot.ApplicationDefault}, 500*time.Millisecond, ReplyTenant(make(chan Outcome, 1)), now))
	require.NoError(t, tr.Push(did, caniot.TelemetryRequest{Endpoint: caniot.Application1}, 100*time.Millisecond, ReplyTenant(make(chan Outcome, 1)), now))

	deadline, ok := tr.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, now.Add(100*time.Millisecond), deadline)
}
