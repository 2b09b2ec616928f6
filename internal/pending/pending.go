// Package pending tracks outbound CANIOT requests awaiting a correlated
// response. The core event loop is the only caller; the tracker itself
// holds no locks and must never be touched from another goroutine.
package pending

import (
	"errors"
	"time"

	"github.com/lucasdietrich/caniot-controller/internal/caniot"
)

var (
	// ErrUnsupportedQuery is returned by Push for a BROADCAST request with
	// a tenant waiting on a single correlated reply.
	ErrUnsupportedQuery = errors.New("pending: broadcast query unsupported")
	// ErrUndifferentiablePendingQuery is returned by Push when an existing
	// entry cannot be told apart from the new request.
	ErrUndifferentiablePendingQuery = errors.New("pending: undifferentiable from an existing pending query")
	// ErrTimeout is delivered to a tenant whose request's deadline elapsed
	// with no matching response.
	ErrTimeout = errors.New("pending: timed out waiting for response")
)

// Outcome is delivered to a Tenant exactly once: either the matching
// response, or an error (ErrTimeout).
type Outcome struct {
	Response caniot.Response
	Err      error
}

// Tenant is the external waiter associated with a pending query: a reply
// channel, or an in-flight action's completion handle.
type Tenant interface {
	Notify(Outcome)
}

// ReplyTenant delivers the outcome over a channel. The channel must be
// buffered (capacity >= 1) so Notify never blocks the core loop.
type ReplyTenant chan<- Outcome

func (t ReplyTenant) Notify(o Outcome) {
	select {
	case t <- o:
	default:
	}
}

// ActionFunc adapts a plain callback to the Tenant interface, used when an
// in-flight action (rather than a bare reply channel) is the tenant.
type ActionFunc func(Outcome)

func (f ActionFunc) Notify(o Outcome) { f(o) }

// Query is a pending entry: an outbound request, its deadline, and the
// tenant to notify on completion.
type Query struct {
	DeviceId caniot.DeviceId
	Data     caniot.RequestData
	SentAt   time.Time
	Deadline time.Time
	Tenant   Tenant
}

// Tracker is a deadline-ordered list of pending queries.
type Tracker struct {
	entries []*Query
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{}
}

// Len returns the number of pending entries.
func (t *Tracker) Len() int {
	return len(t.entries)
}

// Push records a new pending query. The caller is responsible for having
// already transmitted the request on the bus; Push only rejects and never
// itself sends.
func (t *Tracker) Push(did caniot.DeviceId, data caniot.RequestData, timeout time.Duration, tenant Tenant, now time.Time) error {
	if did.IsBroadcast() {
		return ErrUnsupportedQuery
	}
	for _, e := range t.entries {
		if undifferentiable(e.DeviceId, e.Data, did, data) {
			return ErrUndifferentiablePendingQuery
		}
	}

	q := &Query{DeviceId: did, Data: data, SentAt: now, Deadline: now.Add(timeout), Tenant: tenant}
	t.insertSorted(q)
	return nil
}

func (t *Tracker) insertSorted(q *Query) {
	i := 0
	for i < len(t.entries) && !t.entries[i].Deadline.After(q.Deadline) {
		i++
	}
	t.entries = append(t.entries, nil)
	copy(t.entries[i+1:], t.entries[i:])
	t.entries[i] = q
}

// OnResponse removes and notifies every entry whose request matches resp
// per the response-matching relation, and returns how many were removed.
func (t *Tracker) OnResponse(resp caniot.Response) int {
	matched := 0
	remaining := t.entries[:0]
	for _, e := range t.entries {
		if matchesResponse(e, resp) {
			e.Tenant.Notify(Outcome{Response: resp})
			matched++
		} else {
			remaining = append(remaining, e)
		}
	}
	t.entries = remaining
	return matched
}

// Tick fails every entry whose deadline has elapsed with ErrTimeout,
// returning how many fired. Entries are kept deadline-sorted so this scans
// only the due prefix.
func (t *Tracker) Tick(now time.Time) int {
	n := 0
	for n < len(t.entries) && !t.entries[n].Deadline.After(now) {
		t.entries[n].Tenant.Notify(Outcome{Err: ErrTimeout})
		n++
	}
	if n > 0 {
		t.entries = t.entries[n:]
	}
	return n
}

// NextDeadline returns the nearest pending deadline, or false if the
// tracker is empty.
func (t *Tracker) NextDeadline() (time.Time, bool) {
	if len(t.entries) == 0 {
		return time.Time{}, false
	}
	return t.entries[0].Deadline, true
}

// undifferentiable implements §4.3.1 invariant 1: same device id, and
// either both endpoint-addressed requests on the same endpoint, or both
// key-addressed requests on the same key.
func undifferentiable(aDid caniot.DeviceId, aData caniot.RequestData, bDid caniot.DeviceId, bData caniot.RequestData) bool {
	if aDid != bDid {
		return false
	}
	if aEp, ok := caniot.RequestEndpoint(aData); ok {
		bEp, ok2 := caniot.RequestEndpoint(bData)
		return ok2 && aEp == bEp
	}
	if aKey, ok := caniot.RequestKey(aData); ok {
		bKey, ok2 := caniot.RequestKey(bData)
		return ok2 && aKey == bKey
	}
	return false
}

// matchesResponse implements §4.3.1 response-matching.
func matchesResponse(q *Query, resp caniot.Response) bool {
	if q.DeviceId != resp.DeviceId {
		return false
	}

	switch data := resp.Data.(type) {
	case caniot.TelemetryResponse:
		ep, ok := caniot.RequestEndpoint(q.Data)
		return ok && ep == data.Endpoint
	case caniot.AttributeResponse:
		key, ok := caniot.RequestKey(q.Data)
		return ok && key == data.Key
	case caniot.ErrorResponse:
		if data.Source.Endpoint != nil {
			ep, ok := caniot.RequestEndpoint(q.Data)
			return ok && ep == *data.Source.Endpoint
		}
		key, ok := caniot.RequestKey(q.Data)
		if !ok {
			return false
		}
		if data.Source.Arg == nil {
			return true
		}
		return uint16(*data.Source.Arg) == key
	default:
		return false
	}
}
