package bus

import "sync"

// Emulator is an in-process loopback bus used by tests and by the
// EmulatorRequest API message. It follows the teacher's in-memory Pipe
// pattern (two endpoints, automatic delivery, no real network I/O)
// generalized from byte-stream transport framing to raw CAN frames: Send
// on one endpoint enqueues directly onto the peer's Recv channel.
type Emulator struct {
	mu     sync.Mutex
	peer   *Emulator
	recvc  chan RawFrame
	stats  Stats
	closed bool

	lastEvent uint32
}

// NewEmulatorPair creates two Emulator endpoints wired to each other:
// frames sent on one arrive on the other's Recv channel. Use one endpoint
// as the core's bus and the other to drive the device side of a test.
func NewEmulatorPair() (*Emulator, *Emulator) {
	a := &Emulator{recvc: make(chan RawFrame, 64)}
	b := &Emulator{recvc: make(chan RawFrame, 64)}
	a.peer = b
	b.peer = a
	return a, b
}

func (e *Emulator) Send(id uint16, payload []byte) error {
	if err := validateID(id); err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrBusClosed
	}
	peer := e.peer
	e.mu.Unlock()

	cp := make([]byte, len(payload))
	copy(cp, payload)

	peer.mu.Lock()
	if peer.closed {
		peer.mu.Unlock()
		return ErrBusClosed
	}
	peer.mu.Unlock()

	select {
	case peer.recvc <- RawFrame{ID: id, Payload: cp}:
		e.stats.txInc()
		peer.stats.rxInc()
	default:
		peer.stats.rxDropInc()
	}
	return nil
}

func (e *Emulator) Recv() <-chan RawFrame { return e.recvc }

// Ioctl records the emulator event and is the only thing SEND_EMU_EVENT
// does here: its meaning is entirely defined by whatever test or
// emulator-side tooling reads LastEvent.
func (e *Emulator) Ioctl(event uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrBusClosed
	}
	e.lastEvent = event
	return nil
}

// LastEvent returns the most recent ioctl event value, for test assertions.
func (e *Emulator) LastEvent() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastEvent
}

func (e *Emulator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	close(e.recvc)
	return nil
}

var _ Interface = (*Emulator)(nil)
