package bus

import (
	"sync"

	"github.com/brutella/can"
)

// SocketCAN wraps a github.com/brutella/can bus connected to a real
// SocketCAN interface (e.g. "can0"). Inbound frames are delivered through
// a Handle callback subscribed to the underlying bus, matching the
// Handler/Subscribe pattern used to bridge brutella/can frames onto an
// application channel.
type SocketCAN struct {
	bus   *can.Bus
	recvc chan RawFrame
	stats Stats

	closeOnce sync.Once
	closed    chan struct{}
}

// canHandler adapts brutella/can's Handle(can.Frame) callback into a
// RawFrame forwarded on recvc, copying the frame's fixed-size Data array
// into a freshly allocated slice before handing it onward.
type canHandler struct {
	target *SocketCAN
}

func (h *canHandler) Handle(frame can.Frame) {
	n := int(frame.Length)
	if n > len(frame.Data) {
		n = len(frame.Data)
	}
	payload := make([]byte, n)
	copy(payload, frame.Data[:n])

	select {
	case h.target.recvc <- RawFrame{ID: uint16(frame.ID), Payload: payload}:
		h.target.stats.rxInc()
	case <-h.target.closed:
	default:
		h.target.stats.rxDropInc()
	}
}

// NewSocketCAN opens the named SocketCAN interface and starts its receive
// loop in the background. The caller must call Close to release it.
func NewSocketCAN(ifname string) (*SocketCAN, error) {
	b, err := can.NewBusForInterfaceWithName(ifname)
	if err != nil {
		return nil, err
	}

	s := &SocketCAN{
		bus:    b,
		recvc:  make(chan RawFrame, 64),
		closed: make(chan struct{}),
	}
	b.Subscribe(&canHandler{target: s})

	go func() {
		// ConnectAndPublish runs the read loop that actually feeds
		// Subscribe handlers; it returns when the bus is disconnected.
		_ = b.ConnectAndPublish()
	}()

	return s, nil
}

func (s *SocketCAN) Send(id uint16, payload []byte) error {
	if err := validateID(id); err != nil {
		return err
	}
	var data [8]byte
	copy(data[:], payload)
	err := s.bus.Publish(can.Frame{
		ID:     uint32(id),
		Length: uint8(len(payload)),
		Data:   data,
	})
	if err == nil {
		s.stats.txInc()
	}
	return err
}

func (s *SocketCAN) Recv() <-chan RawFrame { return s.recvc }

func (s *SocketCAN) Ioctl(event uint32) error { return ErrIoctlUnsupported }

func (s *SocketCAN) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = s.bus.Disconnect()
		close(s.recvc)
	})
	return err
}

var _ Interface = (*SocketCAN)(nil)
