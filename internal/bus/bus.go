// Package bus is the CAN interface adapter: the one external collaborator
// boundary between the core event loop and an actual CAN endpoint. Two
// concrete adapters implement Interface — SocketCAN for a real bus and
// Emulator for tests and the device-emulator backend.
package bus

import (
	"errors"
	"fmt"
	"sync"
)

// RawFrame is an undecoded CAN frame crossing the bus boundary: an 11-bit
// standard identifier and up to 8 payload bytes. Decoding into a Request or
// Response happens one layer up, in internal/caniot.
type RawFrame struct {
	ID      uint16
	Payload []byte
}

// ErrBusClosed is returned by Send/Recv once the interface has been closed.
var ErrBusClosed = errors.New("bus: interface closed")

// Interface is the external collaborator contract from spec.md §6: frame
// send, a receive channel, and an emulator-only ioctl. The receive channel
// carries frames only: adapters do not report receive errors on it, so a
// receive failure never reaches the event loop.
type Interface interface {
	// Send transmits one frame. id must fit the 11-bit standard range.
	Send(id uint16, payload []byte) error

	// Recv returns the channel the core loop selects on for inbound
	// frames. The channel is closed when the interface is closed.
	Recv() <-chan RawFrame

	// Ioctl issues the single emulator command defined by spec.md §6
	// ("Emulator ioctl ... SEND_EMU_EVENT(u32)"). Real bus adapters
	// return ErrIoctlUnsupported.
	Ioctl(event uint32) error

	// Close releases the underlying I/O resource.
	Close() error
}

// ErrIoctlUnsupported is returned by adapters with no emulator backend.
var ErrIoctlUnsupported = errors.New("bus: ioctl not supported by this interface")

// ErrIDOutOfRange is returned by Send when id does not fit 11 bits.
var ErrIDOutOfRange = errors.New("bus: id exceeds 11-bit standard range")

func validateID(id uint16) error {
	if id > 0x7FF {
		return fmt.Errorf("%w: %#x", ErrIDOutOfRange, id)
	}
	return nil
}

// Stats are the I/O-level counters spec.md §9 calls out ("Interface ...
// counted in stats").
type Stats struct {
	mu      sync.Mutex
	TxTotal uint64
	RxTotal uint64
	RxDrops uint64
}

func (s *Stats) txInc() {
	s.mu.Lock()
	s.TxTotal++
	s.mu.Unlock()
}

func (s *Stats) rxInc() {
	s.mu.Lock()
	s.RxTotal++
	s.mu.Unlock()
}

func (s *Stats) rxDropInc() {
	s.mu.Lock()
	s.RxDrops++
	s.mu.Unlock()
}

// Snapshot returns a copy of the counters, safe to read from any goroutine.
func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{TxTotal: s.TxTotal, RxTotal: s.RxTotal, RxDrops: s.RxDrops}
}
