// Package caniot implements the CANIOT wire protocol: the 11-bit frame
// identifier, request/response framing, and the class-specific telemetry
// and command payload packings.
package caniot

import "errors"

// ProtocolError is the sum type of codec-level failures. Decoders never
// panic on short or malformed input; they return one of these instead.
type ProtocolError struct {
	Kind ProtocolErrorKind
	msg  string
}

type ProtocolErrorKind int

const (
	_ ProtocolErrorKind = iota
	UnknownAttributeKey
	PayloadDecodeError
	DeviceIdCreationError
	CommandEncodeError
)

func (e *ProtocolError) Error() string {
	if e.msg != "" {
		return e.msg
	}
	switch e.Kind {
	case UnknownAttributeKey:
		return "caniot: unknown attribute key"
	case PayloadDecodeError:
		return "caniot: payload decode error"
	case DeviceIdCreationError:
		return "caniot: invalid device id"
	case CommandEncodeError:
		return "caniot: command encode error"
	default:
		return "caniot: protocol error"
	}
}

func newProtoErr(kind ProtocolErrorKind, msg string) *ProtocolError {
	return &ProtocolError{Kind: kind, msg: msg}
}

// Is lets callers use errors.Is(err, caniot.ErrPayloadDecode) style checks
// against the Kind rather than the formatted message.
func (e *ProtocolError) Is(target error) bool {
	var other *ProtocolError
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

var (
	ErrUnknownAttributeKey   = &ProtocolError{Kind: UnknownAttributeKey}
	ErrPayloadDecode         = &ProtocolError{Kind: PayloadDecodeError}
	ErrDeviceIdCreation      = &ProtocolError{Kind: DeviceIdCreationError}
	ErrCommandEncode         = &ProtocolError{Kind: CommandEncodeError}
)
