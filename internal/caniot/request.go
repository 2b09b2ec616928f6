package caniot

import "time"

// Request is an outbound query; Data is one of Telemetry, Command,
// AttributeRead or AttributeWrite.
type Request struct {
	DeviceId  DeviceId
	Data      RequestData
	Timestamp time.Time
}

// RequestData is implemented by Telemetry, Command, AttributeRead and
// AttributeWrite.
type RequestData interface {
	isRequestData()
	frameId(did DeviceId) FrameId
	payload() []byte
}

type TelemetryRequest struct {
	Endpoint Endpoint
}

func (TelemetryRequest) isRequestData() {}
func (r TelemetryRequest) frameId(did DeviceId) FrameId {
	return FrameId{DeviceId: did, Direction: directionQuery, MsgType: typeTelemetry, Action: actionRead, Endpoint: r.Endpoint}
}
func (TelemetryRequest) payload() []byte { return nil }

type CommandRequest struct {
	Endpoint Endpoint
	Payload  []byte // at most 8 bytes
}

func (CommandRequest) isRequestData() {}
func (r CommandRequest) frameId(did DeviceId) FrameId {
	return FrameId{DeviceId: did, Direction: directionQuery, MsgType: typeTelemetry, Action: actionWrite, Endpoint: r.Endpoint}
}
func (r CommandRequest) payload() []byte { return r.Payload }

type AttributeReadRequest struct {
	Key uint16
}

func (AttributeReadRequest) isRequestData() {}
func (r AttributeReadRequest) frameId(did DeviceId) FrameId {
	return FrameId{DeviceId: did, Direction: directionQuery, MsgType: typeAttribute, Action: actionRead, Endpoint: ApplicationDefault}
}
func (r AttributeReadRequest) payload() []byte {
	return []byte{byte(r.Key), byte(r.Key >> 8)}
}

type AttributeWriteRequest struct {
	Key   uint16
	Value uint32
}

func (AttributeWriteRequest) isRequestData() {}
func (r AttributeWriteRequest) frameId(did DeviceId) FrameId {
	return FrameId{DeviceId: did, Direction: directionQuery, MsgType: typeAttribute, Action: actionWrite, Endpoint: ApplicationDefault}
}
func (r AttributeWriteRequest) payload() []byte {
	return []byte{
		byte(r.Key), byte(r.Key >> 8),
		byte(r.Value), byte(r.Value >> 8), byte(r.Value >> 16), byte(r.Value >> 24),
	}
}

// Endpoint returns the endpoint a telemetry/command request targets, and
// false for attribute requests (they are undifferentiated by endpoint).
func RequestEndpoint(data RequestData) (Endpoint, bool) {
	switch d := data.(type) {
	case TelemetryRequest:
		return d.Endpoint, true
	case CommandRequest:
		return d.Endpoint, true
	default:
		return 0, false
	}
}

// RequestKey returns the attribute key an attribute request targets, and
// false for telemetry/command requests.
func RequestKey(data RequestData) (uint16, bool) {
	switch d := data.(type) {
	case AttributeReadRequest:
		return d.Key, true
	case AttributeWriteRequest:
		return d.Key, true
	default:
		return 0, false
	}
}

// Encode produces the (11-bit id, payload) wire pair for a Request.
// Payloads are never larger than 8 bytes; CommandRequest payloads longer
// than 8 bytes are rejected.
func Encode(req Request) (uint16, []byte, error) {
	if c, ok := req.Data.(CommandRequest); ok && len(c.Payload) > 8 {
		return 0, nil, newProtoErr(CommandEncodeError, "caniot: command payload exceeds 8 bytes")
	}
	id := req.Data.frameId(req.DeviceId)
	return id.ToU16(), req.Data.payload(), nil
}
