package caniot

import "time"

// Response is an inbound frame from a device: a telemetry sample, an
// attribute read/write acknowledgement, or an error report.
type Response struct {
	DeviceId  DeviceId
	Data      ResponseData
	Timestamp time.Time
}

// ResponseData is implemented by Telemetry, Attribute and Error.
type ResponseData interface {
	isResponseData()
}

type TelemetryResponse struct {
	Endpoint Endpoint
	Payload  []byte
}

func (TelemetryResponse) isResponseData() {}

type AttributeResponse struct {
	Key   uint16
	Value uint32
}

func (AttributeResponse) isResponseData() {}

// ErrorSource identifies which request kind the error is reporting
// against: a telemetry/command exchange on a given endpoint (with an
// optional echoed argument), or an attribute exchange (with an optional
// echoed key).
type ErrorSource struct {
	Endpoint *Endpoint
	Arg      *uint32
}

type ErrorResponse struct {
	Source ErrorSource
	Code   *ErrorCode // absent when the payload carried fewer than 4 bytes
}

func (ErrorResponse) isResponseData() {}

const (
	errorCodeLen = 4
	errorArgLen  = 4
)

// Decode parses an inbound (11-bit id, payload) wire pair into a Response.
// It never panics on short or malformed input. A device reports an error
// by sending a query-direction, write-action frame instead of a genuine
// response; that convention is reproduced here rather than a dedicated
// response bit, matching the wire protocol.
func Decode(id uint16, payload []byte, now time.Time) (Response, error) {
	fid, err := FrameIdFromU16(id)
	if err != nil {
		return Response{}, err
	}

	resp := Response{DeviceId: fid.DeviceId, Timestamp: now}

	if fid.Direction != directionResponse {
		if fid.Action != actionWrite {
			return Response{}, newProtoErr(PayloadDecodeError, "caniot: not a response frame")
		}
		var ep *Endpoint
		if fid.MsgType == typeTelemetry {
			e := fid.Endpoint
			ep = &e
		}
		resp.Data = parseErrorPayload(ep, payload)
		return resp, nil
	}

	switch fid.MsgType {
	case typeTelemetry:
		resp.Data = TelemetryResponse{Endpoint: fid.Endpoint, Payload: payload}
	case typeAttribute:
		if len(payload) < 6 {
			return Response{}, newProtoErr(PayloadDecodeError, "caniot: attribute response payload too short")
		}
		key := uint16(payload[0]) | uint16(payload[1])<<8
		value := uint32(payload[2]) | uint32(payload[3])<<8 | uint32(payload[4])<<16 | uint32(payload[5])<<24
		resp.Data = AttributeResponse{Key: key, Value: value}
	default:
		return Response{}, newProtoErr(PayloadDecodeError, "caniot: unknown msg_type")
	}

	return resp, nil
}

func parseErrorPayload(endpoint *Endpoint, payload []byte) ErrorResponse {
	er := ErrorResponse{}

	if len(payload) >= errorCodeLen {
		code := ErrorCode(int32(payload[0]) | int32(payload[1])<<8 | int32(payload[2])<<16 | int32(payload[3])<<24)
		er.Code = &code
	}

	var arg *uint32
	if len(payload) >= errorCodeLen+errorArgLen {
		a := uint32(payload[4]) | uint32(payload[5])<<8 | uint32(payload[6])<<16 | uint32(payload[7])<<24
		arg = &a
	}

	if endpoint != nil {
		er.Source = ErrorSource{Endpoint: endpoint, Arg: arg}
	} else {
		er.Source = ErrorSource{Arg: arg}
	}

	return er
}
