package caniot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceIdRoundTrip(t *testing.T) {
	for class := uint8(0); class < 8; class++ {
		for sub := uint8(0); sub < 8; sub++ {
			did, err := NewDeviceId(class, sub)
			require.NoError(t, err)
			decoded, err := DeviceIdFromU8(did.ToU8())
			require.NoError(t, err)
			assert.Equal(t, did, decoded)
		}
	}
}

func TestDeviceIdRejectsOutOfRange(t *testing.T) {
	_, err := NewDeviceId(0x8, 0)
	assert.ErrorIs(t, err, ErrDeviceIdCreation)

	_, err = DeviceIdFromU8(0x40)
	assert.ErrorIs(t, err, ErrDeviceIdCreation)
}

func TestBroadcastIsAllOnes(t *testing.T) {
	assert.Equal(t, uint8(0x3f), Broadcast.ToU8())
	assert.True(t, Broadcast.IsBroadcast())
}

func TestFrameIdRoundTrip(t *testing.T) {
	did, err := NewDeviceId(5, 2)
	require.NoError(t, err)

	fid := FrameId{
		DeviceId:  did,
		Direction: directionResponse,
		MsgType:   typeAttribute,
		Action:    actionRead,
		Endpoint:  Application2,
	}

	raw := fid.ToU16()
	assert.LessOrEqual(t, raw, uint16(MaxStandardId))

	decoded, err := FrameIdFromU16(raw)
	require.NoError(t, err)
	assert.Equal(t, fid, decoded)
}

func TestFrameIdRejectsExtended(t *testing.T) {
	_, err := FrameIdFromU16(0x800)
	assert.Error(t, err)
}

func TestTemperatureRoundTrip(t *testing.T) {
	cases := []int16{-2790, -1000, 0, 1234, 7200}
	for _, c := range cases {
		temp := NewTemperature(c)
		raw := temp.ToRawU10()
		decoded := FromRawU10(raw)
		require.True(t, decoded.IsValid())
		got, _ := decoded.ToCelsius()
		want, _ := temp.ToCelsius()
		assert.InDelta(t, want, got, 0.1)
	}
}

func TestTemperatureInvalidMarkers(t *testing.T) {
	assert.False(t, FromRawU10(0).IsValid())
	assert.False(t, FromRawU10(0x3FF).IsValid())
	assert.False(t, FromRawU10(1001).IsValid())
	assert.True(t, FromRawU10(280).IsValid()) // 0 degrees celsius
}

func TestTemperatureOutOfRangeIsInvalid(t *testing.T) {
	assert.False(t, NewTemperature(-3000).IsValid())
	assert.False(t, NewTemperature(8000).IsValid())
}

func TestXpsSetGetAtRoundTrip(t *testing.T) {
	payload := make([]byte, 7)
	values := []Xps{XpsSetOn, XpsSetOff, XpsToggle, XpsReset, XpsPulseOn, XpsPulseOff, XpsPulseCancel, XpsNone, XpsSetOn, XpsToggle, XpsNone, XpsNone, XpsNone, XpsNone, XpsNone, XpsNone, XpsNone, XpsNone, XpsNone}
	for i, v := range values {
		setAt(payload, i, v)
	}
	for i, want := range values {
		got, err := getAt(payload, i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestClass0TelemetryRoundTrip(t *testing.T) {
	tel := Class0Telemetry{
		Oc1: true, Rl2: true, In3: true,
		Poc1: true, Prl2: true,
		TempIn:  NewTemperature(2350),
		TempOut: [3]Temperature{NewTemperature(-500), Invalid, NewTemperature(6800)},
	}
	payload := tel.Encode()
	require.Len(t, payload, 7)

	decoded, err := DecodeClass0Telemetry(payload)
	require.NoError(t, err)
	assert.Equal(t, tel.Oc1, decoded.Oc1)
	assert.Equal(t, tel.Rl2, decoded.Rl2)
	assert.Equal(t, tel.In3, decoded.In3)
	assert.Equal(t, tel.Poc1, decoded.Poc1)
	assert.Equal(t, tel.Prl2, decoded.Prl2)

	wantIn, _ := tel.TempIn.ToCelsius()
	gotIn, _ := decoded.TempIn.ToCelsius()
	assert.InDelta(t, wantIn, gotIn, 0.1)
	assert.False(t, decoded.TempOut[1].IsValid())
}

func TestClass0TelemetryTooShort(t *testing.T) {
	_, err := DecodeClass0Telemetry(make([]byte, 6))
	assert.ErrorIs(t, err, ErrPayloadDecode)
}

func TestClass0CommandRoundTrip(t *testing.T) {
	cmd := Class0Command{Coc1: XpsSetOn, Coc2: XpsToggle, Crl1: XpsPulseOn, Crl2: XpsReset}
	payload := cmd.Encode()
	decoded, err := DecodeClass0Command(payload)
	require.NoError(t, err)
	assert.Equal(t, cmd, decoded)
}

func TestClass1TelemetryRoundTrip(t *testing.T) {
	var tel Class1Telemetry
	tel.IOs[0] = true
	tel.IOs[8] = true
	tel.IOs[18] = true
	tel.TempIn = NewTemperature(1500)
	tel.TempOut[0] = NewTemperature(-2000)
	tel.TempOut[1] = NewTemperature(3000)
	tel.TempOut[2] = Invalid

	payload := tel.Encode()
	require.Len(t, payload, 8)

	decoded, err := DecodeClass1Telemetry(payload)
	require.NoError(t, err)
	assert.Equal(t, tel.IOs, decoded.IOs)
	assert.False(t, decoded.TempOut[2].IsValid())

	wantOut0, _ := tel.TempOut[0].ToCelsius()
	gotOut0, _ := decoded.TempOut[0].ToCelsius()
	assert.InDelta(t, wantOut0, gotOut0, 0.1)
}

func TestClass1CommandRoundTrip(t *testing.T) {
	var cmd Class1Command
	cmd.IOs[0] = XpsSetOn
	cmd.IOs[5] = XpsToggle
	cmd.IOs[18] = XpsPulseCancel

	payload := cmd.Encode()
	decoded, err := DecodeClass1Command(payload)
	require.NoError(t, err)
	assert.Equal(t, cmd, decoded)
}

func TestSysCtrlRoundTrip(t *testing.T) {
	sys := SysCtrl{HardwareReset: true, WatchdogEnable: TSToggle, FactoryReset: true, Inhibit: TSPPulse}
	decoded := DecodeSysCtrl(sys.Encode())
	assert.Equal(t, sys, decoded)
}

func TestSysCtrlDefaultIsZero(t *testing.T) {
	var sys SysCtrl
	assert.Equal(t, byte(0), sys.Encode())
}

func TestEncodeTelemetryRequest(t *testing.T) {
	did, _ := NewDeviceId(0, 1)
	id, payload, err := Encode(Request{DeviceId: did, Data: TelemetryRequest{Endpoint: ApplicationDefault}})
	require.NoError(t, err)
	assert.Empty(t, payload)

	fid, err := FrameIdFromU16(id)
	require.NoError(t, err)
	assert.Equal(t, did, fid.DeviceId)
	assert.Equal(t, directionQuery, fid.Direction)
	assert.Equal(t, typeTelemetry, fid.MsgType)
	assert.Equal(t, actionRead, fid.Action)
}

func TestEncodeCommandRequestRejectsOversizePayload(t *testing.T) {
	did, _ := NewDeviceId(0, 1)
	_, _, err := Encode(Request{DeviceId: did, Data: CommandRequest{Endpoint: ApplicationDefault, Payload: make([]byte, 9)}})
	assert.ErrorIs(t, err, ErrCommandEncode)
}

func TestDecodeTelemetryResponse(t *testing.T) {
	did, _ := NewDeviceId(2, 3)
	fid := FrameId{DeviceId: did, Direction: directionResponse, MsgType: typeTelemetry, Action: actionRead, Endpoint: Application1}
	payload := []byte{1, 2, 3}

	resp, err := Decode(fid.ToU16(), payload, time.Now())
	require.NoError(t, err)
	tel, ok := resp.Data.(TelemetryResponse)
	require.True(t, ok)
	assert.Equal(t, Application1, tel.Endpoint)
	assert.Equal(t, payload, tel.Payload)
}

func TestDecodeAttributeResponse(t *testing.T) {
	did, _ := NewDeviceId(1, 1)
	fid := FrameId{DeviceId: did, Direction: directionResponse, MsgType: typeAttribute, Action: actionRead, Endpoint: ApplicationDefault}
	payload := []byte{0x00, 0x10, 42, 0, 0, 0}

	resp, err := Decode(fid.ToU16(), payload, time.Now())
	require.NoError(t, err)
	attr, ok := resp.Data.(AttributeResponse)
	require.True(t, ok)
	assert.Equal(t, uint16(0x1000), attr.Key)
	assert.Equal(t, uint32(42), attr.Value)
}

func TestDecodeErrorResponse(t *testing.T) {
	did, _ := NewDeviceId(3, 0)
	fid := FrameId{DeviceId: did, Direction: directionQuery, MsgType: typeTelemetry, Action: actionWrite, Endpoint: Application2}
	payload := []byte{0x00, 0x3A, 0x00, 0x00} // Einval, little-endian, 32-bit

	resp, err := Decode(fid.ToU16(), payload, time.Now())
	require.NoError(t, err)
	errResp, ok := resp.Data.(ErrorResponse)
	require.True(t, ok)
	require.NotNil(t, errResp.Code)
	assert.Equal(t, Einval, *errResp.Code)
	require.NotNil(t, errResp.Source.Endpoint)
	assert.Equal(t, Application2, *errResp.Source.Endpoint)
}

func TestResolveAttributeKey(t *testing.T) {
	key, part, err := ResolveAttributeKey(0x0003)
	require.NoError(t, err)
	assert.Equal(t, AttrNodeId, key)
	assert.Equal(t, uint8(3), part)

	_, _, err = ResolveAttributeKey(0xffff)
	assert.ErrorIs(t, err, ErrUnknownAttributeKey)
}
