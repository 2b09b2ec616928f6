package caniot

import "fmt"

// DeviceId is a 6-bit node address split into a 3-bit class and 3-bit sub-id.
type DeviceId struct {
	Class uint8
	SubId uint8
}

// Broadcast is the reserved all-devices address (class=0b111, sub_id=0b111).
var Broadcast = DeviceId{Class: 0x7, SubId: 0x7}

// NewDeviceId builds a DeviceId from separate class/sub-id fields.
func NewDeviceId(class, subId uint8) (DeviceId, error) {
	if class > 0x7 || subId > 0x7 {
		return DeviceId{}, newProtoErr(DeviceIdCreationError, "")
	}
	return DeviceId{Class: class, SubId: subId}, nil
}

// DeviceIdFromU8 decodes a 6-bit device id packed as sub_id<<3 | class.
// Any value with the top two bits set (> 0x3f) is rejected.
func DeviceIdFromU8(v uint8) (DeviceId, error) {
	if v > 0x3f {
		return DeviceId{}, newProtoErr(DeviceIdCreationError, "")
	}
	return DeviceId{Class: v & 0x7, SubId: (v >> 3) & 0x7}, nil
}

// ToU8 packs the device id back into its 6-bit wire form.
func (d DeviceId) ToU8() uint8 {
	return (d.SubId << 3) | d.Class
}

// IsBroadcast reports whether d is the reserved broadcast address.
func (d DeviceId) IsBroadcast() bool {
	return d == Broadcast
}

func (d DeviceId) String() string {
	return fmt.Sprintf("(%d: %d,%d)", d.ToU8(), d.Class, d.SubId)
}
