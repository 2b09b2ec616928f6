package caniot

// Class1IOCount is the number of GPIO lines a class-1 board exposes.
const Class1IOCount = 19

// Class1Telemetry carries the 19 GPIO states (PC0-3, PD0-3, EIO0-7, PB0,
// PE0-1, in that order) plus one internal and three external temperatures.
type Class1Telemetry struct {
	IOs [Class1IOCount]bool

	TempIn  Temperature
	TempOut [3]Temperature
}

// DecodeClass1Telemetry unpacks an 8-byte class-1 telemetry payload.
func DecodeClass1Telemetry(payload []byte) (Class1Telemetry, error) {
	if len(payload) < 8 {
		return Class1Telemetry{}, newProtoErr(PayloadDecodeError, "caniot: class1 telemetry payload too short")
	}
	var t Class1Telemetry
	for i := 0; i < 8; i++ {
		t.IOs[i] = payload[0]&(1<<uint(i)) != 0
	}
	for i := 0; i < 8; i++ {
		t.IOs[8+i] = payload[1]&(1<<uint(i)) != 0
	}
	t.IOs[16] = payload[2]&0x01 != 0
	t.IOs[17] = payload[2]&0x02 != 0
	t.IOs[18] = payload[2]&0x04 != 0

	t.TempIn = FromRawU10(uint16(payload[3]) | uint16(payload[4]&0x03)<<8)
	t.TempOut[0] = FromRawU10((uint16(payload[4]>>2) | uint16(payload[5]&0x03)<<6) | uint16(payload[5]&0x0c)>>2<<8)
	t.TempOut[1] = FromRawU10((uint16(payload[5]>>4) | uint16(payload[6]&0x0f)<<4) | uint16(payload[6]&0x30)>>4<<8)
	t.TempOut[2] = FromRawU10((uint16(payload[6]>>6) | uint16(payload[7]&0x3f)<<2) | uint16(payload[7]&0xc0)>>6<<8)

	return t, nil
}

// Encode packs the telemetry sample back into its 8-byte wire form.
func (t Class1Telemetry) Encode() []byte {
	payload := make([]byte, 8)

	var b0, b1 byte
	for i := 0; i < 8; i++ {
		if t.IOs[i] {
			b0 |= 1 << uint(i)
		}
	}
	for i := 0; i < 8; i++ {
		if t.IOs[8+i] {
			b1 |= 1 << uint(i)
		}
	}
	payload[0] = b0
	payload[1] = b1

	var b2 byte
	if t.IOs[16] {
		b2 |= 0x01
	}
	if t.IOs[17] {
		b2 |= 0x02
	}
	if t.IOs[18] {
		b2 |= 0x04
	}
	payload[2] = b2

	tempIn := t.TempIn.ToRawU10Bytes()
	tOut0 := t.TempOut[0].ToRawU10Bytes()
	tOut1 := t.TempOut[1].ToRawU10Bytes()
	tOut2 := t.TempOut[2].ToRawU10Bytes()

	payload[3] = tempIn[0]
	payload[4] = tempIn[1] | (tOut0[0] << 2)
	payload[5] = (tOut0[0] >> 6) | (tOut0[1] << 2) | (tOut1[0] << 4)
	payload[6] = (tOut1[0] >> 4) | (tOut1[1] << 4) | (tOut2[0] << 6)
	payload[7] = (tOut2[0] >> 2) | (tOut2[1] << 6)

	return payload
}

// Class1Command actuates all 19 GPIO lines via a per-line XPS selector.
type Class1Command struct {
	IOs [Class1IOCount]Xps
}

// Encode packs the command into its 7-byte wire form using the shared
// 3-bit-per-field packing (setAt). The last field (index 18) starts at bit
// 54, so only its two low bits fit in the payload; its high bit is dropped.
func (c Class1Command) Encode() []byte {
	payload := make([]byte, 7)
	for i, v := range c.IOs {
		setAt(payload, i, v)
	}
	return payload
}

// DecodeClass1Command unpacks a class-1 command payload.
func DecodeClass1Command(payload []byte) (Class1Command, error) {
	if len(payload) < 7 {
		return Class1Command{}, newProtoErr(PayloadDecodeError, "caniot: class1 command payload too short")
	}
	var c Class1Command
	for i := range c.IOs {
		v, err := getAt(payload, i)
		if err != nil {
			return Class1Command{}, err
		}
		c.IOs[i] = v
	}
	return c, nil
}
