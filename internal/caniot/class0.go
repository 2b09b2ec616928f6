package caniot

// Class0Telemetry is the class-0 board telemetry sample: two open-collector
// outputs, two relays, four digital inputs, the pulse-pending flags of the
// four outputs, plus one internal and three external temperature probes.
type Class0Telemetry struct {
	Oc1, Oc2 bool
	Rl1, Rl2 bool
	In1, In2, In3, In4 bool
	Poc1, Puc2, Prl1, Prl2 bool

	TempIn  Temperature
	TempOut [3]Temperature
}

// DecodeClass0Telemetry unpacks a 7-byte class-0 telemetry payload.
func DecodeClass0Telemetry(payload []byte) (Class0Telemetry, error) {
	if len(payload) < 7 {
		return Class0Telemetry{}, newProtoErr(PayloadDecodeError, "caniot: class0 telemetry payload too short")
	}
	t := Class0Telemetry{
		Oc1: payload[0]&0x01 != 0,
		Oc2: payload[0]&0x02 != 0,
		Rl1: payload[0]&0x04 != 0,
		Rl2: payload[0]&0x08 != 0,
		In1: payload[0]&0x10 != 0,
		In2: payload[0]&0x20 != 0,
		In3: payload[0]&0x40 != 0,
		In4: payload[0]&0x80 != 0,

		Poc1: payload[1]&0x01 != 0,
		Puc2: payload[1]&0x02 != 0,
		Prl1: payload[1]&0x04 != 0,
		Prl2: payload[1]&0x08 != 0,
	}

	t.TempIn = FromRawU10(uint16(payload[2]) | uint16(payload[3]&0x03)<<8)
	t.TempOut[0] = FromRawU10(uint16(payload[3]>>2) | uint16(payload[4]&0x0f)<<6)
	t.TempOut[1] = FromRawU10(uint16(payload[4]>>4) | uint16(payload[5]&0x3f)<<4)
	t.TempOut[2] = FromRawU10(uint16(payload[5]>>6) | uint16(payload[6])<<2)

	return t, nil
}

// Encode packs the telemetry sample back into its 7-byte wire form.
func (t Class0Telemetry) Encode() []byte {
	payload := make([]byte, 7)

	if t.Oc1 {
		payload[0] |= 0x01
	}
	if t.Oc2 {
		payload[0] |= 0x02
	}
	if t.Rl1 {
		payload[0] |= 0x04
	}
	if t.Rl2 {
		payload[0] |= 0x08
	}
	if t.In1 {
		payload[0] |= 0x10
	}
	if t.In2 {
		payload[0] |= 0x20
	}
	if t.In3 {
		payload[0] |= 0x40
	}
	if t.In4 {
		payload[0] |= 0x80
	}

	if t.Poc1 {
		payload[1] |= 0x01
	}
	if t.Puc2 {
		payload[1] |= 0x02
	}
	if t.Prl1 {
		payload[1] |= 0x04
	}
	if t.Prl2 {
		payload[1] |= 0x08
	}

	tempIn := t.TempIn.ToRawU10Bytes()
	tOut0 := t.TempOut[0].ToRawU10Bytes()
	tOut1 := t.TempOut[1].ToRawU10Bytes()
	tOut2 := t.TempOut[2].ToRawU10Bytes()

	payload[2] = tempIn[0]
	payload[3] = tempIn[1] | (tOut0[0] << 2)
	payload[4] = (tOut0[0] >> 6) | (tOut0[1] << 2) | (tOut1[0] << 4)
	payload[5] = (tOut1[0] >> 4) | (tOut1[1] << 4) | (tOut2[0] << 6)
	payload[6] = (tOut2[0] >> 2) | (tOut2[1] << 6)

	return payload
}

// Class0Command actuates the two open-collector outputs and two relays.
type Class0Command struct {
	Coc1, Coc2 Xps
	Crl1, Crl2 Xps
}

// HasEffect reports whether any field of the command actually asks for a
// state change, as opposed to the zero-value "leave everything as is".
func (c Class0Command) HasEffect() bool {
	return c.Coc1 != XpsNone || c.Coc2 != XpsNone || c.Crl1 != XpsNone || c.Crl2 != XpsNone
}

// Encode packs the command into its wire form. The payload is 7 bytes,
// matching the command endpoint's fixed frame size; only the first two
// carry data.
func (c Class0Command) Encode() []byte {
	payload := make([]byte, 7)
	payload[0] = uint8(c.Coc1)
	payload[0] |= uint8(c.Coc2) << 3
	payload[0] |= (uint8(c.Crl1) & 0x3) << 6
	payload[1] = (uint8(c.Crl1) & 0x4) >> 2
	payload[1] |= uint8(c.Crl2) << 1
	return payload
}

// DecodeClass0Command unpacks a class-0 command payload.
func DecodeClass0Command(payload []byte) (Class0Command, error) {
	if len(payload) < 2 {
		return Class0Command{}, newProtoErr(PayloadDecodeError, "caniot: class0 command payload too short")
	}
	coc1, err := xpsFromU8(payload[0] & 0x07)
	if err != nil {
		return Class0Command{}, err
	}
	coc2, err := xpsFromU8((payload[0] & 0x38) >> 3)
	if err != nil {
		return Class0Command{}, err
	}
	crl1, err := xpsFromU8(((payload[0] & 0xc0) >> 6) | ((payload[1] & 0x01) << 2))
	if err != nil {
		return Class0Command{}, err
	}
	crl2, err := xpsFromU8((payload[1] & 0x0e) >> 1)
	if err != nil {
		return Class0Command{}, err
	}
	return Class0Command{Coc1: coc1, Coc2: coc2, Crl1: crl1, Crl2: crl2}, nil
}

func xpsFromU8(v uint8) (Xps, error) {
	x, ok := xpsFromU8raw(v)
	if !ok {
		return 0, newProtoErr(PayloadDecodeError, "caniot: invalid xps value")
	}
	return x, nil
}
