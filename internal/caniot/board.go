package caniot

// TS is a 2-bit ternary-set selector used for the board watchdog-enable
// field.
type TS uint8

const (
	TSNone TS = iota
	TSSet
	TSReset
	TSToggle
)

// TSP is a 2-bit ternary-set-pulse selector used for the board inhibit
// field.
type TSP uint8

const (
	TSPNone TSP = iota
	TSPSet
	TSPReset
	TSPPulse
)

// SysCtrl is the single board-control byte appended to every class
// command sent to Endpoint BoardControl.
type SysCtrl struct {
	HardwareReset   bool
	WatchdogEnable  TS
	FactoryReset    bool
	Inhibit         TSP
}

// HardwareResetSysCtrl requests an immediate hardware reset.
var HardwareResetSysCtrl = SysCtrl{HardwareReset: true}

// InhibitSysCtrl sets the board's control inhibit flag.
var InhibitSysCtrl = SysCtrl{Inhibit: TSPSet}

// Encode packs SysCtrl into its single-byte wire form. Bits 1-2 are
// reserved (deprecated software/watchdog reset flags, always zero).
func (s SysCtrl) Encode() byte {
	var v byte
	if s.HardwareReset {
		v |= 0x01
	}
	v |= byte(s.WatchdogEnable) << 3
	if s.FactoryReset {
		v |= 0x20
	}
	v |= byte(s.Inhibit) << 6
	return v
}

// DecodeSysCtrl unpacks a board-control byte.
func DecodeSysCtrl(v byte) SysCtrl {
	return SysCtrl{
		HardwareReset:  v&0x01 != 0,
		WatchdogEnable: TS((v & 0x18) >> 3),
		FactoryReset:   v&0x20 != 0,
		Inhibit:        TSP((v & 0xc0) >> 6),
	}
}

// AppendSysCtrl appends the encoded SysCtrl byte to a class command
// payload, producing the full BoardControl command frame payload.
func AppendSysCtrl(classPayload []byte, sys SysCtrl) []byte {
	return append(append([]byte{}, classPayload...), sys.Encode())
}
