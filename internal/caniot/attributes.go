package caniot

// AttributeKey identifies a device attribute. The low nibble of the wire
// value addresses a "part" (sub-word) of the attribute and is stripped
// before table lookup; ReadRequest/WriteRequest keys therefore carry that
// nibble separately from the canonical key below.
type AttributeKey uint16

const (
	AttrNodeId      AttributeKey = 0x0000
	AttrVersion     AttributeKey = 0x0010
	AttrName        AttributeKey = 0x0020
	AttrMagicNumber AttributeKey = 0x0030
	AttrBuildDate   AttributeKey = 0x0040
	AttrBuildCommit AttributeKey = 0x0050
	AttrFeatures    AttributeKey = 0x0060

	AttrSystemUptimeSynced         AttributeKey = 0x1000
	AttrSystemTime                 AttributeKey = 0x1010
	AttrSystemUptime               AttributeKey = 0x1020
	AttrSystemStartTime            AttributeKey = 0x1030
	AttrSystemLastTelemetry        AttributeKey = 0x1040
	AttrSystemReceivedTotal        AttributeKey = 0x1050
	AttrSystemReceivedReadAttr     AttributeKey = 0x1060
	AttrSystemReceivedWriteAttr    AttributeKey = 0x1070
	AttrSystemReceivedCommand      AttributeKey = 0x1080
	AttrSystemReceivedReqTelemetry AttributeKey = 0x1090
	AttrSystemReceivedIgnored      AttributeKey = 0x10A0
	AttrSystemLastTelemetryMsMod   AttributeKey = 0x10B0
	AttrSystemSentTotal            AttributeKey = 0x10C0
	AttrSystemSentTelemetry        AttributeKey = 0x10D0
	AttrSystemLastCommandError     AttributeKey = 0x10F0
	AttrSystemLastTelemetryError   AttributeKey = 0x1100
	AttrSystemBattery              AttributeKey = 0x1120

	AttrConfigTelemetryPeriod               AttributeKey = 0x2000
	AttrConfigTelemetryDelay                AttributeKey = 0x2010
	AttrConfigTelemetryDelayMin             AttributeKey = 0x2020
	AttrConfigTelemetryDelayMax             AttributeKey = 0x2030
	AttrConfigFlags                         AttributeKey = 0x2040
	AttrConfigTimezone                      AttributeKey = 0x2050
	AttrConfigLocation                      AttributeKey = 0x2060
	AttrConfigCls0GpioPulseDurationOc1      AttributeKey = 0x2070
	AttrConfigCls0GpioPulseDurationOc2      AttributeKey = 0x2080
	AttrConfigCls0GpioPulseDurationRl1      AttributeKey = 0x2090
	AttrConfigCls0GpioPulseDurationRl2      AttributeKey = 0x20A0
	AttrConfigCls0GpioOutputsDefault        AttributeKey = 0x20B0
	AttrConfigCls0GpioMaskTelemetryOnChange AttributeKey = 0x20C0
	AttrConfigCls1GpioDirections            AttributeKey = 0x2210
	AttrConfigCls1GpioOutputsDefault        AttributeKey = 0x2220
	AttrConfigCls1GpioMaskTelemetryOnChange AttributeKey = 0x2230

	AttrDiagResetCount            AttributeKey = 0x3000
	AttrDiagLastResetReason       AttributeKey = 0x3010
	AttrDiagResetCountUnknown     AttributeKey = 0x3020
	AttrDiagResetCountPowerOn     AttributeKey = 0x3030
	AttrDiagResetCountWatchdog    AttributeKey = 0x3040
	AttrDiagResetCountExternal    AttributeKey = 0x3050
)

var knownAttributes = map[AttributeKey]string{
	AttrNodeId: "node_id", AttrVersion: "version", AttrName: "name",
	AttrMagicNumber: "magic_number", AttrBuildDate: "build_date", AttrBuildCommit: "build_commit",
	AttrFeatures: "features",

	AttrSystemUptimeSynced: "system.uptime_synced", AttrSystemTime: "system.time",
	AttrSystemUptime: "system.uptime", AttrSystemStartTime: "system.start_time",
	AttrSystemLastTelemetry: "system.last_telemetry", AttrSystemReceivedTotal: "system.received_total",
	AttrSystemReceivedReadAttr: "system.received_read_attr", AttrSystemReceivedWriteAttr: "system.received_write_attr",
	AttrSystemReceivedCommand: "system.received_command", AttrSystemReceivedReqTelemetry: "system.received_req_telemetry",
	AttrSystemReceivedIgnored: "system.received_ignored", AttrSystemLastTelemetryMsMod: "system.last_telemetry_ms_mod",
	AttrSystemSentTotal: "system.sent_total", AttrSystemSentTelemetry: "system.sent_telemetry",
	AttrSystemLastCommandError: "system.last_command_error", AttrSystemLastTelemetryError: "system.last_telemetry_error",
	AttrSystemBattery: "system.battery",

	AttrConfigTelemetryPeriod: "config.telemetry_period", AttrConfigTelemetryDelay: "config.telemetry_delay",
	AttrConfigTelemetryDelayMin: "config.telemetry_delay_min", AttrConfigTelemetryDelayMax: "config.telemetry_delay_max",
	AttrConfigFlags: "config.flags", AttrConfigTimezone: "config.timezone", AttrConfigLocation: "config.location",
	AttrConfigCls0GpioPulseDurationOc1: "config.cls0_pulse_oc1", AttrConfigCls0GpioPulseDurationOc2: "config.cls0_pulse_oc2",
	AttrConfigCls0GpioPulseDurationRl1: "config.cls0_pulse_rl1", AttrConfigCls0GpioPulseDurationRl2: "config.cls0_pulse_rl2",
	AttrConfigCls0GpioOutputsDefault: "config.cls0_outputs_default", AttrConfigCls0GpioMaskTelemetryOnChange: "config.cls0_mask_telemetry_on_change",
	AttrConfigCls1GpioDirections: "config.cls1_directions", AttrConfigCls1GpioOutputsDefault: "config.cls1_outputs_default",
	AttrConfigCls1GpioMaskTelemetryOnChange: "config.cls1_mask_telemetry_on_change",

	AttrDiagResetCount: "diag.reset_count", AttrDiagLastResetReason: "diag.last_reset_reason",
	AttrDiagResetCountUnknown: "diag.reset_count_unknown", AttrDiagResetCountPowerOn: "diag.reset_count_power_on",
	AttrDiagResetCountWatchdog: "diag.reset_count_watchdog", AttrDiagResetCountExternal: "diag.reset_count_external",
}

// attrPartMask strips the 4-bit "part" sub-field carried in the low
// nibble of a wire attribute key before table lookup.
const attrPartMask uint16 = 0xfff0

// ResolveAttributeKey validates a raw wire attribute key, returning the
// canonical AttributeKey (with its part nibble stripped) and the part
// index, or ErrUnknownAttributeKey if no such attribute exists.
func ResolveAttributeKey(raw uint16) (AttributeKey, uint8, error) {
	key := AttributeKey(raw & attrPartMask)
	part := uint8(raw & 0x000f)
	if _, ok := knownAttributes[key]; !ok {
		return 0, 0, newProtoErr(UnknownAttributeKey, "caniot: unknown attribute key")
	}
	return key, part, nil
}

func (k AttributeKey) String() string {
	if n, ok := knownAttributes[k]; ok {
		return n
	}
	return "unknown"
}
