package device

import "strings"

const (
	ParallelPortOutputAliasName  = "parallel_port"
	TriggerBoxOutputAliasName    = "trigger_box"
	SerialTriggerOutputAliasName = "serial_trigger"
	LabJackOutputAliasName       = "labjack"
	USBDAQOutputAliasName        = "usb_daq"
	EventLineOutputAliasName     = "event_line"
)

var outputAliasToCanonical = map[string]string{
	strings.ToLower(ParallelPortOutputAliasName):  SimTriggerName,
	strings.ToLower(TriggerBoxOutputAliasName):    SimTriggerName,
	strings.ToLower(SerialTriggerOutputAliasName): SimTriggerName,
	strings.ToLower(LabJackOutputAliasName):       SimDAQName,
	strings.ToLower(USBDAQOutputAliasName):        SimDAQName,
	strings.ToLower(EventLineOutputAliasName):     SimDAQName,
}

// CanonicalOutputName maps legacy script names for marker hardware onto the
// registered device names.
func CanonicalOutputName(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return ""
	}
	if canonical, ok := outputAliasToCanonical[strings.ToLower(trimmed)]; ok {
		return canonical
	}
	return trimmed
}
