package rig

import "peira/internal/device"

type DetectionTriggerRig struct{}

func (DetectionTriggerRig) Name() string {
	return "detection-trigger-v1"
}

func (DetectionTriggerRig) Inputs() []string {
	return []string{device.SimKeypadName}
}

func (DetectionTriggerRig) Outputs() []string {
	return []string{device.SimTriggerName}
}

func (DetectionTriggerRig) Compatible(paradigm string) bool {
	return paradigm == "detection"
}

// DetectionDAQRig adds a DAQ line alongside the trigger box for rigs that
// mark response windows on a second channel.
type DetectionDAQRig struct{}

func (DetectionDAQRig) Name() string {
	return "detection-daq-v1"
}

func (DetectionDAQRig) Inputs() []string {
	return []string{device.SimKeypadName}
}

func (DetectionDAQRig) Outputs() []string {
	return []string{device.SimTriggerName, device.SimDAQName}
}

func (DetectionDAQRig) Compatible(paradigm string) bool {
	return paradigm == "detection"
}
