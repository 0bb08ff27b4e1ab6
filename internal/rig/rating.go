package rig

import "peira/internal/device"

type RatingKeypadRig struct{}

func (RatingKeypadRig) Name() string {
	return "rating-keypad-v1"
}

func (RatingKeypadRig) Inputs() []string {
	return []string{device.SimKeypadName}
}

func (RatingKeypadRig) Outputs() []string {
	return []string{device.SimTriggerName}
}

func (RatingKeypadRig) Compatible(paradigm string) bool {
	return paradigm == "rating"
}

// RatingPointerRig drives the scale from pointer events delivered by the
// rendering surface, so it names no registered input device.
type RatingPointerRig struct{}

func (RatingPointerRig) Name() string {
	return "rating-pointer-v1"
}

func (RatingPointerRig) Inputs() []string {
	return nil
}

func (RatingPointerRig) Outputs() []string {
	return []string{device.SimTriggerName}
}

func (RatingPointerRig) Compatible(paradigm string) bool {
	return paradigm == "rating"
}
