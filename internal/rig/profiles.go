package rig

import (
	"fmt"
	"sort"
	"strings"

	"peira/internal/device"
	"peira/internal/paradigmid"
)

func EnsureParadigmCompatibilityWithRig(paradigmName, profile string) error {
	r, err := ConstructRig(paradigmName, profile)
	if err != nil {
		return err
	}
	paradigmName = paradigmid.Normalize(paradigmName)
	return ValidateRegisteredDevices(paradigmName, r)
}

func EnsureParadigmCompatibility(paradigmName string) error {
	paradigmName = paradigmid.Normalize(paradigmName)
	r, ok := defaultRigForParadigm(paradigmName)
	if !ok {
		return nil
	}
	return ValidateRegisteredDevices(paradigmName, r)
}

func ConstructRig(paradigmName, profile string) (Rig, error) {
	paradigmName = paradigmid.Normalize(paradigmName)
	profile = normalizeRigProfile(profile)
	switch paradigmName {
	case "rating":
		switch profile {
		case "", "default", "keypad", "keys":
			return RatingKeypadRig{}, nil
		case "pointer", "mouse", "touch":
			return RatingPointerRig{}, nil
		case "bare", "none":
			return BareRig{}, nil
		default:
			return nil, fmt.Errorf("unsupported rating rig profile: %s", profile)
		}
	case "detection":
		switch profile {
		case "", "default", "trigger":
			return DetectionTriggerRig{}, nil
		case "daq", "full":
			return DetectionDAQRig{}, nil
		case "bare", "none":
			return BareRig{}, nil
		default:
			return nil, fmt.Errorf("unsupported detection rig profile: %s", profile)
		}
	default:
		return nil, fmt.Errorf("unsupported paradigm rig: %s", paradigmName)
	}
}

func AvailableRigProfiles(paradigmName string) []string {
	paradigmName = paradigmid.Normalize(paradigmName)
	var profiles []string
	switch paradigmName {
	case "rating":
		profiles = []string{"bare", "default", "keypad", "pointer"}
	case "detection":
		profiles = []string{"bare", "daq", "default", "trigger"}
	}
	sort.Strings(profiles)
	return profiles
}

// ValidateRegisteredDevices confirms that every device a rig names resolves
// through the registries for the given paradigm.
func ValidateRegisteredDevices(paradigmName string, r Rig) error {
	if !r.Compatible(paradigmName) {
		return fmt.Errorf("rig %s incompatible with paradigm %s", r.Name(), paradigmName)
	}

	for _, inputName := range r.Inputs() {
		if _, err := device.ResolveInput(inputName, paradigmName); err != nil {
			return fmt.Errorf("resolve input %s: %w", inputName, err)
		}
	}
	for _, outputName := range r.Outputs() {
		if _, err := device.ResolveOutput(outputName, paradigmName); err != nil {
			return fmt.Errorf("resolve output %s: %w", outputName, err)
		}
	}
	return nil
}

func defaultRigForParadigm(paradigmName string) (Rig, bool) {
	switch paradigmid.Normalize(paradigmName) {
	case "rating":
		return RatingKeypadRig{}, true
	case "detection":
		return DetectionTriggerRig{}, true
	default:
		return nil, false
	}
}

func normalizeRigProfile(raw string) string {
	profile := strings.TrimSpace(strings.ToLower(raw))
	profile = strings.ReplaceAll(profile, "-", "_")
	return profile
}
