package rig

// BareRig runs a paradigm without hardware: no markers leave the process and
// all input arrives through the rendering surface.
type BareRig struct{}

func (BareRig) Name() string {
	return "bare-v1"
}

func (BareRig) Inputs() []string {
	return nil
}

func (BareRig) Outputs() []string {
	return nil
}

func (BareRig) Compatible(string) bool {
	return true
}
