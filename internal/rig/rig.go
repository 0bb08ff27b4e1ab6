package rig

// Rig defines the named device set a paradigm runs with.
type Rig interface {
	Name() string
	Inputs() []string
	Outputs() []string
	Compatible(paradigm string) bool
}
