package rating

import "fmt"

// Bounds is a closed response interval in scale units. Subject input from
// any source is clamped into it before being recorded; experimenter
// placement is not.
type Bounds struct {
	Lower float64
	Upper float64
}

func NewBounds(lower, upper float64) (Bounds, error) {
	if lower > upper {
		return Bounds{}, fmt.Errorf("lower bound %.3f exceeds upper bound %.3f", lower, upper)
	}
	return Bounds{Lower: lower, Upper: upper}, nil
}

// Clamp forces v into the interval.
func (b Bounds) Clamp(v float64) float64 {
	if v < b.Lower {
		return b.Lower
	}
	if v > b.Upper {
		return b.Upper
	}
	return v
}

// Contains reports whether v lies inside the interval.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Lower && v <= b.Upper
}
