package timing

import "time"

// Clock abstracts the time source so waits can be driven by fakes in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the process clock via time.Now, which carries a
// monotonic reading on all supported platforms.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
