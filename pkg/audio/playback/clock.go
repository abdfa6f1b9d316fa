package playback

import "time"

// Clock is the shared playback clock. Now returns the time elapsed since the
// clock was created; it is monotonic and never goes backwards.
type Clock interface {
	Now() time.Duration
}

type monotonicClock struct {
	start time.Time
}

// NewClock returns a monotonic Clock starting at zero.
func NewClock() Clock {
	return &monotonicClock{start: time.Now()}
}

func (c *monotonicClock) Now() time.Duration {
	return time.Since(c.start)
}
