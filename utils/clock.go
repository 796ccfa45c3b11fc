package utils

import "time"

// Clock supplies the current time. Throttling and day-boundary logic take a
// Clock instead of reading the wall clock so they can be tested.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// NewClock returns a wall-clock backed Clock
func NewClock() Clock {
	return realClock{}
}
