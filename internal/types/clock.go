package types

import "time"

// Clock abstracts the time source so every temporal decision (lifecycle
// eligibility, webhook tolerance, health timeouts) can be made deterministic
// in tests.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock in UTC
type RealClock struct{}

func NewRealClock() Clock {
	return RealClock{}
}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
