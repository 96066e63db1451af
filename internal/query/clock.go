package query

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can freeze "now" via
// SetClock. hoursUntil arithmetic is meaningless without a pinned now.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source for arrival arithmetic. Pass nil to reset
// to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
