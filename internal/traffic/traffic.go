// Package traffic keeps sliding windows of forecast outcomes and HTTP rate-limit denials.
// The health handler reads them to report degraded and overloaded states.
package traffic

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultMaxAge bounds how long outcomes are retained. Windows longer than this see
// only the retained tail.
const DefaultMaxAge = 15 * time.Minute

// Outcome classifies a recorded event.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Denied
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Tracker maintains sliding windows of outcome timestamps. Safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	maxAge time.Duration
	times  [3][]time.Time
}

// NewTracker returns a Tracker. A nil clock uses the real clock; maxAge <= 0 uses
// DefaultMaxAge.
func NewTracker(clock clockwork.Clock, maxAge time.Duration) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Tracker{clock: clock, maxAge: maxAge}
}

// Record appends an outcome at the current time. Unknown outcomes are ignored.
func (t *Tracker) Record(o Outcome) {
	if o < Success || o > Denied {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	t.times[o] = append(t.times[o], now)
	t.pruneLocked(now)
}

// Count returns the number of o outcomes within the window.
func (t *Tracker) Count(o Outcome, window time.Duration) int {
	if o < Success || o > Denied {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return countSince(t.times[o], t.clock.Now().Add(-window))
}

// ErrorRate returns (failures, total) within the window. Denials are excluded from total.
func (t *Tracker) ErrorRate(window time.Duration) (failures, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.clock.Now().Add(-window)
	failures = countSince(t.times[Failure], cutoff)
	return failures, failures + countSince(t.times[Success], cutoff)
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.times {
		t.times[i] = nil
	}
}

// countSince counts timestamps not before cutoff.
func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than maxAge. Slices are append-ordered.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.maxAge)
	for k, times := range t.times {
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			t.times[k] = append(times[:0], times[i:]...)
		}
	}
}
