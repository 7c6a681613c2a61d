package presenter

import (
	"time"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

const (
	DefaultOfflineThreshold = 5 * time.Minute
	DefaultCheckInterval    = 15 * time.Second
)

// Staleness tracks loading/online/offline. It is owned by the presenter loop and is not
// safe for concurrent use.
type Staleness struct {
	threshold  time.Duration
	state      models.DisplayState
	lastUpdate time.Time
}

// NewStaleness starts in loading. A non-positive threshold uses DefaultOfflineThreshold.
func NewStaleness(threshold time.Duration) *Staleness {
	if threshold <= 0 {
		threshold = DefaultOfflineThreshold
	}
	return &Staleness{threshold: threshold, state: models.StateLoading}
}

// Observe records an observation arriving at at. It reports whether the state changed;
// loading and offline both move to online.
func (s *Staleness) Observe(at time.Time) bool {
	s.lastUpdate = at
	if s.state == models.StateOnline {
		return false
	}
	s.state = models.StateOnline
	return true
}

// Check re-evaluates the state at now. Offline means strictly more than the threshold
// has elapsed. Loading is only ever left through Observe.
func (s *Staleness) Check(now time.Time) bool {
	if s.state == models.StateLoading {
		return false
	}
	next := models.StateOnline
	if now.Sub(s.lastUpdate) > s.threshold {
		next = models.StateOffline
	}
	if next == s.state {
		return false
	}
	s.state = next
	return true
}

func (s *Staleness) State() models.DisplayState {
	return s.state
}

// LastUpdate returns the arrival time of the latest observation.
func (s *Staleness) LastUpdate() (time.Time, bool) {
	return s.lastUpdate, !s.lastUpdate.IsZero()
}
