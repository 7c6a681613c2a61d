package conditions

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

// DefaultPressureThreshold is the absolute delta (station inHg) that counts as a change.
const DefaultPressureThreshold = 0.01

// PressureTracker derives rising/falling/steady from successive barometric readings.
// It retains exactly one prior sample; there is no smoothing.
type PressureTracker struct {
	mu        sync.Mutex
	threshold decimal.Decimal
	last      *models.PressureSample
}

// NewPressureTracker returns a tracker using threshold, or DefaultPressureThreshold when <= 0.
func NewPressureTracker(threshold float64) *PressureTracker {
	if threshold <= 0 {
		threshold = DefaultPressureThreshold
	}
	return &PressureTracker{threshold: decimal.NewFromFloat(threshold)}
}

// Update records a reading with no source field. See Observe.
func (t *PressureTracker) Update(value float64, at time.Time) (models.PressureTrend, bool) {
	return t.Observe(models.PressureSample{Value: value, At: at})
}

// Observe compares sample against the retained one and then replaces it.
// ok is false on the first call, when no trend exists yet, and when the source field
// differs from the retained sample's; the new sample then starts a fresh baseline.
// Differences are computed in decimal so a delta equal to the threshold is steady.
func (t *PressureTracker) Observe(sample models.PressureSample) (trend models.PressureTrend, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.last != nil && t.last.Source == sample.Source {
		delta := decimal.NewFromFloat(sample.Value).Sub(decimal.NewFromFloat(t.last.Value))
		dir := models.PressureSteady
		switch {
		case delta.GreaterThan(t.threshold):
			dir = models.PressureRising
		case delta.LessThan(t.threshold.Neg()):
			dir = models.PressureFalling
		}
		trend = models.PressureTrend{Direction: dir, Delta: delta.InexactFloat64()}
		ok = true
	}
	t.last = &sample
	return trend, ok
}

// Last returns the retained sample, if any.
func (t *PressureTracker) Last() (models.PressureSample, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.last == nil {
		return models.PressureSample{}, false
	}
	return *t.last, true
}
