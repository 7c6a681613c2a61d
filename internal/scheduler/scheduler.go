// Package scheduler triggers periodic forecast refreshes.
package scheduler

import (
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-mirror/internal/observability"
)

const DefaultInterval = 30 * time.Minute

var ErrAlreadyStarted = errors.New("scheduler already started")

// Requester is anything that can be asked for a forecast refresh. *presenter.Presenter
// satisfies it.
type Requester interface {
	RequestForecast()
}

// Scheduler periodically asks the presenter for a new forecast. The first run happens
// immediately on Start.
type Scheduler struct {
	scheduler *gocron.Scheduler
	requester Requester
	interval  time.Duration
	logger    *zap.Logger
	started   bool
}

// New creates a Scheduler. A non-positive interval uses DefaultInterval.
func New(requester Requester, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		requester: requester,
		interval:  interval,
		logger:    logger.Named("scheduler"),
	}
}

// Start schedules the refresh job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.started {
		return ErrAlreadyStarted
	}
	_, err := s.scheduler.Every(s.interval).Tag("forecast-refresh").Do(s.refresh)
	if err != nil {
		return err
	}
	s.scheduler.StartAsync()
	s.started = true
	s.logger.Info("forecast refresh scheduled", zap.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) refresh() {
	observability.ForecastRefreshTotal.Inc()
	s.logger.Debug("requesting forecast refresh")
	s.requester.RequestForecast()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.started {
		s.scheduler.Stop()
	}
}
