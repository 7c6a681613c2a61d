// Package presenter owns display state: it merges observations and forecast results,
// runs the staleness state machine and emits view models to a Renderer.
package presenter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-mirror/internal/conditions"
	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/observability"
)

const (
	DefaultForecastTimeout = 30 * time.Second
	observationBuffer      = 64
)

var allStates = []string{
	string(models.StateLoading),
	string(models.StateOnline),
	string(models.StateOffline),
}

// Renderer receives every view model the presenter produces.
type Renderer interface {
	Render(vm models.ViewModel)
}

// ForecastSource supplies forecasts. *service.ForecastService satisfies it.
type ForecastSource interface {
	GetForecast(ctx context.Context, q models.ForecastQuery) (models.ForecastCacheEntry, error)
}

// Config holds presenter parameters. Zero values take defaults.
type Config struct {
	OfflineThreshold time.Duration
	CheckInterval    time.Duration
	// ForecastTimeout bounds a forecast request. A pending request older than this no
	// longer blocks a new one.
	ForecastTimeout time.Duration
	Query           models.ForecastQuery
	View            ViewOptions
	// PressureThreshold and GustThreshold tune the trend tracker and classifier.
	PressureThreshold float64
	GustThreshold     float64
	Clock             clockwork.Clock
}

type forecastResult struct {
	generation uint64
	days       []models.ForecastDay
	err        error
}

type pendingRequest struct {
	generation uint64
	startedAt  time.Time
}

// Presenter is a single-goroutine event loop. Observe and RequestForecast may be called
// from any goroutine; everything else happens inside Run.
type Presenter struct {
	cfg       Config
	forecasts ForecastSource
	renderer  Renderer
	clock     clockwork.Clock
	logger    *zap.Logger

	observations chan models.Observation
	requests     chan struct{}
	results      chan forecastResult
	done         chan struct{}
	running      atomic.Bool

	// loop-owned state
	staleness  *Staleness
	tracker    *conditions.PressureTracker
	classifier conditions.Classifier
	latest     *models.Observation
	trend      *models.PressureTrend
	forecast   []models.ForecastDay
	generation uint64
	pending    *pendingRequest
}

// New builds a presenter. forecasts may be nil when the forecast section is disabled.
func New(cfg Config, forecasts ForecastSource, renderer Renderer, logger *zap.Logger) *Presenter {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultCheckInterval
	}
	if cfg.ForecastTimeout <= 0 {
		cfg.ForecastTimeout = DefaultForecastTimeout
	}
	if cfg.PressureThreshold <= 0 {
		cfg.PressureThreshold = conditions.DefaultPressureThreshold
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.View.Units == "" {
		cfg.View.Units = DefaultViewOptions().Units
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{
		cfg:          cfg,
		forecasts:    forecasts,
		renderer:     renderer,
		clock:        cfg.Clock,
		logger:       logger.Named("presenter"),
		observations: make(chan models.Observation, observationBuffer),
		requests:     make(chan struct{}, 1),
		results:      make(chan forecastResult),
		done:         make(chan struct{}),
		staleness:    NewStaleness(cfg.OfflineThreshold),
		tracker:      conditions.NewPressureTracker(cfg.PressureThreshold),
		classifier:   conditions.Classifier{GustThreshold: cfg.GustThreshold},
	}
}

// Observe queues an observation. Order is preserved. It blocks while the queue is full
// and returns immediately once Run has exited.
func (p *Presenter) Observe(obs models.Observation) {
	select {
	case p.observations <- obs:
	case <-p.done:
	}
}

// RequestForecast asks the loop to start a forecast request. Calls made while a request
// signal is already queued are merged.
func (p *Presenter) RequestForecast() {
	select {
	case p.requests <- struct{}{}:
	default:
	}
}

// Run renders the initial loading view and processes events until ctx is done.
func (p *Presenter) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}
	defer close(p.done)

	ticker := p.clock.NewTicker(p.cfg.CheckInterval)
	defer ticker.Stop()

	observability.SetPresenterState(string(p.staleness.State()), allStates)
	p.render("initial")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case obs := <-p.observations:
			p.handleObservation(obs)
		case <-ticker.Chan():
			p.checkStaleness()
		case <-p.requests:
			p.startForecast(ctx)
		case res := <-p.results:
			p.handleForecast(res)
		}
	}
}

func (p *Presenter) handleObservation(obs models.Observation) {
	now := p.clock.Now()
	at := obs.ObservedAt
	if at.IsZero() {
		at = now
	}
	if sample, ok := obs.PressureReading(); ok {
		sample.At = at
		if last, had := p.tracker.Last(); had && last.Source != sample.Source {
			p.logger.Info("pressure source changed, resetting trend",
				zap.String("from", string(last.Source)),
				zap.String("to", string(sample.Source)),
			)
			p.trend = nil
		}
		if trend, ok := p.tracker.Observe(sample); ok {
			p.trend = &trend
		}
	}
	p.latest = &obs

	if p.staleness.Observe(now) {
		p.logger.Info("station online")
		observability.SetPresenterState(string(p.staleness.State()), allStates)
	}
	p.render("observation")
}

func (p *Presenter) checkStaleness() {
	if !p.staleness.Check(p.clock.Now()) {
		return
	}
	state := p.staleness.State()
	last, _ := p.staleness.LastUpdate()
	if state == models.StateOffline {
		p.logger.Warn("station offline", zap.Time("last_update", last))
	} else {
		p.logger.Info("station online")
	}
	observability.SetPresenterState(string(state), allStates)
	p.render("staleness")
}

func (p *Presenter) startForecast(ctx context.Context) {
	if p.forecasts == nil || !p.cfg.View.ShowForecast {
		return
	}
	now := p.clock.Now()
	if p.pending != nil && now.Sub(p.pending.startedAt) < p.cfg.ForecastTimeout {
		p.logger.Debug("forecast request already pending", zap.Uint64("generation", p.pending.generation))
		return
	}

	p.generation++
	gen := p.generation
	p.pending = &pendingRequest{generation: gen, startedAt: now}
	q := p.cfg.Query
	timeout := p.cfg.ForecastTimeout

	go func() {
		fetchCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		entry, err := p.forecasts.GetForecast(fetchCtx, q)
		select {
		case p.results <- forecastResult{generation: gen, days: entry.Days, err: err}:
		case <-p.done:
		}
	}()
}

func (p *Presenter) handleForecast(res forecastResult) {
	if res.generation != p.generation {
		observability.StaleForecastDiscardsTotal.Inc()
		p.logger.Debug("discarding stale forecast result",
			zap.Uint64("generation", res.generation),
			zap.Uint64("current", p.generation),
		)
		return
	}
	p.pending = nil
	if res.err != nil {
		p.logger.Warn("forecast unavailable, keeping last known", zap.Error(res.err))
		return
	}
	p.forecast = res.days
	p.render("forecast")
}

func (p *Presenter) render(trigger string) {
	if p.renderer == nil {
		return
	}
	last, _ := p.staleness.LastUpdate()
	vm := buildView(snapshot{
		state:      p.staleness.State(),
		lastUpdate: last,
		obs:        p.latest,
		trend:      p.trend,
		forecast:   p.forecast,
	}, p.clock.Now(), p.classifier, p.cfg.View)

	p.renderer.Render(vm)
	observability.RendersTotal.WithLabelValues(trigger).Inc()
}
