// Package client fetches multi-day forecasts from the National Weather Service API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-mirror/internal/circuitbreaker"
	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/observability"
)

// ForecastClient fetches forecast rows for a query.
type ForecastClient interface {
	GetForecast(ctx context.Context, q models.ForecastQuery) ([]models.ForecastDay, error)
}

var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrLocationNotFound   = errors.New("location not found")
	ErrRateLimited        = errors.New("rate limited")
	ErrUpstreamFailure    = errors.New("upstream failure")
	ErrUnexpectedStatus   = errors.New("unexpected status")
	ErrMalformedResponse  = errors.New("malformed response")
)

const (
	DefaultBaseURL   = "https://api.weather.gov"
	DefaultUserAgent = "ambient-mirror/1.0 (smart mirror)"

	maxBodyBytes = 4 << 20
)

// Config holds NWS client parameters. Zero values take defaults.
type Config struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// NWSClient implements the two-step points -> forecast lookup against api.weather.gov.
type NWSClient struct {
	baseURL        *url.URL
	userAgent      string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *gobreaker.CircuitBreaker
	logger         *zap.Logger
}

// NewNWSClient validates cfg and returns a client.
func NewNWSClient(cfg Config, logger *zap.Logger) (*NWSClient, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid forecast API URL %q", cfg.BaseURL)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 250 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NWSClient{
		baseURL:        base,
		userAgent:      cfg.UserAgent,
		timeout:        cfg.Timeout,
		client:         &http.Client{Timeout: cfg.Timeout},
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
		retryMaxDelay:  cfg.RetryMaxDelay,
		logger:         logger.Named("nws"),
	}, nil
}

// SetCircuitBreaker routes every HTTP attempt through cb. Call before first use.
func (c *NWSClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// BreakerSuccess reports whether err says nothing about upstream health, so the
// breaker should not count it. Build the breaker with this as IsSuccessful.
func BreakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, ErrLocationNotFound) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrUnexpectedStatus) ||
		errors.Is(err, context.Canceled)
}

type pointsResponse struct {
	Properties struct {
		Forecast string `json:"forecast"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []period `json:"periods"`
	} `json:"properties"`
}

// GetForecast resolves the grid forecast URL for the coordinates and returns up to
// q.Days daytime rows with paired overnight lows.
func (c *NWSClient) GetForecast(ctx context.Context, q models.ForecastQuery) ([]models.ForecastDay, error) {
	q = q.Normalized()
	if q.Latitude < -90 || q.Latitude > 90 || q.Longitude < -180 || q.Longitude > 180 {
		return nil, fmt.Errorf("%w: %f,%f", ErrInvalidCoordinates, q.Latitude, q.Longitude)
	}

	pointsURL := c.baseURL.JoinPath("points", fmt.Sprintf("%.4f,%.4f", q.Latitude, q.Longitude))
	var points pointsResponse
	if err := c.getJSON(ctx, pointsURL.String(), &points); err != nil {
		return nil, fmt.Errorf("points lookup: %w", err)
	}
	if points.Properties.Forecast == "" {
		return nil, fmt.Errorf("%w: no forecast URL in points response", ErrMalformedResponse)
	}

	var fc forecastResponse
	if err := c.getJSON(ctx, points.Properties.Forecast, &fc); err != nil {
		return nil, fmt.Errorf("forecast lookup: %w", err)
	}
	if fc.Properties.Periods == nil {
		return nil, fmt.Errorf("%w: no periods in forecast response", ErrMalformedResponse)
	}

	days := buildForecast(fc.Properties.Periods, q)
	c.logger.Debug("forecast fetched",
		zap.String("key", q.Key()),
		zap.Int("periods", len(fc.Properties.Periods)),
		zap.Int("days", len(days)),
	)
	return days, nil
}

// getJSON GETs rawURL with retries and decodes the body into out.
func (c *NWSClient) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.ForecastAPIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			c.logger.Debug("retrying forecast request",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		var body []byte
		var err error
		if c.breaker != nil {
			body, err = circuitbreaker.Do(c.breaker, func() ([]byte, error) {
				return c.callAPI(ctx, rawURL)
			})
		} else {
			body, err = c.callAPI(ctx, rawURL)
		}
		if err == nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("%w: parse response: %v", ErrMalformedResponse, err)
			}
			return nil
		}

		lastErr = err
		if ctx.Err() != nil || !isRetryable(err) {
			return err
		}
	}

	return fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *NWSClient) callAPI(ctx context.Context, rawURL string) ([]byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		observability.ForecastAPICallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/geo+json")
	if corrID := observability.CorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.ForecastAPICallsTotal.WithLabelValues("error").Inc()
		observability.ForecastAPIDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		if isTimeout(err) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	status := statusLabel(resp.StatusCode)
	observability.ForecastAPICallsTotal.WithLabelValues(status).Inc()
	observability.ForecastAPIDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err := handleErrorResponse(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func handleErrorResponse(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrLocationNotFound, resp.Request.URL.Path)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w", ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	default:
		return fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) || isTimeout(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (c *NWSClient) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
