package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/ambient-mirror/internal/models"
)

// inFlightRequest is one upstream fetch that several callers may wait on.
type inFlightRequest struct {
	done   chan struct{}
	result models.ForecastCacheEntry
	err    error
}

// requestCoalescer collapses concurrent fetches for the same key into one upstream call.
type requestCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*inFlightRequest
	timeout  time.Duration
}

func newRequestCoalescer(timeout time.Duration) *requestCoalescer {
	return &requestCoalescer{
		inFlight: make(map[string]*inFlightRequest),
		timeout:  timeout,
	}
}

// GetOrDo joins the in-flight request for key or starts fn for it. fn receives a context
// detached from any single caller and bounded by the coalescer timeout, so one caller
// giving up does not fail the others. shared is true when the caller joined an existing
// request.
func (rc *requestCoalescer) GetOrDo(ctx context.Context, key string, fn func(ctx context.Context) (models.ForecastCacheEntry, error)) (result models.ForecastCacheEntry, shared bool, err error) {
	rc.mu.Lock()
	req, exists := rc.inFlight[key]
	if !exists {
		req = &inFlightRequest{done: make(chan struct{})}
		rc.inFlight[key] = req
	}
	rc.mu.Unlock()

	if !exists {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rc.timeout)
		go func() {
			defer cancel()
			req.result, req.err = fn(fetchCtx)
			rc.mu.Lock()
			delete(rc.inFlight, key)
			rc.mu.Unlock()
			close(req.done)
		}()
	}

	select {
	case <-req.done:
		return req.result, exists, req.err
	case <-ctx.Done():
		return models.ForecastCacheEntry{}, exists, ctx.Err()
	}
}
