// Package realtime maintains the station's realtime push session over Socket.IO and
// turns data events into observations.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
	"go.uber.org/zap"

	"github.com/kjstillabower/ambient-mirror/internal/models"
	"github.com/kjstillabower/ambient-mirror/internal/observability"
)

const (
	DefaultURL              = "https://rt2.ambientweather.net"
	DefaultReconnectDelay   = 5 * time.Second
	DefaultHandshakeTimeout = 15 * time.Second
)

var (
	ErrMissingCredentials = errors.New("api key and application key are required")
	ErrHandshake          = errors.New("realtime handshake failed")
	ErrConnectRejected    = errors.New("realtime namespace connect rejected")
)

// Config holds realtime feed parameters.
type Config struct {
	URL            string
	APIKey         string
	ApplicationKey string
	// MACAddress filters data events to one station; empty accepts all.
	MACAddress string
	// Latitude and Longitude enable computed sunrise/sunset when the payload has none.
	Latitude  *float64
	Longitude *float64
	// ReconnectDelay is the fixed wait between a session ending and the next dial.
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
}

// Handler receives each accepted observation. Calls never overlap.
type Handler func(models.Observation)

// Option configures a Connector.
type Option func(*Connector)

// WithClock replaces the real clock used for reconnect delays and sun times.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Connector) { c.clock = clock }
}

// Connector owns at most one live feed session.
type Connector struct {
	cfg       Config
	filterMAC string
	handler   Handler
	clock     clockwork.Clock
	logger    *zap.Logger

	mu        sync.Mutex // serializes Connect and Close
	deliverMu sync.Mutex // serializes handler calls
	current   atomic.Pointer[session]
}

// NewConnector validates cfg and returns an idle connector. Call Run to start it.
func NewConnector(cfg Config, handler Handler, logger *zap.Logger, opts ...Option) (*Connector, error) {
	if cfg.APIKey == "" || cfg.ApplicationKey == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if err := validateURL(cfg.URL); err != nil {
		return nil, err
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if handler == nil {
		handler = func(models.Observation) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Connector{
		cfg:       cfg,
		filterMAC: strings.ToLower(strings.TrimSpace(cfg.MACAddress)),
		handler:   handler,
		clock:     clockwork.NewRealClock(),
		logger:    logger.Named("realtime"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func validateURL(base string) error {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid realtime URL %q", base)
	}
	switch u.Scheme {
	case "https", "wss", "http", "ws":
		return nil
	default:
		return fmt.Errorf("invalid realtime URL scheme %q", u.Scheme)
	}
}

// clientOptions builds per-session client options: websocket only, no built-in
// reconnection (Run owns the retry loop) and a fresh manager for every dial.
func (c *Connector) clientOptions() *socket.Options {
	opts := socket.DefaultOptions()
	opts.SetTransports(types.NewSet(socket.WebSocket))
	opts.SetQuery(url.Values{
		"api":            {"1"},
		"applicationKey": {c.cfg.ApplicationKey},
	})
	opts.SetForceNew(true)
	opts.SetMultiplex(false)
	opts.SetReconnection(false)
	opts.SetAutoConnect(false)
	opts.SetTimeout(c.cfg.HandshakeTimeout)
	return opts
}

// Connected reports whether a subscribed session is live.
func (c *Connector) Connected() bool {
	s := c.current.Load()
	return s != nil && s.live.Load() && !s.ended.Load()
}

// Run keeps a session open until ctx is done, waiting the fixed reconnect delay after
// every failure or disconnect. Transport problems are logged, never returned.
func (c *Connector) Run(ctx context.Context) error {
	defer c.Close()
	for {
		done, err := c.Connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			observability.RealtimeEventsTotal.WithLabelValues("connect_error").Inc()
			c.logger.Warn("realtime connection error", zap.Error(err))
		} else {
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		observability.RealtimeEventsTotal.WithLabelValues("reconnect").Inc()
		c.logger.Info("reconnecting to realtime feed", zap.Duration("delay", c.cfg.ReconnectDelay))
		select {
		case <-c.clock.After(c.cfg.ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Connect ends any existing session, then dials, joins the default namespace and
// subscribes. The returned channel closes when the new session ends.
func (c *Connector) Connect(ctx context.Context) (<-chan struct{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old := c.current.Load(); old != nil {
		c.logger.Info("existing realtime session closed before reconnect", zap.String("session", old.id))
		c.endSession(old)
	}

	opts := c.clientOptions()
	manager := socket.NewManager(c.cfg.URL, opts)
	sess := newSession(manager.Socket("/", opts))
	c.bind(sess)
	c.current.Store(sess)

	c.logger.Info("connecting to realtime feed", zap.String("url", c.cfg.URL))
	// The websocket dial runs inside Connect and ignores ctx, so it gets its own goroutine.
	go func() {
		defer close(sess.dialed)
		sess.sock.Connect()
	}()

	hsCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()
	select {
	case err := <-sess.ready:
		if err != nil {
			c.endSession(sess)
			return nil, err
		}
	case <-hsCtx.Done():
		c.endSession(sess)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: no namespace connect within %s", ErrHandshake, c.cfg.HandshakeTimeout)
	}
	return sess.done, nil
}

// Close ends the current session, if any, and waits for its socket to be torn down.
func (c *Connector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.current.Load()
	if s == nil {
		return
	}
	c.endSession(s)
	select {
	case <-s.closed:
	case <-time.After(c.cfg.HandshakeTimeout):
		c.logger.Warn("realtime socket teardown timed out", zap.String("session", s.id))
	}
}

// bind registers the session's event listeners before the socket connects.
func (c *Connector) bind(s *session) {
	s.sock.On("connect", func(...any) {
		if s.ended.Load() {
			return
		}
		err := s.sock.Emit("subscribe", map[string]any{
			"apiKeys":        []string{c.cfg.APIKey},
			"applicationKey": c.cfg.ApplicationKey,
		})
		if err != nil {
			s.signal(fmt.Errorf("%w: subscribe: %v", ErrHandshake, err))
			return
		}
		s.live.Store(true)
		observability.RealtimeConnected.Set(1)
		observability.RealtimeEventsTotal.WithLabelValues("connect").Inc()
		c.logger.Info("connected to realtime feed",
			zap.String("session", s.id),
			zap.String("sid", s.sock.Id()),
		)
		s.signal(nil)
	})

	s.sock.On("connect_error", func(args ...any) {
		err := eventError(args)
		observability.RealtimeEventsTotal.WithLabelValues("error").Inc()
		c.logger.Error("realtime connection error", zap.String("session", s.id), zap.Error(err))
		var rejected *socket.ExtendedError
		if errors.As(err, &rejected) {
			s.signal(fmt.Errorf("%w: %s", ErrConnectRejected, rejected.Message))
		} else {
			s.signal(fmt.Errorf("%w: %v", ErrHandshake, err))
		}
		c.endSession(s)
	})

	s.sock.On("disconnect", func(args ...any) {
		if !s.ended.Load() {
			c.logger.Warn("disconnected from realtime feed",
				zap.String("session", s.id),
				zap.String("reason", eventReason(args)),
			)
		}
		s.signal(fmt.Errorf("%w: disconnected during handshake", ErrHandshake))
		c.endSession(s)
	})

	s.sock.On("subscribed", func(args ...any) {
		observability.RealtimeEventsTotal.WithLabelValues("subscribed").Inc()
		c.logger.Info("subscribed to realtime feed", zap.Any("data", firstArg(args)))
	})

	s.sock.On("data", func(args ...any) {
		if s.ended.Load() || len(args) == 0 {
			return
		}
		raw, err := json.Marshal(args[0])
		if err != nil {
			observability.ObservationsDroppedTotal.WithLabelValues("decode").Inc()
			c.logger.Warn("undecodable realtime payload", zap.Error(err))
			return
		}
		c.handleData(raw)
	})
}

func (c *Connector) handleData(raw []byte) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			observability.ObservationsDroppedTotal.WithLabelValues("handler_panic").Inc()
			c.logger.Error("error processing realtime data", zap.Any("panic", r))
		}
	}()

	obs, mac, err := ParseObservation(raw)
	if err != nil {
		observability.ObservationsDroppedTotal.WithLabelValues("decode").Inc()
		c.logger.Warn("undecodable realtime payload", zap.Error(err))
		return
	}
	if c.filterMAC != "" && mac != c.filterMAC {
		observability.ObservationsDroppedTotal.WithLabelValues("mac_mismatch").Inc()
		return
	}

	now := c.clock.Now()
	if obs.ObservedAt.IsZero() {
		obs.ObservedAt = now
	}
	attachSunTimes(&obs, c.cfg.Latitude, c.cfg.Longitude, now)

	observability.ObservationsReceivedTotal.Inc()
	c.logger.Debug("realtime payload", zap.String("mac", mac), zap.ByteString("payload", raw))
	c.handler(obs)
}

// endSession marks s ended exactly once and tears its socket down in the background
// once the dial has returned.
func (c *Connector) endSession(s *session) {
	if !s.ended.CompareAndSwap(false, true) {
		return
	}
	if c.current.CompareAndSwap(s, nil) {
		observability.RealtimeConnected.Set(0)
	}
	observability.RealtimeEventsTotal.WithLabelValues("disconnect").Inc()
	close(s.done)

	go func() {
		defer close(s.closed)
		<-s.dialed
		s.sock.Disconnect()
	}()
}

// session is one socket from dial to teardown.
type session struct {
	id   string
	sock *socket.Socket

	ready     chan error
	readyOnce sync.Once
	live      atomic.Bool
	ended     atomic.Bool

	dialed chan struct{} // closed when sock.Connect returns
	done   chan struct{} // closed when the session ends
	closed chan struct{} // closed after the socket is disconnected
}

func newSession(sock *socket.Socket) *session {
	return &session{
		id:     uuid.NewString(),
		sock:   sock,
		ready:  make(chan error, 1),
		dialed: make(chan struct{}),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
}

// signal reports the handshake outcome; only the first call counts.
func (s *session) signal(err error) {
	s.readyOnce.Do(func() { s.ready <- err })
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}

func eventError(args []any) error {
	switch v := firstArg(args).(type) {
	case error:
		return v
	case nil:
		return errors.New("unknown error")
	default:
		return fmt.Errorf("%v", v)
	}
}

func eventReason(args []any) string {
	switch v := firstArg(args).(type) {
	case string:
		return v
	case nil:
		return "unknown"
	default:
		return fmt.Sprint(v)
	}
}
