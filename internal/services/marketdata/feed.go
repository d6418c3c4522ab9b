// Package marketdata streams live trade prices over a websocket.
package marketdata

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/valyala/fastjson"
	"github.com/vadiminshakov/deskfolio/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultStreamURL Binance combined raw stream endpoint.
	DefaultStreamURL = "wss://stream.binance.com:9443/ws"

	defaultMinBackoff  = time.Second
	defaultMaxBackoff  = 30 * time.Second
	defaultReadTimeout = 5 * time.Minute
	handshakeTimeout   = 15 * time.Second
	writeWait          = 10 * time.Second
)

// State connection state of a subscription.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateReconnecting
)

// String returns the string representation.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "disconnected"
	}
}

// Option configures the Feed.
type Option func(*Feed)

// WithBackoff sets the reconnect delay bounds.
func WithBackoff(min, max time.Duration) Option {
	return func(f *Feed) {
		f.minBackoff = min
		f.maxBackoff = max
	}
}

// WithStateHandler registers fn to receive every state change of the active subscription.
func WithStateHandler(fn func(State)) Option {
	return func(f *Feed) {
		f.onState = fn
	}
}

// WithReadTimeout sets how long a connection may stay silent before it is considered dead.
func WithReadTimeout(d time.Duration) Option {
	return func(f *Feed) {
		f.readTimeout = d
	}
}

// Feed opens trade streams. At most one subscription is live at a time:
// Connect closes the previous subscription and waits for it before dialing.
type Feed struct {
	logger      *zap.Logger
	baseURL     string
	dialer      *websocket.Dialer
	minBackoff  time.Duration
	maxBackoff  time.Duration
	readTimeout time.Duration
	onState     func(State)

	mu      sync.Mutex
	current *Subscription
}

// NewFeed creates a feed for the given stream base URL.
func NewFeed(logger *zap.Logger, baseURL string, opts ...Option) *Feed {
	if baseURL == "" {
		baseURL = DefaultStreamURL
	}

	f := &Feed{
		logger:      logger,
		baseURL:     strings.TrimRight(baseURL, "/"),
		dialer:      &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		readTimeout: defaultReadTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Connect subscribes to trade streams of symbols and calls onTick for every trade,
// synchronously and in arrival order. The connection is kept alive with reconnects until
// the subscription is closed or ctx is done.
func (f *Feed) Connect(ctx context.Context, symbols []string, onTick func(domain.PriceTick)) (*Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil {
		f.current.Close()
		f.current = nil
	}

	streamURL, normalized, err := f.streamURL(symbols)
	if err != nil {
		return nil, err
	}
	if onTick == nil {
		return nil, errors.Wrap(domain.ErrInvalidArgument, "tick handler is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		symbols: normalized,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	f.current = sub

	logger := f.logger.With(zap.Strings("symbols", normalized))
	go f.run(ctx, sub, streamURL, onTick, logger)

	return sub, nil
}

// Close closes the active subscription, if any.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.current != nil {
		f.current.Close()
		f.current = nil
	}
}

func (f *Feed) streamURL(symbols []string) (string, []string, error) {
	seen := make(map[string]struct{}, len(symbols))
	streams := make([]string, 0, len(symbols))
	normalized := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		normalized = append(normalized, s)
		streams = append(streams, strings.ToLower(s)+"@trade")
	}
	if len(streams) == 0 {
		return "", nil, domain.ErrNoSymbols
	}

	raw := f.baseURL + "/" + strings.Join(streams, "/")
	if _, err := url.Parse(raw); err != nil {
		return "", nil, errors.Wrapf(domain.ErrInvalidArgument, "stream url %q: %v", raw, err)
	}

	return raw, normalized, nil
}

func (f *Feed) run(ctx context.Context, sub *Subscription, streamURL string, onTick func(domain.PriceTick), logger *zap.Logger) {
	defer close(sub.done)
	defer f.setState(sub, StateDisconnected)

	b := &backoff.Backoff{
		Min:    f.minBackoff,
		Max:    f.maxBackoff,
		Factor: 2,
		Jitter: true,
	}

	for {
		conn, _, err := f.dialer.DialContext(ctx, streamURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := b.Duration()
			logger.Warn("failed to connect to trade stream",
				zap.Error(err), zap.Float64("attempt", b.Attempt()), zap.Duration("retry_in", delay))
			f.setState(sub, StateReconnecting)
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		if !sub.attach(ctx, conn) {
			return
		}
		b.Reset()
		f.setState(sub, StateConnected)
		logger.Info("trade stream connected")

		// unblock the reader when ctx is cancelled by the caller
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err = f.readLoop(conn, onTick, logger)
		stop()
		sub.detach(conn)

		if ctx.Err() != nil {
			return
		}

		logger.Warn("trade stream disconnected", zap.Error(err))
		f.setState(sub, StateDisconnected)

		delay := b.Duration()
		f.setState(sub, StateReconnecting)
		if !sleep(ctx, delay) {
			return
		}
	}
}

func (f *Feed) readLoop(conn *websocket.Conn, onTick func(domain.PriceTick), logger *zap.Logger) error {
	var parser fastjson.Parser

	for {
		if f.readTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.readTimeout))
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "read trade message")
		}

		tick, err := ParseTrade(&parser, msg)
		if err != nil {
			logger.Debug("drop malformed trade message", zap.ByteString("msg", msg), zap.Error(err))
			continue
		}

		onTick(tick)
	}
}

func (f *Feed) setState(sub *Subscription, s State) {
	if State(sub.state.Swap(int32(s))) == s {
		return
	}
	if f.onState != nil {
		f.onState(s)
	}
}

// ParseTrade extracts symbol and price from a trade stream message.
func ParseTrade(p *fastjson.Parser, msg []byte) (domain.PriceTick, error) {
	v, err := p.ParseBytes(msg)
	if err != nil {
		return domain.PriceTick{}, errors.Wrap(err, "parse trade message")
	}

	symbol := v.GetStringBytes("s")
	rawPrice := v.GetStringBytes("p")
	if len(symbol) == 0 || len(rawPrice) == 0 {
		return domain.PriceTick{}, errors.New("trade message has no symbol or price")
	}

	price, err := decimal.NewFromString(string(rawPrice))
	if err != nil {
		return domain.PriceTick{}, errors.Wrapf(err, "parse trade price %q", rawPrice)
	}

	return domain.PriceTick{Symbol: string(symbol), Price: price}, nil
}

// Subscription live trade stream.
type Subscription struct {
	symbols []string
	cancel  context.CancelFunc
	done    chan struct{}
	state   atomic.Int32

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	once   sync.Once
}

// Symbols returns the subscribed symbols in upper case.
func (s *Subscription) Symbols() []string {
	return append([]string(nil), s.symbols...)
}

// State returns the current connection state.
func (s *Subscription) State() State {
	return State(s.state.Load())
}

// Done is closed once the subscription stopped for good.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops the subscription and waits until its connection is released. Safe to call many times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()

		s.mu.Lock()
		s.closed = true
		if s.conn != nil {
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			_ = s.conn.Close()
		}
		s.mu.Unlock()
	})

	<-s.done
}

func (s *Subscription) attach(ctx context.Context, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || ctx.Err() != nil {
		_ = conn.Close()
		return false
	}
	s.conn = conn
	return true
}

func (s *Subscription) detach(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_ = conn.Close()
	if s.conn == conn {
		s.conn = nil
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
