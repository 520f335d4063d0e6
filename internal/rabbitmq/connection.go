package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ConnState is the connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

// String returns the state name for logging.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnectionManager manages the broker connection and a shared publish channel.
// Construct one per process and pass it by handle to dispatchers and consumers.
type ConnectionManager struct {
	url         string
	connectPoll time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	state   ConnState
	conn    *amqp.Connection
	channel *amqp.Channel
}

// ConnectionOption configures the ConnectionManager.
type ConnectionOption func(*ConnectionManager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.logger = logger
	}
}

// WithConnectPoll sets how long a caller waits between checks while another
// connection attempt is in flight.
func WithConnectPoll(d time.Duration) ConnectionOption {
	return func(cm *ConnectionManager) {
		cm.connectPoll = d
	}
}

// NewConnectionManager creates a connection manager for the given broker URL.
// The URL is required; messaging cannot function without it.
func NewConnectionManager(url string, options ...ConnectionOption) (*ConnectionManager, error) {
	if url == "" {
		return nil, ErrMissingURL
	}

	cm := &ConnectionManager{
		url:         url,
		connectPoll: 100 * time.Millisecond,
		logger:      slog.Default(),
		state:       StateDisconnected,
	}

	for _, opt := range options {
		opt(cm)
	}

	return cm, nil
}

// Connect establishes the connection and shared channel. It is idempotent: if
// already connected it returns immediately, and if another connect is in
// flight the caller waits and re-checks rather than racing a second dial.
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	for {
		cm.mu.Lock()
		switch cm.state {
		case StateConnected:
			cm.mu.Unlock()
			return nil

		case StateConnecting:
			cm.mu.Unlock()
			select {
			case <-time.After(cm.connectPoll):
			case <-ctx.Done():
				return ctx.Err()
			}

		case StateDisconnected:
			cm.state = StateConnecting
			cm.mu.Unlock()
			return cm.dial(ctx)
		}
	}
}

// dial performs one connection attempt. The caller has already moved the
// state to StateConnecting.
func (cm *ConnectionManager) dial(ctx context.Context) error {
	fail := func(op string, err error) error {
		cm.mu.Lock()
		cm.state = StateDisconnected
		cm.mu.Unlock()
		return &ConnectionError{
			Op:        op,
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	if err := ctx.Err(); err != nil {
		return fail("connect", err)
	}

	conn, err := amqp.Dial(cm.url)
	if err != nil {
		return fail("connect", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fail("open channel", err)
	}

	connClose := make(chan *amqp.Error, 1)
	conn.NotifyClose(connClose)
	chanClose := make(chan *amqp.Error, 1)
	ch.NotifyClose(chanClose)

	cm.mu.Lock()
	cm.conn = conn
	cm.channel = ch
	cm.state = StateConnected
	cm.mu.Unlock()

	go cm.watchConnection(conn, connClose)
	go cm.watchChannel(ch, chanClose)

	cm.logger.Info("connected to broker", "url", SanitizeURL(cm.url))
	return nil
}

// watchConnection clears the cached handles when the broker closes the
// connection, so the next Channel or CreateChannel call reconnects.
func (cm *ConnectionManager) watchConnection(conn *amqp.Connection, closed <-chan *amqp.Error) {
	err := <-closed

	cm.mu.Lock()
	if cm.conn == conn {
		cm.conn = nil
		cm.channel = nil
		cm.state = StateDisconnected
	}
	cm.mu.Unlock()

	if err != nil {
		cm.logger.Warn("broker connection closed", "error", err)
	}
}

// watchChannel clears only the shared channel on channel-level errors; the
// connection stays up and the next Channel call opens a fresh one.
func (cm *ConnectionManager) watchChannel(ch *amqp.Channel, closed <-chan *amqp.Error) {
	err := <-closed

	cm.mu.Lock()
	if cm.channel == ch {
		cm.channel = nil
	}
	cm.mu.Unlock()

	if err != nil {
		cm.logger.Warn("shared channel closed", "error", err)
	}
}

// Channel returns the shared publish channel, connecting first if necessary.
func (cm *ConnectionManager) Channel(ctx context.Context) (*amqp.Channel, error) {
	cm.mu.Lock()
	if cm.state == StateConnected && cm.channel != nil && !cm.channel.IsClosed() {
		ch := cm.channel
		cm.mu.Unlock()
		return ch, nil
	}
	cm.mu.Unlock()

	if err := cm.Connect(ctx); err != nil {
		return nil, err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.channel != nil && !cm.channel.IsClosed() {
		return cm.channel, nil
	}
	if cm.conn == nil || cm.conn.IsClosed() {
		return nil, ErrNotConnected
	}

	// Connection survived a channel-level failure; reopen the shared channel.
	ch, err := cm.conn.Channel()
	if err != nil {
		return nil, &ConnectionError{
			Op:        "open channel",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
		}
	}

	chanClose := make(chan *amqp.Error, 1)
	ch.NotifyClose(chanClose)
	cm.channel = ch
	go cm.watchChannel(ch, chanClose)

	return ch, nil
}

// CreateChannel returns a new, independent channel. Consumers use dedicated
// channels so one consumer's channel failure cannot affect the shared publish
// channel or other consumers.
func (cm *ConnectionManager) CreateChannel(ctx context.Context) (*amqp.Channel, error) {
	if err := cm.Connect(ctx); err != nil {
		return nil, err
	}

	cm.mu.Lock()
	conn := cm.conn
	cm.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil, ErrNotConnected
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, &ConnectionError{
			Op:        "create channel",
			URL:       SanitizeURL(cm.url),
			Err:       err,
			Timestamp: time.Now(),
		}
	}
	return ch, nil
}

// Close closes the shared channel then the connection. Idempotent and
// tolerant of already-closed state.
func (cm *ConnectionManager) Close() error {
	cm.mu.Lock()
	ch := cm.channel
	conn := cm.conn
	cm.channel = nil
	cm.conn = nil
	cm.state = StateDisconnected
	cm.mu.Unlock()

	var firstErr error
	if ch != nil && !ch.IsClosed() {
		if err := ch.Close(); err != nil {
			firstErr = err
		}
	}
	if conn != nil && !conn.IsClosed() {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IsConnected reports whether both the connection and shared channel are
// currently held. Best effort; it does not probe the broker.
func (cm *ConnectionManager) IsConnected() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state == StateConnected && cm.conn != nil && cm.channel != nil
}

// State returns the current connection state.
func (cm *ConnectionManager) State() ConnState {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	return cm.state
}
