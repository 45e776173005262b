package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"perp-indexer/internal/events"
	"perp-indexer/internal/logging"
	"perp-indexer/internal/observability"
)

// WSConfig configures WebSocket source behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Subscription is written after every (re)connect, if set.
	Subscription json.RawMessage
	// Buffer is the capacity of the delivery channel.
	Buffer int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            10000,
	}
}

// WSSource streams JSON event frames from a WebSocket endpoint.
// Frames are delivered in arrival order; a reconnect may re-deliver events,
// which the dispatcher's applied-event markers absorb.
type WSSource struct {
	endpoint string
	config   WSConfig
	logger   log.FieldLogger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool
	used   atomic.Bool

	out  chan *events.Event
	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSSource creates a WebSocket source. Nothing is dialed until Subscribe.
func NewWSSource(endpoint string, config *WSConfig, logger log.FieldLogger) *WSSource {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1
	}
	return &WSSource{
		endpoint: endpoint,
		config:   cfg,
		logger:   logging.Component(logger, "ws_source").WithField("endpoint", endpoint),
		done:     make(chan struct{}),
	}
}

// Name implements EventSource.
func (s *WSSource) Name() string { return "ws" }

// Subscribe dials the endpoint and starts streaming. It may be called once.
// Cancelling ctx closes the source.
func (s *WSSource) Subscribe(ctx context.Context) (<-chan *events.Event, error) {
	if s.closed.Load() {
		return nil, errors.New("ws source closed")
	}
	if s.used.Swap(true) {
		return nil, errors.New("ws source already subscribed")
	}
	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.out = make(chan *events.Event, s.config.Buffer)

	s.wg.Add(2)
	go s.readLoop()
	go s.pingLoop()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	return s.out, nil
}

// connect establishes the WebSocket connection and sends the subscription frame.
func (s *WSSource) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	if len(s.config.Subscription) > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, s.config.Subscription); err != nil {
			conn.Close()
			return fmt.Errorf("write subscription: %w", err)
		}
	}

	s.conn = conn
	return nil
}

// Close closes the connection and the delivery channel.
func (s *WSSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

// readLoop reads frames and delivers decoded events. It owns the out channel.
func (s *WSSource) readLoop() {
	defer s.wg.Done()
	defer close(s.out)

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.reconnect(reconnectDelay) {
				reconnectDelay = nextDelay(reconnectDelay, s.config.MaxReconnectDelay)
				continue
			}
			reconnectDelay = s.config.ReconnectDelay
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.WithError(err).Warn("websocket read failed, reconnecting")

			s.connMu.Lock()
			if s.conn == conn {
				s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()
			continue
		}

		if !s.deliver(message) {
			return
		}
	}
}

// reconnect waits delay and dials again. Reports whether a connection is up.
func (s *WSSource) reconnect(delay time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(delay):
	}

	observability.RecordWSReconnect(s.endpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.logger.WithError(err).WithField("retry_in", nextDelay(delay, s.config.MaxReconnectDelay)).Warn("reconnect failed")
		return false
	}
	s.logger.Info("reconnected")
	return true
}

// deliver decodes one frame and blocks until it is handed off.
// Returns false when the source closed while waiting.
func (s *WSSource) deliver(message []byte) bool {
	e, err := events.Decode(message)
	if err != nil {
		s.logger.WithError(err).Warn("dropping undecodable frame")
		return true
	}
	if e.BlockTimestamp > 0 {
		observability.RecordWSMessageLatency(time.Since(time.Unix(e.BlockTimestamp, 0)).Seconds())
	}

	// Block until we can send - never drop events
	select {
	case s.out <- e:
		return true
	case <-s.done:
		return false
	}
}

// pingLoop sends periodic ping frames to keep connection alive.
func (s *WSSource) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					s.logger.WithError(err).Debug("ping failed")
				}
			}
			s.connMu.Unlock()
		}
	}
}

func nextDelay(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}
