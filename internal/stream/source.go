// Package stream delivers parsed transaction events from a WebSocket feed.
// Each frame is one JSON-encoded transaction record; the connection is kept
// alive with pings and re-established with exponential backoff on failure.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"solana-mev-engine/internal/domain"
	"solana-mev-engine/internal/observability"
)

// Config configures WebSocket source behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control messages.
	WriteTimeout time.Duration
	// ChannelBuffer is the capacity of the delivery channel.
	ChannelBuffer int
}

// DefaultConfig returns default source configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		ChannelBuffer:     10000,
	}
}

// Source reads transaction frames from a WebSocket endpoint.
type Source struct {
	endpoint string
	config   Config
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	out  chan *domain.TransactionData
	done chan struct{}
	wg   sync.WaitGroup
}

// NewSource connects to the endpoint and starts the read and ping loops.
func NewSource(ctx context.Context, endpoint string, config *Config, logger *log.Logger) (*Source, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &Source{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		out:      make(chan *domain.TransactionData, cfg.ChannelBuffer),
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// Events returns the delivery channel. It is closed by Close.
func (s *Source) Events() <-chan *domain.TransactionData {
	return s.out
}

// connect establishes the WebSocket connection.
func (s *Source) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// Close closes the connection and the delivery channel.
func (s *Source) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
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
	close(s.out)
	return nil
}

// readLoop reads frames and delivers decoded transactions, reconnecting with
// exponential backoff on read errors.
func (s *Source) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.redial(reconnectDelay) {
				return
			}
			reconnectDelay = s.nextDelay(reconnectDelay)
			continue
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			s.logger.Printf("stream: read error, reconnecting: %v", err)
			s.dropConn()
			if !s.redial(reconnectDelay) {
				return
			}
			reconnectDelay = s.nextDelay(reconnectDelay)
			continue
		}

		// Reset delay on successful read
		reconnectDelay = s.config.ReconnectDelay

		s.handleFrame(message)
	}
}

// handleFrame decodes one transaction frame and delivers it. Undecodable
// frames are counted and skipped.
func (s *Source) handleFrame(message []byte) {
	var tx domain.TransactionData
	if err := json.Unmarshal(message, &tx); err != nil {
		observability.DefaultMetrics.StreamDecodeErrors.Inc()
		s.logger.Printf("stream: undecodable frame: %v", err)
		return
	}

	observability.DefaultMetrics.StreamEventsTotal.Inc()

	// Block until delivered; the buffer absorbs bursts and events are
	// never dropped on this side.
	select {
	case s.out <- &tx:
	case <-s.done:
	}
}

// dropConn closes and clears the current connection.
func (s *Source) dropConn() {
	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()
}

// redial waits for the backoff delay and attempts one reconnect. Returns
// false when the source is shutting down.
func (s *Source) redial(delay time.Duration) bool {
	select {
	case <-s.done:
		return false
	case <-time.After(delay):
	}

	observability.DefaultMetrics.StreamReconnects.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		s.logger.Printf("stream: reconnect failed: %v", err)
	}
	return true
}

func (s *Source) nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > s.config.MaxReconnectDelay {
		d = s.config.MaxReconnectDelay
	}
	return d
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *Source) pingLoop() {
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
					// Connection might be dead, reader will handle reconnect
				}
			}
			s.connMu.Unlock()
		}
	}
}
