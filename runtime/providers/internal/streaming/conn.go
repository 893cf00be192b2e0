// Package streaming provides the WebSocket transport used by live session
// providers. It owns connection setup, retry, heartbeat, serialized writes and
// a single read pump; message encoding is left to the provider.
package streaming

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deskpilot/deskpilot/runtime/logger"
)

// Default connection constants.
const (
	DefaultDialTimeout      = 10 * time.Second
	DefaultWriteWait        = 10 * time.Second
	DefaultMaxMessageSize   = 16 * 1024 * 1024
	DefaultMaxRetries       = 3
	DefaultRetryBackoffBase = 1 * time.Second
	DefaultRetryBackoffMax  = 30 * time.Second
	DefaultCloseGracePeriod = 5 * time.Second
	DefaultReadBuffer       = 64
)

// jitterFactor is the +-25% jitter applied to backoff delays.
const jitterFactor = 0.25

// jitterPrecision is the granularity for crypto/rand jitter generation.
const jitterPrecision = 1000

var (
	// ErrNotConnected is returned when sending or receiving before Connect.
	ErrNotConnected = errors.New("websocket is not connected")

	// ErrConnectionClosed is returned once the connection has been closed,
	// locally or by the peer with a normal close frame.
	ErrConnectionClosed = errors.New("websocket connection closed")
)

// ConnConfig configures the WebSocket connection behavior.
type ConnConfig struct {
	// URL is the WebSocket endpoint URL. It is redacted before being logged.
	URL string

	// Headers are sent during the WebSocket handshake.
	Headers http.Header

	// DialTimeout is the handshake timeout. Defaults to DefaultDialTimeout.
	DialTimeout time.Duration

	// WriteWait is the write deadline for each message. Defaults to DefaultWriteWait.
	WriteWait time.Duration

	// MaxMessageSize is the read limit. Defaults to DefaultMaxMessageSize.
	MaxMessageSize int64

	// MaxRetries is the number of connection attempts for ConnectWithRetry.
	MaxRetries int

	// RetryBackoffBase is the initial backoff delay.
	RetryBackoffBase time.Duration

	// RetryBackoffMax caps the backoff delay.
	RetryBackoffMax time.Duration

	// CloseGracePeriod is the deadline for writing the close frame.
	CloseGracePeriod time.Duration

	// ReadBuffer is the number of inbound messages buffered by the read pump.
	ReadBuffer int
}

func (c *ConnConfig) defaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteWait == 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoffBase == 0 {
		c.RetryBackoffBase = DefaultRetryBackoffBase
	}
	if c.RetryBackoffMax == 0 {
		c.RetryBackoffMax = DefaultRetryBackoffMax
	}
	if c.CloseGracePeriod == 0 {
		c.CloseGracePeriod = DefaultCloseGracePeriod
	}
	if c.ReadBuffer == 0 {
		c.ReadBuffer = DefaultReadBuffer
	}
}

// Conn is a WebSocket connection with retry, heartbeat and graceful shutdown.
// Writes are serialized; a single read pump goroutine owns all reads.
type Conn struct {
	cfg ConnConfig

	conn    *websocket.Conn
	mu      sync.Mutex
	writeMu sync.Mutex // gorilla/websocket allows one concurrent writer
	closed  bool
	closeCh chan struct{}

	incoming chan []byte
	readErr  error // set by the read pump before incoming is closed
}

// NewConn creates a new Conn. Call Connect or ConnectWithRetry to establish the connection.
func NewConn(cfg *ConnConfig) *Conn {
	cfg.defaults()
	return &Conn{
		cfg:     *cfg,
		closeCh: make(chan struct{}),
	}
}

// Connect dials the endpoint and starts the read pump.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}
	if c.conn != nil {
		return nil
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.DialTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}

	logger.Debug("connecting to WebSocket", "url", logger.RedactSensitiveData(c.cfg.URL))

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Headers)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
			return &DialError{StatusCode: resp.StatusCode, Err: err}
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	conn.SetReadLimit(c.cfg.MaxMessageSize)

	c.conn = conn
	c.incoming = make(chan []byte, c.cfg.ReadBuffer)
	go c.readPump(conn, c.incoming)

	logger.Debug("WebSocket connected")
	return nil
}

// DialError reports a failed handshake that produced an HTTP response.
type DialError struct {
	StatusCode int
	Err        error
}

func (e *DialError) Error() string {
	return fmt.Sprintf("failed to connect (status %d): %v", e.StatusCode, e.Err)
}

func (e *DialError) Unwrap() error {
	return e.Err
}

// ConnectWithRetry attempts to connect with exponential backoff and jitter.
func (c *Conn) ConnectWithRetry(ctx context.Context) error {
	var lastErr error
	backoff := c.cfg.RetryBackoffBase

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrConnectionClosed) {
			return err
		}
		lastErr = err

		logger.Warn("connection attempt failed",
			"attempt", attempt, "max_attempts", c.cfg.MaxRetries, "error", lastErr)

		if attempt < c.cfg.MaxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(backoff, c.cfg.RetryBackoffMax)):
			}
			backoff = min(backoff*2, c.cfg.RetryBackoffMax)
		}
	}

	return fmt.Errorf("failed to connect after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

// readPump is the only goroutine reading from the socket. It exits on the
// first read error and records it for Receive.
func (c *Conn) readPump(conn *websocket.Conn, out chan<- []byte) {
	defer close(out)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			switch {
			case c.closed, websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				c.readErr = ErrConnectionClosed
			default:
				c.readErr = err
			}
			c.mu.Unlock()
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}
		select {
		case out <- data:
		case <-c.closeCh:
			return
		}
	}
}

// Send JSON-encodes msg and writes it to the WebSocket.
func (c *Conn) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.SendRaw(data)
}

// SendRaw writes pre-encoded data to the WebSocket.
func (c *Conn) SendRaw(data []byte) error {
	conn, err := c.current()
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Receive returns the next inbound message. It blocks until a message
// arrives, the connection fails, or ctx is done.
func (c *Conn) Receive(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	incoming := c.incoming
	c.mu.Unlock()
	if incoming == nil {
		return nil, ErrNotConnected
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-incoming:
		if !ok {
			c.mu.Lock()
			err := c.readErr
			c.mu.Unlock()
			if err == nil {
				err = ErrConnectionClosed
			}
			return nil, err
		}
		return data, nil
	}
}

func (c *Conn) current() (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrConnectionClosed
	}
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	return c.conn, nil
}

// StartHeartbeat sends WebSocket ping frames at the given interval until the
// context ends or the connection closes.
func (c *Conn) StartHeartbeat(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.closeCh:
				return
			case <-ticker.C:
				if !c.sendPing() {
					return
				}
			}
		}
	}()
}

func (c *Conn) sendPing() bool {
	conn, err := c.current()
	if err != nil {
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.cfg.WriteWait)
	if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		logger.Warn("ping failed", "error", err)
		return false
	}
	return true
}

// Close sends a close frame and releases the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closeCh)

	if c.conn == nil {
		return nil
	}

	c.writeMu.Lock()
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(c.cfg.CloseGracePeriod))
	c.writeMu.Unlock()

	return c.conn.Close()
}

// IsClosed returns whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// IsConnected returns true if the connection is established and not closed.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closed
}

// calculateBackoff computes a backoff duration with +-25% jitter, capped at maxDelay.
func calculateBackoff(base, maxDelay time.Duration) time.Duration {
	delay := math.Min(float64(base), float64(maxDelay))
	n, err := rand.Int(rand.Reader, big.NewInt(jitterPrecision))
	if err != nil {
		return time.Duration(delay)
	}
	// Map n from [0, jitterPrecision) onto [-1, 1).
	unit := float64(n.Int64())/(jitterPrecision/2) - 1
	result := delay + delay*jitterFactor*unit
	if result < 0 {
		result = float64(base)
	}
	return time.Duration(math.Min(result, float64(maxDelay)))
}
