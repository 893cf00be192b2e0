// Package gemini implements providers.LiveSession over the Gemini Live API
// (BidiGenerateContent WebSocket).
//
// A session is opened by sending a setup message and waiting for
// setupComplete. After that a single receive goroutine decodes server
// messages into response events; callers consume them one turn at a time
// through Receive. Sends may come from any goroutine.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/deskpilot/deskpilot/runtime/logger"
	"github.com/deskpilot/deskpilot/runtime/providers"
	"github.com/deskpilot/deskpilot/runtime/providers/internal/streaming"
	"github.com/deskpilot/deskpilot/runtime/types"
)

// DefaultEndpoint is the Live API WebSocket endpoint. The API key is passed
// in the x-goog-api-key header, not as a query parameter.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/" +
	"google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

// Connection defaults.
const (
	defaultSetupTimeout      = 10 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
	defaultEventBuffer       = 64

	geminiDialTimeout      = 45 * time.Second
	geminiMaxRetries       = 5
	geminiRetryBackoffBase = 1 * time.Second
	geminiRetryBackoffMax  = 60 * time.Second
)

// Connector opens Gemini live sessions.
type Connector struct {
	apiKey       string
	endpoint     string
	setupTimeout time.Duration
	heartbeat    time.Duration
	maxRetries   int
}

// Option configures a Connector.
type Option func(*Connector)

// WithEndpoint overrides the WebSocket endpoint.
func WithEndpoint(url string) Option {
	return func(c *Connector) { c.endpoint = url }
}

// WithSetupTimeout bounds the wait for setupComplete.
func WithSetupTimeout(d time.Duration) Option {
	return func(c *Connector) { c.setupTimeout = d }
}

// WithHeartbeat sets the WebSocket ping interval. Zero disables pings.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Connector) { c.heartbeat = d }
}

// WithMaxRetries sets the number of connection attempts.
func WithMaxRetries(n int) Option {
	return func(c *Connector) { c.maxRetries = n }
}

// NewConnector creates a connector authenticating with apiKey.
func NewConnector(apiKey string, opts ...Option) *Connector {
	c := &Connector{
		apiKey:       apiKey,
		endpoint:     DefaultEndpoint,
		setupTimeout: defaultSetupTimeout,
		heartbeat:    defaultHeartbeatInterval,
		maxRetries:   geminiMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ providers.Connector = (*Connector)(nil)

// Connect dials the endpoint, performs the setup handshake and starts the
// receive goroutine.
func (c *Connector) Connect(ctx context.Context, cfg *providers.LiveConfig) (providers.LiveSession, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: api key is empty", ErrAuthenticationFailed)
	}

	headers := http.Header{}
	headers.Set("x-goog-api-key", c.apiKey)

	conn := streaming.NewConn(&streaming.ConnConfig{
		URL:              c.endpoint,
		Headers:          headers,
		DialTimeout:      geminiDialTimeout,
		MaxRetries:       c.maxRetries,
		RetryBackoffBase: geminiRetryBackoffBase,
		RetryBackoffMax:  geminiRetryBackoffMax,
	})
	if err := conn.ConnectWithRetry(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect: %w", classifyError(err))
	}

	setupMsg := buildSetupMessage(cfg)
	logMessage(ctx, "Gemini setup message", setupMsg)

	if err := sendAndWaitForSetup(ctx, conn, setupMsg, c.setupTimeout); err != nil {
		_ = conn.Close()
		return nil, err
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		conn:   conn,
		model:  getModelPath(cfg.Model),
		ctx:    sessionCtx,
		cancel: cancel,
		events: make(chan sessionItem, defaultEventBuffer),
	}

	if c.heartbeat > 0 {
		conn.StartHeartbeat(sessionCtx, c.heartbeat)
	}
	go s.receiveLoop()

	logger.SessionEvent(ctx, "connected", s.model, "tools", len(cfg.Tools))
	return s, nil
}

// sendAndWaitForSetup sends the setup message and requires setupComplete as
// the first server message.
func sendAndWaitForSetup(ctx context.Context, conn *streaming.Conn, setupMsg map[string]any, timeout time.Duration) error {
	if err := conn.Send(setupMsg); err != nil {
		return fmt.Errorf("failed to send setup message: %w", err)
	}

	setupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	data, err := conn.Receive(setupCtx)
	if err != nil {
		return fmt.Errorf("failed to receive setup response: %w", classifyError(err))
	}

	var resp ServerMessage
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("failed to parse setup response: %w", err)
	}
	if resp.SetupComplete == nil {
		return ErrSetupFailed
	}
	return nil
}

// sessionItem is one entry of the event stream. turnEnd marks a turn boundary.
type sessionItem struct {
	event   *types.ResponseEvent
	turnEnd bool
}

// Session is a live Gemini session.
type Session struct {
	conn   *streaming.Conn
	model  string
	ctx    context.Context
	cancel context.CancelFunc
	events chan sessionItem

	mu     sync.Mutex
	closed bool
	err    error // terminal receive error, set before events is closed
}

var _ providers.LiveSession = (*Session)(nil)

// SendRealtimeInput implements providers.LiveSession.
func (s *Session) SendRealtimeInput(ctx context.Context, chunk types.MediaChunk) error {
	return s.send(ctx, buildRealtimeInputMessage(chunk))
}

// SendClientContent implements providers.LiveSession.
func (s *Session) SendClientContent(ctx context.Context, turns []types.Content, turnComplete bool) error {
	return s.send(ctx, buildClientContentMessage(turns, turnComplete))
}

// SendToolResponse implements providers.LiveSession.
func (s *Session) SendToolResponse(ctx context.Context, results []types.ToolResult) error {
	msg := buildToolResponseMessage(results)
	logMessage(ctx, "Gemini sending tool response", msg)
	return s.send(ctx, msg)
}

func (s *Session) send(ctx context.Context, msg map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return providers.ErrSessionClosed
	}
	if err := s.conn.Send(msg); err != nil {
		if errors.Is(err, streaming.ErrConnectionClosed) {
			return providers.ErrSessionClosed
		}
		return err
	}
	return nil
}

// Receive implements providers.LiveSession.
func (s *Session) Receive(_ context.Context) providers.Turn {
	return &turn{s: s}
}

// Close implements providers.LiveSession.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	err := s.conn.Close()
	logger.SessionEvent(s.ctx, "closed", s.model)
	return err
}

// receiveLoop is the only reader of the connection.
func (s *Session) receiveLoop() {
	defer close(s.events)

	for {
		data, err := s.conn.Receive(s.ctx)
		if err != nil {
			s.setErr(err)
			return
		}

		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("Gemini: failed to parse server message", "error", err)
			continue
		}

		s.handleControl(&msg)

		event, err := msg.toEvent()
		if err != nil {
			s.setErr(err)
			return
		}
		if event != nil && !s.emit(sessionItem{event: event}) {
			return
		}
		if msg.turnComplete() && !s.emit(sessionItem{turnEnd: true}) {
			return
		}
	}
}

// handleControl logs the server messages that carry no turn content.
func (s *Session) handleControl(msg *ServerMessage) {
	if msg.GoAway != nil {
		logger.SessionEvent(s.ctx, "go_away", s.model, "time_left", msg.GoAway.TimeLeft)
	}
	if u := msg.SessionResumptionUpdate; u != nil {
		logger.Debug("Gemini: session resumption update", "resumable", u.Resumable)
	}
	if c := msg.ToolCallCancellation; c != nil {
		logger.Info("Gemini: tool calls cancelled", "ids", c.IDs)
	}
}

func (s *Session) emit(item sessionItem) bool {
	select {
	case s.events <- item:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || errors.Is(err, context.Canceled) || errors.Is(err, streaming.ErrConnectionClosed) {
		s.err = providers.ErrSessionClosed
		return
	}
	s.err = fmt.Errorf("gemini websocket error: %w", classifyError(err))
	logger.Warn("Gemini: receive failed", "error", err)
}

func (s *Session) terminalErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return providers.ErrSessionClosed
	}
	return s.err
}

// turn reads events from the shared stream up to the next turn boundary.
type turn struct {
	s    *Session
	done bool
}

// Next implements providers.Turn.
func (t *turn) Next(ctx context.Context) (*types.ResponseEvent, error) {
	if t.done {
		return nil, io.EOF
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case item, ok := <-t.s.events:
		if !ok {
			return nil, t.s.terminalErr()
		}
		if item.turnEnd {
			t.done = true
			return nil, io.EOF
		}
		return item.event, nil
	}
}

// logMessage logs an outbound message at debug level with inline data elided.
func logMessage(ctx context.Context, msg string, payload map[string]any) {
	if !logger.DefaultLogger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	var copyMsg map[string]any
	if err := json.Unmarshal(raw, &copyMsg); err != nil {
		return
	}
	truncateInlineData(copyMsg)
	out, _ := json.Marshal(copyMsg)
	logger.DebugContext(ctx, msg, "message", string(out))
}

// truncateInlineData recursively truncates large data fields for logging
func truncateInlineData(v any) {
	switch val := v.(type) {
	case map[string]any:
		if data, ok := val["data"].(string); ok && len(data) > 100 {
			val["data"] = fmt.Sprintf("[%d bytes base64]", len(data))
		}
		for _, child := range val {
			truncateInlineData(child)
		}
	case []any:
		for _, item := range val {
			truncateInlineData(item)
		}
	}
}
