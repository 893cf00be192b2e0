package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deskpilot/deskpilot/runtime/capture"
	"github.com/deskpilot/deskpilot/runtime/providers"
	"github.com/deskpilot/deskpilot/runtime/types"
)

// fakeTurn yields events pushed by the test; closing events ends the turn.
type fakeTurn struct {
	events chan *types.ResponseEvent
	err    error
}

func newFakeTurn() *fakeTurn {
	return &fakeTurn{events: make(chan *types.ResponseEvent)}
}

func (t *fakeTurn) Next(ctx context.Context) (*types.ResponseEvent, error) {
	select {
	case ev, ok := <-t.events:
		if !ok {
			if t.err != nil {
				return nil, t.err
			}
			return nil, io.EOF
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fakeSession records everything the loop sends. Receive hands out turns
// pushed on the turns channel; the push completes only once the previous turn
// has been fully handled.
type fakeSession struct {
	turns chan *fakeTurn

	// blockKind stalls SendRealtimeInput for chunks of that kind.
	blockKind string

	mu        sync.Mutex
	sent      []types.MediaChunk
	texts     []string
	responses [][]types.ToolResult
	closed    bool

	responded chan []types.ToolResult
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		turns:     make(chan *fakeTurn),
		responded: make(chan []types.ToolResult, 8),
	}
}

func (s *fakeSession) SendRealtimeInput(ctx context.Context, chunk types.MediaChunk) error {
	if s.blockKind != "" && chunk.Kind() == s.blockKind {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, chunk)
	return nil
}

func (s *fakeSession) SendClientContent(_ context.Context, turns []types.Content, turnComplete bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range turns {
		for _, p := range c.Parts {
			s.texts = append(s.texts, p.Text)
		}
	}
	if !turnComplete {
		return errors.New("expected turn_complete")
	}
	return nil
}

func (s *fakeSession) Receive(ctx context.Context) providers.Turn {
	select {
	case t := <-s.turns:
		return t
	case <-ctx.Done():
		return &fakeTurn{events: make(chan *types.ResponseEvent)}
	}
}

func (s *fakeSession) SendToolResponse(_ context.Context, results []types.ToolResult) error {
	s.mu.Lock()
	s.responses = append(s.responses, results)
	s.mu.Unlock()
	s.responded <- results
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) sentTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *fakeSession) sentCount(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.sent {
		if c.Kind() == kind {
			n++
		}
	}
	return n
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func connectorFor(s providers.LiveSession) providers.Connector {
	return providers.ConnectorFunc(func(context.Context, *providers.LiveConfig) (providers.LiveSession, error) {
		return s, nil
	})
}

// fakeMic returns a fixed buffer on every read, or blocks when idle is set.
type fakeMic struct {
	idle   bool
	reads  atomic.Int32
	closed atomic.Bool
	done   chan struct{}
	once   sync.Once
}

func newFakeMic(idle bool) *fakeMic {
	return &fakeMic{idle: idle, done: make(chan struct{})}
}

func (m *fakeMic) Read(ctx context.Context) ([]byte, error) {
	if m.idle {
		select {
		case <-m.done:
			return nil, io.EOF
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	select {
	case <-time.After(time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	m.reads.Add(1)
	return make([]byte, types.AudioChunkFrames*2), nil
}

func (m *fakeMic) Close() error {
	m.closed.Store(true)
	m.once.Do(func() { close(m.done) })
	return nil
}

// fakeSpeaker records writes, or stalls every write when stalled is set.
type fakeSpeaker struct {
	stalled bool

	mu     sync.Mutex
	writes [][]byte
	closed atomic.Bool
}

func (s *fakeSpeaker) Write(ctx context.Context, pcm []byte) error {
	if s.stalled {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, pcm)
	return nil
}

func (s *fakeSpeaker) Close() error {
	s.closed.Store(true)
	return nil
}

func (s *fakeSpeaker) written() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.writes...)
}

// fakeGrabber returns a small JPEG chunk per grab. Once limit grabs have been
// served it returns failWith, or ErrEndOfStream when failWith is nil.
type fakeGrabber struct {
	limit    int32
	failWith error
	grabs    atomic.Int32
	closed   atomic.Bool
}

func (g *fakeGrabber) Grab(context.Context) (types.MediaChunk, error) {
	n := g.grabs.Add(1)
	if g.limit > 0 && n > g.limit {
		if g.failWith != nil {
			return types.MediaChunk{}, g.failWith
		}
		return types.MediaChunk{}, capture.ErrEndOfStream
	}
	return types.NewImageChunk([]byte{0xff, 0xd8, 0xff, 0xd9}), nil
}

func (g *fakeGrabber) Close() error {
	g.closed.Store(true)
	return nil
}

// scriptedInput serves lines pushed by the test; closing lines is end of input.
type scriptedInput struct {
	lines chan string
}

func newScriptedInput(lines ...string) *scriptedInput {
	in := &scriptedInput{lines: make(chan string, len(lines)+8)}
	for _, l := range lines {
		in.lines <- l
	}
	return in
}

func (in *scriptedInput) ReadLine(ctx context.Context) (string, error) {
	select {
	case line, ok := <-in.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type fakeMetrics struct {
	mu      sync.Mutex
	dropped int
	turns   int
	tokens  [2]int
	sent    map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{sent: map[string]int{}}
}

func (m *fakeMetrics) SetQueueDepth(string, int) {}

func (m *fakeMetrics) AddDroppedAudio(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped += n
}

func (m *fakeMetrics) IncMediaSent(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[kind]++
}

func (m *fakeMetrics) IncTurns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns++
}

func (m *fakeMetrics) AddTokens(in, out int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[0] += in
	m.tokens[1] += out
}

func (m *fakeMetrics) snapshot() (dropped, turns int, tokens [2]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped, m.turns, m.tokens
}

// syncBuffer is a goroutine-safe output sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

type noDispatch struct{}

func (noDispatch) Dispatch(context.Context, []types.ToolCall) []types.ToolResult { return nil }
