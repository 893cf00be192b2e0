// Package session runs the agent's live conversation: it streams microphone
// audio and optional camera or screen frames to the model, plays the spoken
// replies, prints streamed text, forwards typed input and answers tool calls.
//
// Example usage:
//
//	loop := session.NewAudioLoop(
//	    session.WithConnector(gemini.NewConnector(apiKey)),
//	    session.WithLiveConfig(cfg),
//	    session.WithMicrophone(mic),
//	    session.WithSpeaker(speaker),
//	    session.WithGrabber(grabber),
//	    session.WithMode(capture.ModeScreen),
//	    session.WithDispatcher(tools.NewDispatcher(registry)),
//	)
//	if err := loop.Run(ctx); err != nil {
//	    return err
//	}
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/deskpilot/deskpilot/pkg/errors"
	"github.com/deskpilot/deskpilot/runtime/audio"
	"github.com/deskpilot/deskpilot/runtime/capture"
	"github.com/deskpilot/deskpilot/runtime/logger"
	"github.com/deskpilot/deskpilot/runtime/providers"
	"github.com/deskpilot/deskpilot/runtime/queue"
	"github.com/deskpilot/deskpilot/runtime/telemetry"
	"github.com/deskpilot/deskpilot/runtime/types"
)

// Queue capacities and capture pacing.
const (
	DefaultOutboundCapacity = 5
	DefaultVideoCapacity    = 2
	DefaultCaptureInterval  = time.Second
)

// Dispatcher executes a batch of tool calls, returning one result per call in
// call order.
type Dispatcher interface {
	Dispatch(ctx context.Context, calls []types.ToolCall) []types.ToolResult
}

// Metrics receives session measurements. *prometheus.Metrics implements it.
type Metrics interface {
	SetQueueDepth(queue string, n int)
	AddDroppedAudio(n int)
	IncMediaSent(kind string)
	IncTurns()
	AddTokens(input, output int)
}

type noopMetrics struct{}

func (noopMetrics) SetQueueDepth(string, int) {}
func (noopMetrics) AddDroppedAudio(int)       {}
func (noopMetrics) IncMediaSent(string)       {}
func (noopMetrics) IncTurns()                 {}
func (noopMetrics) AddTokens(int, int)        {}

// AudioLoop owns one live session and the pipelines feeding it. Run takes
// ownership of the devices: they are closed when Run returns.
type AudioLoop struct {
	connector  providers.Connector
	liveConfig *providers.LiveConfig
	mic        audio.Source
	speaker    audio.Sink
	grabber    capture.Grabber
	input      TextInput
	dispatcher Dispatcher
	mode       capture.Mode
	metrics    Metrics
	tracer     trace.Tracer
	out        *syncWriter

	captureInterval  time.Duration
	outboundCapacity int
	videoCapacity    int

	running atomic.Bool

	// Set by Run before any pipeline starts.
	outbound *queue.Bounded[types.MediaChunk]
	video    *queue.Bounded[types.MediaChunk]
	inbound  *queue.Unbounded[[]byte]
}

// Option configures an AudioLoop.
type Option func(*AudioLoop)

// WithConnector sets how the live session is opened.
func WithConnector(c providers.Connector) Option { return func(l *AudioLoop) { l.connector = c } }

// WithLiveConfig replaces the session configuration.
func WithLiveConfig(cfg *providers.LiveConfig) Option {
	return func(l *AudioLoop) { l.liveConfig = cfg }
}

// WithMicrophone sets the audio source.
func WithMicrophone(s audio.Source) Option { return func(l *AudioLoop) { l.mic = s } }

// WithSpeaker sets the playback sink.
func WithSpeaker(s audio.Sink) Option { return func(l *AudioLoop) { l.speaker = s } }

// WithGrabber sets the frame source used in camera and screen modes.
func WithGrabber(g capture.Grabber) Option { return func(l *AudioLoop) { l.grabber = g } }

// WithTextInput replaces stdin as the source of typed messages.
func WithTextInput(in TextInput) Option { return func(l *AudioLoop) { l.input = in } }

// WithDispatcher sets the tool dispatcher.
func WithDispatcher(d Dispatcher) Option { return func(l *AudioLoop) { l.dispatcher = d } }

// WithMode selects the video source.
func WithMode(m capture.Mode) Option { return func(l *AudioLoop) { l.mode = m } }

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option { return func(l *AudioLoop) { l.metrics = m } }

// WithTracer sets the tracer for session and turn spans.
func WithTracer(t trace.Tracer) Option { return func(l *AudioLoop) { l.tracer = t } }

// WithOutput replaces stdout for streamed text and the input prompt.
func WithOutput(w io.Writer) Option { return func(l *AudioLoop) { l.out = &syncWriter{w: w} } }

// WithCaptureInterval sets the minimum spacing between captured frames.
func WithCaptureInterval(d time.Duration) Option {
	return func(l *AudioLoop) { l.captureInterval = d }
}

// WithQueueCapacity sets the outbound and video queue capacities.
func WithQueueCapacity(outbound, video int) Option {
	return func(l *AudioLoop) {
		l.outboundCapacity = outbound
		l.videoCapacity = video
	}
}

// NewAudioLoop creates an AudioLoop. Unset collaborators default to stdin,
// stdout, screen mode, no metrics and the global tracer.
func NewAudioLoop(opts ...Option) *AudioLoop {
	l := &AudioLoop{
		liveConfig:       providers.DefaultLiveConfig(),
		mode:             capture.DefaultMode,
		metrics:          noopMetrics{},
		captureInterval:  DefaultCaptureInterval,
		outboundCapacity: DefaultOutboundCapacity,
		videoCapacity:    DefaultVideoCapacity,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.input == nil {
		l.input = NewLineReader(os.Stdin)
	}
	if l.out == nil {
		l.out = &syncWriter{w: os.Stdout}
	}
	if l.tracer == nil {
		l.tracer = telemetry.Tracer(nil)
	}
	if l.metrics == nil {
		l.metrics = noopMetrics{}
	}
	return l
}

func (l *AudioLoop) validate() error {
	switch {
	case l.connector == nil:
		return errors.New("session: connector is required")
	case l.mic == nil:
		return errors.New("session: microphone is required")
	case l.speaker == nil:
		return errors.New("session: speaker is required")
	case l.dispatcher == nil:
		return errors.New("session: dispatcher is required")
	case l.mode != capture.ModeNone && l.grabber == nil:
		return fmt.Errorf("session: mode %s requires a grabber", l.mode)
	}
	return nil
}

// Run opens the session and runs every pipeline until the user quits, ctx is
// cancelled or a pipeline fails. Quitting and cancellation return nil; a
// failure returns a *SupervisionError holding every fault.
func (l *AudioLoop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)
	defer l.closeDevices(ctx)

	if err := l.validate(); err != nil {
		return err
	}

	sessionID := uuid.NewString()
	ctx = logger.WithSessionID(ctx, sessionID)
	ctx = logger.WithModel(ctx, l.liveConfig.Model)
	ctx, span := l.tracer.Start(ctx, "session.run", trace.WithAttributes(
		attribute.String("session.id", sessionID),
		attribute.String("session.mode", string(l.mode)),
	))
	defer span.End()

	if err := l.liveConfig.Validate(); err != nil {
		return pkgerrors.New(pkgerrors.ComponentSession, "Connect", err)
	}
	sess, err := l.connector.Connect(ctx, l.liveConfig)
	if err != nil {
		span.RecordError(err)
		return pkgerrors.New(pkgerrors.ComponentSession, "Connect", err)
	}
	logger.SessionEvent(ctx, "connected", l.liveConfig.Model, "mode", string(l.mode))

	l.outbound = queue.NewBounded[types.MediaChunk](l.outboundCapacity)
	l.video = queue.NewBounded[types.MediaChunk](l.videoCapacity)
	l.inbound = queue.NewUnbounded[[]byte]()

	faults := &faultCollector{}
	g, gctx := errgroup.WithContext(ctx)
	spawn := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			err := fn(logger.WithPipeline(gctx, name))
			if isFault(err) {
				err = fmt.Errorf("%s: %w", name, err)
				logger.ErrorContext(gctx, "Pipeline failed", "pipeline", name, "error", err)
			}
			faults.add(err)
			return err
		})
	}

	spawn("text_input", func(ctx context.Context) error { return l.runTextInput(ctx, sess) })
	spawn("outbound", func(ctx context.Context) error { return l.runRelay(ctx, queueOutbound, l.outbound, sess) })
	spawn("mic", l.runMic)
	if l.mode != capture.ModeNone {
		spawn(string(l.mode)+"_capture", l.runCapture)
		spawn("video", func(ctx context.Context) error { return l.runRelay(ctx, queueVideo, l.video, sess) })
	}
	spawn("receive", func(ctx context.Context) error { return l.runReceive(ctx, sess) })
	spawn("playback", l.runPlayback)

	_ = g.Wait()
	l.outbound.Close()
	l.video.Close()
	l.inbound.Close()

	if cerr := sess.Close(); cerr != nil {
		logger.WarnContext(ctx, "Failed to close session", "error", cerr)
	}

	if err := faults.err(); err != nil {
		span.RecordError(err)
		logger.SessionEvent(ctx, "failed", l.liveConfig.Model, "error", err)
		return err
	}
	logger.SessionEvent(ctx, "ended", l.liveConfig.Model)
	return nil
}

// closeDevices releases the microphone, then the speaker and the grabber.
// Closing the microphone waits for an in-flight read to return.
func (l *AudioLoop) closeDevices(ctx context.Context) {
	closers := []struct {
		name string
		c    io.Closer
	}{
		{"microphone", l.mic},
		{"speaker", l.speaker},
		{"grabber", l.grabber},
	}
	for _, c := range closers {
		if c.c == nil {
			continue
		}
		if err := c.c.Close(); err != nil {
			logger.WarnContext(ctx, "Failed to close device", "device", c.name, "error", err)
		}
	}
}

// syncWriter serializes writes from the text and receive pipelines.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) print(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.w, text)
}
