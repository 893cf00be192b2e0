package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/deskpilot/deskpilot/runtime/logger"
	"github.com/deskpilot/deskpilot/runtime/providers"
	"github.com/deskpilot/deskpilot/runtime/types"
)

// Transcript prefixes.
const (
	inputTranscriptPrefix  = "\n[you] "
	outputTranscriptPrefix = "\n[model] "
)

// runReceive consumes turns until a transport error. Audio is queued for
// playback, text is printed and tool calls are dispatched and answered as one
// batch. At every turn boundary pending playback audio is discarded.
func (l *AudioLoop) runReceive(ctx context.Context, sess providers.LiveSession) error {
	for {
		if err := l.receiveTurn(ctx, sess); err != nil {
			return err
		}
		l.drainInbound(ctx, "turn_complete")
		l.metrics.IncTurns()
	}
}

func (l *AudioLoop) receiveTurn(ctx context.Context, sess providers.LiveSession) (err error) {
	turnID := uuid.NewString()
	ctx = logger.WithTurnID(ctx, turnID)
	ctx, span := l.tracer.Start(ctx, "session.turn")
	span.SetAttributes(attribute.String("turn.id", turnID))
	defer func() {
		if err != nil && !errors.Is(err, context.Canceled) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	turn := sess.Receive(ctx)
	events := 0
	for {
		ev, err := turn.Next(ctx)
		if errors.Is(err, io.EOF) {
			span.SetAttributes(attribute.Int("turn.events", events))
			logger.DebugContext(ctx, "Turn complete", "events", events)
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}
		events++
		if err := l.handleEvent(ctx, sess, ev); err != nil {
			return err
		}
	}
}

// handleEvent applies one response event. Audio, text and tool calls are
// checked in that order and are exclusive; transcripts, interruption and
// usage carried on the same event are always applied.
func (l *AudioLoop) handleEvent(ctx context.Context, sess providers.LiveSession, ev *types.ResponseEvent) error {
	switch {
	case ev.HasAudio():
		if err := l.inbound.Put(ev.Audio); err != nil {
			return err
		}
		l.metrics.SetQueueDepth(queueInbound, l.inbound.Len())
	case ev.Text != "":
		l.out.print(ev.Text)
	case len(ev.ToolCalls) > 0:
		if err := l.dispatchTools(ctx, sess, ev.ToolCalls); err != nil {
			return err
		}
	}

	if ev.InputTranscript != "" {
		l.out.print(inputTranscriptPrefix + ev.InputTranscript)
	}
	if ev.OutputTranscript != "" {
		l.out.print(outputTranscriptPrefix + ev.OutputTranscript)
	}
	if ev.Interrupted {
		l.drainInbound(ctx, "interrupted")
	}
	if ev.Usage != nil {
		l.metrics.AddTokens(ev.Usage.PromptTokens, ev.Usage.ResponseTokens)
	}
	return nil
}

func (l *AudioLoop) dispatchTools(ctx context.Context, sess providers.LiveSession, calls []types.ToolCall) error {
	logger.InfoContext(ctx, "Dispatching tool calls", "count", len(calls))
	results := l.dispatcher.Dispatch(ctx, calls)
	if len(results) == 0 {
		return nil
	}
	if err := sess.SendToolResponse(ctx, results); err != nil {
		return fmt.Errorf("send tool response: %w", err)
	}
	return nil
}

// drainInbound discards audio the model produced for a finished or
// interrupted turn.
func (l *AudioLoop) drainInbound(ctx context.Context, reason string) {
	n := l.inbound.Drain()
	l.metrics.AddDroppedAudio(n)
	l.metrics.SetQueueDepth(queueInbound, 0)
	if n > 0 {
		logger.DebugContext(ctx, "Discarded pending audio", "chunks", n, "reason", reason)
	}
}
