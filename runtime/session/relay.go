package session

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"github.com/deskpilot/deskpilot/runtime/capture"
	"github.com/deskpilot/deskpilot/runtime/logger"
	"github.com/deskpilot/deskpilot/runtime/providers"
	"github.com/deskpilot/deskpilot/runtime/queue"
	"github.com/deskpilot/deskpilot/runtime/types"
)

// Queue names used in logs and metrics.
const (
	queueOutbound = "outbound"
	queueVideo    = "video"
	queueInbound  = "inbound_audio"
)

// runMic reads fixed-size PCM buffers from the microphone and queues them for
// sending. A full outbound queue suspends the read loop; nothing is dropped.
func (l *AudioLoop) runMic(ctx context.Context) error {
	for {
		pcm, err := offload(ctx, func() ([]byte, error) {
			return l.mic.Read(ctx)
		})
		if errors.Is(err, io.EOF) {
			logger.WarnContext(ctx, "Microphone stream ended")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read microphone: %w", err)
		}
		if err := l.outbound.Put(ctx, types.NewAudioChunk(pcm, types.SendSampleRate)); err != nil {
			return err
		}
		l.metrics.SetQueueDepth(queueOutbound, l.outbound.Len())
	}
}

// runCapture grabs one frame per capture interval and queues it on the video
// queue. End of stream ends only this pipeline.
func (l *AudioLoop) runCapture(ctx context.Context) error {
	limiter := rate.NewLimiter(rate.Every(l.captureInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		chunk, err := offload(ctx, func() (types.MediaChunk, error) {
			return l.grabber.Grab(ctx)
		})
		if errors.Is(err, capture.ErrEndOfStream) {
			logger.WarnContext(ctx, "Capture stream ended, continuing with audio only", "mode", string(l.mode))
			return nil
		}
		var devErr *capture.DeviceError
		if errors.As(err, &devErr) {
			logger.ErrorContext(ctx, "Capture device failed, continuing with audio only",
				"mode", string(l.mode), "category", devErr.Category, "error", err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("grab frame: %w", err)
		}
		if err := l.video.Put(ctx, chunk); err != nil {
			return err
		}
		l.metrics.SetQueueDepth(queueVideo, l.video.Len())
	}
}

// runRelay sends every chunk from q to the session in FIFO order.
func (l *AudioLoop) runRelay(ctx context.Context, name string, q *queue.Bounded[types.MediaChunk], sess providers.LiveSession) error {
	for {
		chunk, err := q.Get(ctx)
		if err != nil {
			return err
		}
		l.metrics.SetQueueDepth(name, q.Len())
		if err := sess.SendRealtimeInput(ctx, chunk); err != nil {
			return fmt.Errorf("send %s chunk: %w", chunk.Kind(), err)
		}
		l.metrics.IncMediaSent(chunk.Kind())
	}
}

// runPlayback writes received audio to the speaker in arrival order.
func (l *AudioLoop) runPlayback(ctx context.Context) error {
	for {
		pcm, err := l.inbound.Get(ctx)
		if err != nil {
			return err
		}
		l.metrics.SetQueueDepth(queueInbound, l.inbound.Len())
		if err := offloadErr(ctx, func() error { return l.speaker.Write(ctx, pcm) }); err != nil {
			return fmt.Errorf("play audio: %w", err)
		}
	}
}
