package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	pkgerrors "github.com/deskpilot/deskpilot/pkg/errors"
	"github.com/deskpilot/deskpilot/runtime/logger"
)

// levelLogInterval is how many microphone chunks pass between level logs.
const levelLogInterval = 500

// Microphone records from the default input device.
type Microphone struct {
	mu     sync.Mutex
	cfg    MicrophoneConfig
	stream *portaudio.Stream
	buf    []int16
	closed bool
	chunks uint64
}

// OpenMicrophone opens and starts the default input stream.
func OpenMicrophone(cfg MicrophoneConfig) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, pkgerrors.New(pkgerrors.ComponentAudio, "OpenMicrophone",
			fmt.Errorf("failed to initialize PortAudio: %w", err))
	}

	buf := make([]int16, cfg.FramesPerBuffer*cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(cfg.Channels, 0, float64(cfg.SampleRate), cfg.FramesPerBuffer, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, pkgerrors.New(pkgerrors.ComponentAudio, "OpenMicrophone",
			fmt.Errorf("failed to open input stream: %w", err)).
			WithDetails(map[string]any{"sample_rate": cfg.SampleRate})
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, pkgerrors.New(pkgerrors.ComponentAudio, "OpenMicrophone",
			fmt.Errorf("failed to start input stream: %w", err))
	}

	logger.Info("Microphone opened",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"frames_per_buffer", cfg.FramesPerBuffer,
	)
	return &Microphone{cfg: cfg, stream: stream, buf: buf}, nil
}

// Read records one chunk. Input overflows are tolerated: the chunk is still
// returned.
func (m *Microphone) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrDeviceClosed
	}

	if err := m.stream.Read(); err != nil && !errors.Is(err, portaudio.InputOverflowed) {
		return nil, fmt.Errorf("microphone read: %w", err)
	}

	m.chunks++
	if m.chunks%levelLogInterval == 0 {
		logger.Debug("Microphone level", "chunks", m.chunks, "rms", RMS(m.buf))
	}
	return Int16ToBytes(m.buf), nil
}

// Close stops the input stream. It waits for an in-flight Read.
func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	logger.Info("Microphone closed", "chunks", m.chunks)
	return closeStream(m.stream)
}

// Speaker plays audio on the default output device.
type Speaker struct {
	mu     sync.Mutex
	cfg    SpeakerConfig
	stream *portaudio.Stream
	out    []int16
	frames *frameBuffer
	closed bool
}

// OpenSpeaker opens and starts the default output stream.
func OpenSpeaker(cfg SpeakerConfig) (*Speaker, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, pkgerrors.New(pkgerrors.ComponentAudio, "OpenSpeaker",
			fmt.Errorf("failed to initialize PortAudio: %w", err))
	}

	out := make([]int16, cfg.FramesPerBuffer*cfg.Channels)
	stream, err := portaudio.OpenDefaultStream(0, cfg.Channels, float64(cfg.deviceRate()), cfg.FramesPerBuffer, out)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, pkgerrors.New(pkgerrors.ComponentAudio, "OpenSpeaker",
			fmt.Errorf("failed to open output stream: %w", err)).
			WithDetails(map[string]any{"sample_rate": cfg.deviceRate()})
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, pkgerrors.New(pkgerrors.ComponentAudio, "OpenSpeaker",
			fmt.Errorf("failed to start output stream: %w", err))
	}

	logger.Info("Speaker opened", "sample_rate", cfg.SampleRate, "device_rate", cfg.deviceRate())
	return &Speaker{
		cfg:    cfg,
		stream: stream,
		out:    out,
		frames: newFrameBuffer(len(out)),
	}, nil
}

// Write plays pcm. Audio that does not fill a whole device buffer is kept and
// played with the next write.
func (s *Speaker) Write(ctx context.Context, pcm []byte) error {
	if s.cfg.deviceRate() != s.cfg.SampleRate {
		resampled, err := ResamplePCM16(pcm, s.cfg.SampleRate, s.cfg.deviceRate())
		if err != nil {
			return fmt.Errorf("speaker resample: %w", err)
		}
		pcm = resampled
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrDeviceClosed
	}

	for _, frame := range s.frames.push(pcm) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.writeFrame(frame); err != nil {
			return err
		}
	}
	return nil
}

func (s *Speaker) writeFrame(frame []byte) error {
	copy(s.out, BytesToInt16(frame))
	if err := s.stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
		return fmt.Errorf("speaker write: %w", err)
	}
	return nil
}

// Close plays any buffered remainder and stops the output stream.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if frame := s.frames.flush(); frame != nil {
		if err := s.writeFrame(frame); err != nil {
			logger.Debug("Speaker flush failed", "error", err)
		}
	}
	logger.Info("Speaker closed")
	return closeStream(s.stream)
}

func closeStream(stream *portaudio.Stream) error {
	var errs []error
	if err := stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop stream: %w", err))
	}
	if err := stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("terminate: %w", err))
	}
	return errors.Join(errs...)
}

var (
	_ Source = (*Microphone)(nil)
	_ Sink   = (*Speaker)(nil)
)
