package audio

import (
	"context"
	"errors"

	"github.com/deskpilot/deskpilot/runtime/types"
)

// ErrDeviceClosed is returned by Read and Write after Close.
var ErrDeviceClosed = errors.New("audio device closed")

// Source yields microphone audio as raw PCM16 chunks.
type Source interface {
	// Read blocks until one chunk has been recorded.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Sink plays raw PCM16 audio. Write blocks until the audio has been handed to
// the device.
type Sink interface {
	Write(ctx context.Context, pcm []byte) error
	Close() error
}

// MicrophoneConfig configures the input stream.
type MicrophoneConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// DefaultMicrophoneConfig records 1024-frame chunks of 16 kHz mono audio.
func DefaultMicrophoneConfig() MicrophoneConfig {
	return MicrophoneConfig{
		SampleRate:      types.SendSampleRate,
		Channels:        types.AudioChannels,
		FramesPerBuffer: types.AudioChunkFrames,
	}
}

// SpeakerConfig configures the output stream.
type SpeakerConfig struct {
	// SampleRate is the rate of the PCM handed to Write.
	SampleRate int

	// DeviceRate is the rate the output stream is opened at. Audio is
	// resampled when it differs from SampleRate. Zero means SampleRate.
	DeviceRate int

	Channels        int
	FramesPerBuffer int
}

// DefaultSpeakerConfig plays 24 kHz mono audio.
func DefaultSpeakerConfig() SpeakerConfig {
	return SpeakerConfig{
		SampleRate:      types.ReceiveSampleRate,
		Channels:        types.AudioChannels,
		FramesPerBuffer: types.AudioChunkFrames,
	}
}

func (c SpeakerConfig) deviceRate() int {
	if c.DeviceRate > 0 {
		return c.DeviceRate
	}
	return c.SampleRate
}

// frameBuffer accumulates PCM16 bytes and releases them in whole device
// frames, carrying any remainder over to the next write.
type frameBuffer struct {
	frameBytes int
	pending    []byte
}

func newFrameBuffer(samplesPerFrame int) *frameBuffer {
	return &frameBuffer{frameBytes: samplesPerFrame * bytesPerSample}
}

// push appends pcm and returns the complete frames now available.
func (f *frameBuffer) push(pcm []byte) [][]byte {
	f.pending = append(f.pending, pcm...)
	var frames [][]byte
	for len(f.pending) >= f.frameBytes {
		frame := make([]byte, f.frameBytes)
		copy(frame, f.pending[:f.frameBytes])
		frames = append(frames, frame)
		f.pending = f.pending[f.frameBytes:]
	}
	if len(f.pending) == 0 {
		f.pending = nil
	}
	return frames
}

// flush returns the remainder zero-padded to a full frame, or nil.
func (f *frameBuffer) flush() []byte {
	if len(f.pending) == 0 {
		return nil
	}
	frame := make([]byte, f.frameBytes)
	copy(frame, f.pending)
	f.pending = nil
	return frame
}

// buffered reports how many bytes are waiting for a full frame.
func (f *frameBuffer) buffered() int {
	return len(f.pending)
}
