// Package types defines the data exchanged between the capture devices, the
// live session transport and the tool dispatcher.
package types

import (
	"fmt"
	"strings"
)

// MIME types used for realtime media.
const (
	MIMETypeJPEG = "image/jpeg"
	MIMETypePCM  = "audio/pcm"
)

// Audio stream parameters. Audio is signed 16-bit little-endian mono PCM.
const (
	SendSampleRate    = 16000
	ReceiveSampleRate = 24000
	AudioChannels     = 1
	AudioChunkFrames  = 1024
	BytesPerSample    = 2
)

// MediaChunk is one unit of realtime media produced by a capture source and
// forwarded to the session. It is treated as immutable once created.
//
// Example usage:
//
//	chunk := types.NewAudioChunk(pcm, types.SendSampleRate)
//	err := session.SendRealtimeInput(ctx, chunk)
type MediaChunk struct {
	// MIMEType describes Data, e.g. "audio/pcm;rate=16000" or "image/jpeg".
	MIMEType string `json:"mime_type"`

	// Data holds the raw media bytes. It is base64-encoded only on the wire.
	Data []byte `json:"data"`
}

// NewAudioChunk wraps raw PCM samples recorded at the given sample rate.
func NewAudioChunk(pcm []byte, sampleRate int) MediaChunk {
	return MediaChunk{
		MIMEType: fmt.Sprintf("%s;rate=%d", MIMETypePCM, sampleRate),
		Data:     pcm,
	}
}

// NewImageChunk wraps an encoded JPEG frame.
func NewImageChunk(jpeg []byte) MediaChunk {
	return MediaChunk{MIMEType: MIMETypeJPEG, Data: jpeg}
}

// Kind returns "audio", "image" or "other" based on the MIME type.
func (c MediaChunk) Kind() string {
	switch {
	case strings.HasPrefix(c.MIMEType, "audio/"):
		return "audio"
	case strings.HasPrefix(c.MIMEType, "image/"):
		return "image"
	default:
		return "other"
	}
}

// Size returns the payload length in bytes.
func (c MediaChunk) Size() int {
	return len(c.Data)
}
