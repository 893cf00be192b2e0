package errors_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	pkgerrors "github.com/deskpilot/deskpilot/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	cause := fmt.Errorf("no default input device")
	err := pkgerrors.New(pkgerrors.ComponentAudio, "OpenMicrophone", cause)

	assert.Equal(t, "audio", err.Component)
	assert.Equal(t, "OpenMicrophone", err.Operation)
	assert.Equal(t, 0, err.StatusCode)
	assert.Nil(t, err.Details)
	assert.Equal(t, cause, err.Cause)
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *pkgerrors.ContextualError
		want string
	}{
		{
			name: "with cause",
			err:  pkgerrors.New("capture", "StartPipeline", fmt.Errorf("no element ximagesrc")),
			want: "[capture] StartPipeline: no element ximagesrc",
		},
		{
			name: "no cause",
			err:  pkgerrors.New("session", "Run", nil),
			want: "[session] Run",
		},
		{
			name: "status code",
			err:  pkgerrors.New("gemini", "Connect", fmt.Errorf("forbidden")).WithStatusCode(403),
			want: "[gemini] Connect (status 403): forbidden",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := pkgerrors.New("audio", "Read", io.EOF)
	assert.True(t, errors.Is(err, io.EOF))

	wrapped := fmt.Errorf("mic relay: %w", err)
	var ce *pkgerrors.ContextualError
	require.True(t, errors.As(wrapped, &ce))
	assert.Equal(t, "Read", ce.Operation)
}

func TestWithDetails(t *testing.T) {
	err := pkgerrors.New("audio", "OpenSpeaker", nil).WithDetails(map[string]any{"rate": 24000})
	assert.Equal(t, 24000, err.Details["rate"])
}

func TestComponentOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", pkgerrors.New(pkgerrors.ComponentGemini, "Setup", io.ErrUnexpectedEOF))
	assert.Equal(t, "gemini", pkgerrors.ComponentOf(err))
	assert.Empty(t, pkgerrors.ComponentOf(io.EOF))
}
