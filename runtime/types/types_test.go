package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAudioChunk(t *testing.T) {
	chunk := NewAudioChunk([]byte{1, 2, 3, 4}, SendSampleRate)
	assert.Equal(t, "audio/pcm;rate=16000", chunk.MIMEType)
	assert.Equal(t, "audio", chunk.Kind())
	assert.Equal(t, 4, chunk.Size())
}

func TestMediaChunk_Kind(t *testing.T) {
	assert.Equal(t, "image", NewImageChunk([]byte{0xff}).Kind())
	assert.Equal(t, "other", MediaChunk{MIMEType: "text/plain"}.Kind())
}

func TestToolResultHelpers(t *testing.T) {
	call := ToolCall{ID: "c1", Name: "get_local_time"}

	ok := NewToolResult(call, `{"time":"14:03:05"}`)
	assert.Equal(t, "c1", ok.ID)
	assert.Equal(t, "get_local_time", ok.Name)
	assert.False(t, ok.IsError())
	assert.Empty(t, ok.ErrorMessage())
	assert.Equal(t, `{"time":"14:03:05"}`, ok.Response[ResultKey])

	bad := NewToolError(call, "boom")
	assert.True(t, bad.IsError())
	assert.Equal(t, "boom", bad.ErrorMessage())
	assert.NotContains(t, bad.Response, ResultKey)
}

func TestUserText(t *testing.T) {
	c := UserText("hello")
	assert.Equal(t, RoleUser, c.Role)
	assert.Len(t, c.Parts, 1)
	assert.Equal(t, "hello", c.Parts[0].Text)
}
