package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskpilot/deskpilot/pkg/config"
	pkgerrors "github.com/deskpilot/deskpilot/pkg/errors"
)

// execute runs the CLI in an empty directory with no provider keys set.
func execute(t *testing.T, env map[string]string, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "DESKPILOT_API_KEY", "DESKPILOT_MODE"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRun_InvalidModeIsUsageError(t *testing.T) {
	for _, args := range [][]string{
		{"--mode", "webcam"},
		{"run", "--mode", "webcam"},
	} {
		out, err := execute(t, map[string]string{"GEMINI_API_KEY": "key"}, args...)
		require.Error(t, err)

		var ue usageError
		assert.True(t, errors.As(err, &ue), "args %v", args)
		assert.Contains(t, err.Error(), `invalid mode "webcam"`)
		assert.Contains(t, out, "Usage:")
	}
}

func TestRun_InvalidModeFromEnvIsUsageError(t *testing.T) {
	_, err := execute(t, map[string]string{"GEMINI_API_KEY": "key", "DESKPILOT_MODE": "hologram"})
	var ue usageError
	require.True(t, errors.As(err, &ue))
}

func TestRun_MissingAPIKeyIsConfigError(t *testing.T) {
	out, err := execute(t, nil, "run", "--mode", "none")
	require.Error(t, err)

	var ue usageError
	assert.False(t, errors.As(err, &ue))
	assert.Equal(t, pkgerrors.ComponentConfig, pkgerrors.ComponentOf(err))
	assert.Contains(t, err.Error(), "api_key is required")
	assert.NotContains(t, out, "Usage:")
}

func TestRun_RejectsArguments(t *testing.T) {
	_, err := execute(t, nil, "run", "extra")
	require.Error(t, err)
}

func TestToolsCmd_ListsCatalog(t *testing.T) {
	out, err := execute(t, nil, "tools")
	require.NoError(t, err)
	for _, want := range []string{"NAME", "CATEGORY", "get_local_time", "press_hotkey", "browser_capture_full_page", "31 tools"} {
		assert.Contains(t, out, want)
	}
}

func TestToolsCmd_ToolsDirOverrides(t *testing.T) {
	extra := t.TempDir()
	manifest := "apiVersion: deskpilot/v1alpha1\nkind: Tool\nmetadata: {name: say_hello}\nspec: {description: Greets someone, category: custom, input_schema: {type: object}}\n"
	require.NoError(t, os.WriteFile(filepath.Join(extra, "hello.yaml"), []byte(manifest), 0o600))

	out, err := execute(t, nil, "tools", "--tools-dir", extra)
	require.NoError(t, err)
	assert.Contains(t, out, "say_hello")
	assert.Contains(t, out, "Greets someone")
	assert.Contains(t, out, "32 tools")
}

func TestToolsCmd_MissingToolsDir(t *testing.T) {
	_, err := execute(t, nil, "tools", "--tools-dir", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "deskpilot version")
}

func TestLiveConfig(t *testing.T) {
	cfg := &config.Config{
		Model:             "models/test",
		Voice:             "Puck",
		SystemInstruction: "be brief",
		Transcribe:        true,
		Compression:       config.CompressionConfig{Trigger: 1000, Target: 500},
	}
	reg, err := buildRegistry("")
	require.NoError(t, err)

	lc := liveConfig(cfg, reg.Declarations())
	assert.Equal(t, "models/test", lc.Model)
	assert.Equal(t, "Puck", lc.Voice)
	assert.Equal(t, "be brief", lc.SystemInstruction)
	assert.True(t, lc.InputTranscription)
	assert.True(t, lc.OutputTranscription)
	assert.Equal(t, 1000, lc.CompressionTriggerTokens)
	assert.Equal(t, 500, lc.CompressionTargetTokens)
	assert.Empty(t, lc.Tools, "nothing is bound yet")
	require.NoError(t, lc.Validate())
}
