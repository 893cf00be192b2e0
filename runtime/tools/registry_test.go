package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifests = `
apiVersion: deskpilot/v1alpha1
kind: Tool
metadata:
  name: echo
spec:
  description: Echoes its input
  category: test
  input_schema:
    type: object
    properties:
      text: {type: string}
    required: [text]
---
apiVersion: deskpilot/v1alpha1
kind: Tool
metadata:
  name: ping
  labels:
    category: net
spec:
  description: Replies pong
  input_schema: {type: object}
`

func TestRegistry_LoadCatalog_MultiDocument(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadCatalog("tools.yaml", []byte(testManifests)))

	assert.Equal(t, []string{"echo", "ping"}, r.List())

	ping := r.Get("ping")
	require.NotNil(t, ping)
	assert.Equal(t, "net", ping.Category)
	assert.JSONEq(t, `{"type":"object"}`, string(ping.InputSchema))
}

func TestRegistry_LoadCatalog_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		errMsg string
	}{
		{
			name:   "wrong kind",
			data:   "apiVersion: deskpilot/v1alpha1\nkind: Prompt\nmetadata: {name: x}\nspec: {description: d, input_schema: {type: object}}\n",
			errMsg: "invalid kind",
		},
		{
			name:   "missing name",
			data:   "apiVersion: deskpilot/v1alpha1\nkind: Tool\nspec: {description: d, input_schema: {type: object}}\n",
			errMsg: "missing metadata.name",
		},
		{
			name:   "missing description",
			data:   "apiVersion: deskpilot/v1alpha1\nkind: Tool\nmetadata: {name: x}\nspec: {input_schema: {type: object}}\n",
			errMsg: ErrToolDescriptionRequired.Error(),
		},
		{
			name:   "broken yaml",
			data:   "apiVersion: [\n",
			errMsg: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().LoadCatalog("bad.yaml", []byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRegistry_LoadCatalog_BareDescriptor(t *testing.T) {
	r := NewRegistry()
	data := []byte(`{"name":"raw","description":"json tool","input_schema":{"type":"object"}}`)
	require.NoError(t, r.LoadCatalog("raw.json", data))
	assert.NotNil(t, r.Get("raw"))
}

func TestRegistry_LoadBuiltinCatalog(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadBuiltinCatalog())

	names := r.List()
	assert.Len(t, names, 31)
	for _, want := range []string{"get_local_time", "get_weather", "browser_capture_full_page", "manage_files", "run_command"} {
		assert.Contains(t, names, want)
	}
	for _, d := range r.Descriptors() {
		assert.NotEmpty(t, d.Category, "tool %s has no category", d.Name)
	}
}

func TestRegistry_LoadDir_Overrides(t *testing.T) {
	dir := t.TempDir()
	override := "apiVersion: deskpilot/v1alpha1\nkind: Tool\nmetadata: {name: get_local_time}\nspec: {description: overridden, category: info, input_schema: {type: object}}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "time.yaml"), []byte(override), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600))

	r := NewRegistry()
	require.NoError(t, r.LoadBuiltinCatalog())
	require.NoError(t, r.LoadDir(dir))
	assert.Equal(t, "overridden", r.Get("get_local_time").Description)

	assert.Error(t, r.LoadDir(filepath.Join(dir, "missing")))
}

func TestRegistry_LookupAndBind(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadCatalog("tools.yaml", []byte(testManifests)))

	_, _, err := r.Lookup("nope")
	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nope", unknown.Name)
	assert.True(t, errors.Is(err, ErrToolNotFound))
	assert.Equal(t, "Unknown function: nope", err.Error())

	_, desc, err := r.Lookup("echo")
	assert.ErrorIs(t, err, ErrToolNotBound)
	assert.NotNil(t, desc)

	echo := NewFunc("echo", func(_ context.Context, args map[string]any) (any, error) {
		return args["text"], nil
	})
	require.NoError(t, r.Bind(echo))

	tool, desc, err := r.Lookup("echo")
	require.NoError(t, err)
	assert.Equal(t, "echo", tool.Name())
	assert.Equal(t, "echo", desc.Name)

	err = r.Bind(NewFunc("ghost", nil))
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_DeclarationsOnlyBound(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.LoadCatalog("tools.yaml", []byte(testManifests)))
	require.NoError(t, r.Bind(NewFunc("ping", func(context.Context, map[string]any) (any, error) { return "pong", nil })))

	decls := r.Declarations()
	require.Len(t, decls, 1)
	assert.Equal(t, "ping", decls[0].Name)
	assert.Equal(t, "Replies pong", decls[0].Description)
	assert.JSONEq(t, `{"type":"object"}`, string(decls[0].Parameters))
}

func TestRegistry_RegisterValidation(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(&ToolDescriptor{}), ErrToolNameRequired)
	assert.ErrorIs(t, r.Register(&ToolDescriptor{Name: "x"}), ErrToolDescriptionRequired)
	assert.ErrorIs(t, r.Register(&ToolDescriptor{Name: "x", Description: "d"}), ErrInputSchemaRequired)
}
