package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csso/fngraph/internal/testutil"
)

const pipelineScript = `
functions.push({
  name: "val",
  outputs: [["value", "int"]],
  func: function() { return 7; }
});
functions.push({
  name: "double",
  inputs: [["x", "int"]],
  outputs: [["y", "int"]],
  func: function(x) { return x * 2; }
});
functions.push({
  name: "show",
  inputs: [["message", "any"]],
  func: function(m) { console.log(m); }
});
function graph() {
  show(double(val()));
}
`

const workspaceFile = `
scripts = ["pipeline.js"]

graph "arith" {
  file = "arith.yaml"
}
`

func writeWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pipeline.js"), []byte(pipelineScript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workspace.hcl"), []byte(workspaceFile), 0o644))
	return filepath.Join(dir, "workspace.hcl")
}

func TestNewConfigValidation(t *testing.T) {
	cfg, err := NewConfig(Config{WorkspacePath: "workspace.hcl"})
	require.NoError(t, err)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)

	testCases := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "error - missing workspace path",
			cfg:     Config{},
			wantErr: "WorkspacePath is a required configuration field",
		},
		{
			name:    "error - bad log format",
			cfg:     Config{WorkspacePath: "w.hcl", LogFormat: "xml"},
			wantErr: "invalid log format 'xml'",
		},
		{
			name:    "error - bad log level",
			cfg:     Config{WorkspacePath: "w.hcl", LogLevel: "verbose"},
			wantErr: "invalid log level 'verbose'",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfig(tc.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewAssemblesScriptWorkspace(t *testing.T) {
	ctx := context.Background()
	path := writeWorkspace(t)

	cfg, err := NewConfig(Config{WorkspacePath: path, LogLevel: "debug"})
	require.NoError(t, err)

	logs := &testutil.SafeBuffer{}
	a, err := New(ctx, logs, cfg)
	require.NoError(t, err)

	assert.Len(t, a.Engine().Functions(), 3)
	require.Equal(t, 3, a.Model().Len())
	assert.Equal(t, "val() (value int)", a.Model().At(0).Signature())
	assert.Equal(t, filepath.Dir(path), a.Workspace().Dir)
	assert.NotNil(t, a.Metrics())
	assert.Contains(t, logs.String(), "Engine initialized.")

	// Deferred cleanup may run after an explicit Close.
	a.Close()
	a.Close()
}

func TestNewEmitsJSONWhenAsked(t *testing.T) {
	ctx := context.Background()
	path := writeWorkspace(t)

	cfg, err := NewConfig(Config{WorkspacePath: path, LogLevel: "debug", LogFormat: "json"})
	require.NoError(t, err)

	logs := &testutil.SafeBuffer{}
	a, err := New(ctx, logs, cfg)
	require.NoError(t, err)
	defer a.Close()

	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		assert.True(t, strings.HasPrefix(line, "{"), "expected JSON log line, got: %s", line)
	}
	assert.Contains(t, logs.String(), `"level":"DEBUG"`)
}

func TestNewFailsOnMissingWorkspace(t *testing.T) {
	ctx := context.Background()
	cfg, err := NewConfig(Config{WorkspacePath: filepath.Join(t.TempDir(), "absent.hcl")})
	require.NoError(t, err)

	_, err = New(ctx, &testutil.SafeBuffer{}, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load workspace")
}
