package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csso/fngraph/internal/workspace"
)

func startWatcher(t *testing.T, dir string, debounce time.Duration) *atomic.Int32 {
	t.Helper()

	var fired atomic.Int32
	w, err := New(Config{
		Dirs:     []string{dir},
		Debounce: debounce,
		OnChange: func(context.Context) { fired.Add(1) },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
	return &fired
}

func TestFiresOnScriptChange(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "pipeline.js")
	require.NoError(t, os.WriteFile(script, []byte("// v1"), 0o644))

	fired := startWatcher(t, dir, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(script, []byte("// v2"), 0o644))
	require.Eventually(t, func() bool { return fired.Load() >= 1 },
		3*time.Second, 20*time.Millisecond)
}

func TestBurstOfWritesFiresOnce(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "pipeline.js")

	fired := startWatcher(t, dir, 200*time.Millisecond)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(script, []byte{byte('0' + i)}, 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return fired.Load() == 1 },
		3*time.Second, 20*time.Millisecond)
	assert.Never(t, func() bool { return fired.Load() > 1 },
		500*time.Millisecond, 50*time.Millisecond)
}

func TestIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()

	fired := startWatcher(t, dir, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o644))
	assert.Never(t, func() bool { return fired.Load() > 0 },
		500*time.Millisecond, 50*time.Millisecond)
}

func TestWatchesNewDirectories(t *testing.T) {
	dir := t.TempDir()

	fired := startWatcher(t, dir, 50*time.Millisecond)

	sub := filepath.Join(dir, "modules")
	require.NoError(t, os.Mkdir(sub, 0o755))

	// The new directory is registered from the event loop; rewriting until
	// the change lands avoids racing it.
	manifest := filepath.Join(sub, "math.hcl")
	require.Eventually(t, func() bool {
		require.NoError(t, os.WriteFile(manifest, []byte(`function "sum" {}`), 0o644))
		return fired.Load() >= 1
	}, 3*time.Second, 100*time.Millisecond)
}

func TestDirsForCollectsWorkspaceRoots(t *testing.T) {
	ws := &workspace.Config{
		Dir:         "/ws",
		ModulesPath: "modules",
		Scripts:     []string{"pipeline.js", "/opt/shared/common.js"},
		Graphs:      []workspace.Graph{{Name: "arith", File: "graphs/arith.yaml"}},
	}

	assert.Equal(t, []string{"/opt/shared", "/ws", "/ws/graphs", "/ws/modules"}, DirsFor(ws))
}
