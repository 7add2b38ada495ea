package cli

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryohey/warp/internal/ir"
	"github.com/ryohey/warp/internal/server"
	"github.com/ryohey/warp/internal/watch"
)

// startCommand runs the root command in the background until the returned
// cancel func is called.
func startCommand(t *testing.T, args ...string) (*syncBuffer, context.CancelFunc, <-chan error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs(args)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()
	t.Cleanup(cancel)
	return out, cancel, done
}

func waitFor(t *testing.T, out *syncBuffer, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), substr)
	}, 5*time.Second, 10*time.Millisecond, "waiting for %q in:\n%s", substr, out)
}

func TestWatchReloadsOnSave(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "Cube.prefab")
	v1, err := os.ReadFile(cubeV1)
	require.NoError(t, err)
	v2, err := os.ReadFile(cubeV2)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(doc, v1, 0o644))

	out, cancel, done := startCommand(t, "watch", doc, "--debounce", "20ms", "--dump")
	waitFor(t, out, "spawn #1")

	require.NoError(t, os.WriteFile(doc, v2, 0o644))
	waitFor(t, out, "reconcile #2")
	assert.Contains(t, out.String(), ": +1 -1")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Contains(t, out.String(), "BoxCollider")
}

func TestWatchMissingDirectory(t *testing.T) {
	doc := filepath.Join(t.TempDir(), "missing", "Cube.prefab")

	_, _, done := startCommand(t, "watch", doc)
	select {
	case err := <-done:
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not fail")
	}
}

func TestPollReloadsFromServer(t *testing.T) {
	dir := t.TempDir()
	tree, err := watch.LoadFile(cubeV1)
	require.NoError(t, err)
	require.NoError(t, ir.WriteTreeFile(filepath.Join(dir, "Cube.json"), tree))
	writeBlob(t, dir, "5f1c2d3e4a5b6c7d8e9f0a1b2c3d4e5f", "mesh")
	writeBlob(t, dir, "0a9b8c7d6e5f4a3b2c1d0e9f8a7b6c5d", "material")
	writeBlob(t, dir, "0000000000000000f000000000000000", "builtin")

	srv := httptest.NewServer(server.New(server.WithStatic(dir)).Handler())
	defer srv.Close()

	out, cancel, done := startCommand(t, "--format", "json", "poll", srv.URL, "Cube.json", "--interval", "50ms")
	waitFor(t, out, `"kind":"spawn"`)
	waitFor(t, out, `"kind":"reconcile"`)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not stop")
	}
	assert.Contains(t, out.String(), `"asset_failures":0`)
	assert.NotContains(t, out.String(), `"error"`)
}
