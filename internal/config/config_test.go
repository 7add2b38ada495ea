package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "warp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	want := Default()
	assert.Equal(t, want, cfg)
	assert.Empty(t, cfg.File)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoadFindsWarpYAML(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, `
debounce: 250ms
poll_interval: 5s
asset_dir: blobs
db: warp.db
log_level: debug
positional_kind: Transform
metrics_addr: ":9090"
`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Debounce)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, "blobs", cfg.AssetDir)
	assert.Equal(t, "warp.db", cfg.DB)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, "warp.yaml", filepath.Base(cfg.File))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "db: from-file.db\nnode_kind: 1\n")
	t.Setenv("WARP_DB", "from-env.db")
	t.Setenv("WARP_DEBOUNCE", "1s")
	t.Setenv("WARP_ASSET_RATE_LIMIT", "2.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.DB)
	assert.Equal(t, time.Second, cfg.Debounce)
	assert.InDelta(t, 2.5, cfg.AssetRateLimit, 1e-9)
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"negative debounce", "debounce: -1s", "debounce"},
		{"zero poll interval", "poll_interval: 0s", "poll_interval"},
		{"same kinds", "node_kind: 4\nlink_kind: 4", "must differ"},
		{"both asset stores", "asset_dir: a\nasset_url: http://x", "only one"},
		{"bad level", "log_level: loud", "log_level"},
		{"malformed", "debounce: [", "read config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestTreeOptions(t *testing.T) {
	assert.Len(t, Default().TreeOptions(), 2)
}
