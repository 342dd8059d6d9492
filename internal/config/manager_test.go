package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, path, addr string) {
	t.Helper()
	content := "server:\n  addr: \"" + addr + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestManagerLoadIdempotent(t *testing.T) {
	m := NewManager()

	cfg1, err := m.Load()
	require.NoError(t, err)

	cfg2, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg1, cfg2)
}

func TestManagerGetAutoLoads(t *testing.T) {
	m := NewManager()

	cfg, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, ":6006", cfg.Server.Addr)
}

func TestManagerHotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, ":7000")

	m := NewManager(WithConfigPath(path), WithWatchEnabled(true))

	cfg, err := m.Load()
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.Server.Addr)

	writeConfigFile(t, path, ":8000")

	require.Eventually(t, func() bool {
		current, err := m.Get()
		return err == nil && current.Server.Addr == ":8000"
	}, 5*time.Second, 50*time.Millisecond, "配置变更未被热加载")
}

func TestManagerHotReloadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfigFile(t, path, ":7000")

	m := NewManager(WithConfigPath(path), WithWatchEnabled(true))

	_, err := m.Load()
	require.NoError(t, err)

	// 校验失败的变更被拒绝，旧配置保持生效
	bad := "recorder:\n  websocket_url: \"wss://example.com/no-placeholder\"\n"
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	time.Sleep(500 * time.Millisecond)

	cfg, err := m.Get()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Contains(t, cfg.Recorder.WebSocketURL, "%s")
}
