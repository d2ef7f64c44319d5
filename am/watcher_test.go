package am

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestWatcher(t *testing.T, initial string) (*ConfigWatcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "am.toml")
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o644))

	cw, err := NewConfigWatcher(path, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	cw.load = func() (*Config, error) { return LoadFromFile(path) }
	cw.debouncePeriod = 20 * time.Millisecond
	cw.Start()
	t.Cleanup(func() { _ = cw.Stop() })
	return cw, path
}

func TestConfigWatcherReloadsOnWrite(t *testing.T) {
	cw, path := newTestWatcher(t, "[server]\nallowed_origins = [\"https://old.example\"]\n")

	var mu sync.Mutex
	var got []string
	cw.OnReload(func(cfg *Config) error {
		mu.Lock()
		defer mu.Unlock()
		got = cfg.Server.AllowedOrigins
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("[server]\nallowed_origins = [\"https://new.example\"]\n"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "https://new.example"
	}, 3*time.Second, 20*time.Millisecond)
}

func TestConfigWatcherSkipsInvalidConfig(t *testing.T) {
	cw, path := newTestWatcher(t, "[pulse]\nworkers = 2\n")

	var mu sync.Mutex
	calls := 0
	cw.OnReload(func(cfg *Config) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	})

	require.NoError(t, os.WriteFile(path, []byte("[pulse]\nworkers = -1\n"), 0o644))
	time.Sleep(300 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

func TestNewConfigWatcherMissingFile(t *testing.T) {
	_, err := NewConfigWatcher(filepath.Join(t.TempDir(), "absent.toml"), nil)
	require.Error(t, err)
}
