package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func withArgs(t *testing.T, args ...string) {
	t.Helper()
	saved := os.Args
	os.Args = append([]string{"authcli"}, args...)
	t.Cleanup(func() { os.Args = saved })
}

func writeJSONConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	withArgs(t)

	cfg := LoadConfig()

	require.Equal(t, BackendCloud, cfg.BackendKind)
	require.Equal(t, "http://127.0.0.1:8000", cfg.BaseURL)
	require.True(t, cfg.GuestModeEnabled)
	require.False(t, cfg.DevAutoAuth)
	require.Equal(t, 10*time.Second, cfg.SessionCheckTimeout)
	require.Equal(t, 5*time.Second, cfg.ProfileFetchTimeout)
	require.Equal(t, 15*time.Second, cfg.InitTimeout)
	require.Equal(t, 5, cfg.MaxReadyAttempts)
	require.Equal(t, 500*time.Millisecond, cfg.ReadyRetryDelay)
	require.Equal(t, "authkit.db", cfg.StoragePath)
}

func TestLoadConfig_JSONOverridesDefaults(t *testing.T) {
	path := writeJSONConfig(t, `{
		"backend_kind": "local",
		"base_url": "http://localhost:54321",
		"api_key": "anon-key",
		"session_check_timeout": "3s",
		"ready_retry_delay": "250ms",
		"guest_mode_enabled": false
	}`)
	withArgs(t, "-c", path)

	cfg := LoadConfig()

	require.Equal(t, BackendLocal, cfg.BackendKind)
	require.Equal(t, "http://localhost:54321", cfg.BaseURL)
	require.Equal(t, "anon-key", cfg.APIKey)
	require.Equal(t, 3*time.Second, cfg.SessionCheckTimeout)
	require.Equal(t, 250*time.Millisecond, cfg.ReadyRetryDelay)
	require.False(t, cfg.GuestModeEnabled)

	// Untouched fields keep their defaults.
	require.Equal(t, 15*time.Second, cfg.InitTimeout)
	require.Equal(t, "authkit.db", cfg.StoragePath)
}

func TestLoadConfig_PartialJSONFile(t *testing.T) {
	path := writeJSONConfig(t, `{"storage_path": "/tmp/state.db"}`)
	withArgs(t, "-c", path)

	cfg := LoadConfig()

	require.Equal(t, "/tmp/state.db", cfg.StoragePath)
	require.Equal(t, BackendCloud, cfg.BackendKind)
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	path := writeJSONConfig(t, `{"backend_kind": "local", "base_url": "http://from-json"}`)
	withArgs(t, "-c", path, "-b", "cloud", "-t", "30", "-s", "other.db")

	cfg := LoadConfig()

	require.Equal(t, BackendCloud, cfg.BackendKind)
	require.Equal(t, "http://from-json", cfg.BaseURL)
	require.Equal(t, 30*time.Second, cfg.InitTimeout)
	require.Equal(t, "other.db", cfg.StoragePath)
}

func TestLoadConfig_DevAutoAuthFlag(t *testing.T) {
	withArgs(t, "-d")

	cfg := LoadConfig()
	require.True(t, cfg.DevAutoAuth)
}

func TestLoadConfig_MissingJSONFilePanics(t *testing.T) {
	withArgs(t, "-c", filepath.Join(t.TempDir(), "absent.json"))

	require.Panics(t, func() { LoadConfig() })
}
