// Package config holds runtime settings for the session coordinator and the
// demo CLI. Values are layered: defaults, then an optional JSON file, then
// command-line flags; later sources win.
package config

import "time"

// BackendKind selects which identity backend the coordinator talks to.
type BackendKind string

const (
	BackendLocal BackendKind = "local"
	BackendCloud BackendKind = "cloud"
)

// Config holds every knob the coordinator reads. It is read once at startup
// and passed by value into constructors; nothing re-reads it later.
//
// Timeout semantics:
//   - SessionCheckTimeout bounds the initial session query (longer, first
//     load network conditions are unpredictable).
//   - ProfileFetchTimeout bounds profile fetches (shorter, keeps perceived
//     login latency low).
//   - InitTimeout is the global initialization deadline, independent of the
//     per-call deadlines above.
type Config struct {
	BackendKind      BackendKind
	BaseURL          string
	APIKey           string
	OAuthRedirectURL string

	GuestModeEnabled bool
	DevAutoAuth      bool

	SessionCheckTimeout time.Duration
	ProfileFetchTimeout time.Duration
	InitTimeout         time.Duration

	MaxReadyAttempts int
	ReadyRetryDelay  time.Duration

	// StoragePath is the sqlite file holding persisted client state
	// (currently only the guest persona selection).
	StoragePath string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BackendKind = BackendCloud
	c.BaseURL = "http://127.0.0.1:8000"
	c.GuestModeEnabled = true
	c.DevAutoAuth = false
	c.SessionCheckTimeout = 10 * time.Second
	c.ProfileFetchTimeout = 5 * time.Second
	c.InitTimeout = 15 * time.Second
	c.MaxReadyAttempts = 5
	c.ReadyRetryDelay = 500 * time.Millisecond
	c.StoragePath = "authkit.db"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseFlags(cfg)
	return cfg
}
