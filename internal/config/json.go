package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/taskmith/authkit/internal/flagx"
	"github.com/taskmith/authkit/internal/timex"
)

// JSONConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so timeouts can be written either as strings like "10s" or
// as integer nanoseconds. After parsing, values are copied into the runtime
// Config (which uses time.Duration).
type JSONConfig struct {
	BackendKind         string         `json:"backend_kind"`
	BaseURL             string         `json:"base_url"`
	APIKey              string         `json:"api_key"`
	OAuthRedirectURL    string         `json:"oauth_redirect_url"`
	GuestModeEnabled    *bool          `json:"guest_mode_enabled"`
	DevAutoAuth         *bool          `json:"dev_auto_auth"`
	SessionCheckTimeout timex.Duration `json:"session_check_timeout"`
	ProfileFetchTimeout timex.Duration `json:"profile_fetch_timeout"`
	InitTimeout         timex.Duration `json:"init_timeout"`
	MaxReadyAttempts    int            `json:"max_ready_attempts"`
	ReadyRetryDelay     timex.Duration `json:"ready_retry_delay"`
	StoragePath         string         `json:"storage_path"`
}

// parseJSON overlays Config with values loaded from a JSON file.
//
// The file path comes from the -c/-config flags (flagx.JSONConfigFlags);
// when absent, nothing is loaded. Zero-valued JSON fields leave the existing
// Config values in place, so the file may be partial. Read or unmarshal
// errors panic; callers may recover if they want softer behavior.
func parseJSON(cfg *Config) {
	jsonConfigFile := flagx.JSONConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JSONConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.BackendKind != "" {
		cfg.BackendKind = BackendKind(jc.BackendKind)
	}
	if jc.BaseURL != "" {
		cfg.BaseURL = jc.BaseURL
	}
	if jc.APIKey != "" {
		cfg.APIKey = jc.APIKey
	}
	if jc.OAuthRedirectURL != "" {
		cfg.OAuthRedirectURL = jc.OAuthRedirectURL
	}
	if jc.GuestModeEnabled != nil {
		cfg.GuestModeEnabled = *jc.GuestModeEnabled
	}
	if jc.DevAutoAuth != nil {
		cfg.DevAutoAuth = *jc.DevAutoAuth
	}
	if jc.SessionCheckTimeout.Duration != 0 {
		cfg.SessionCheckTimeout = time.Duration(jc.SessionCheckTimeout.Duration)
	}
	if jc.ProfileFetchTimeout.Duration != 0 {
		cfg.ProfileFetchTimeout = time.Duration(jc.ProfileFetchTimeout.Duration)
	}
	if jc.InitTimeout.Duration != 0 {
		cfg.InitTimeout = time.Duration(jc.InitTimeout.Duration)
	}
	if jc.MaxReadyAttempts != 0 {
		cfg.MaxReadyAttempts = jc.MaxReadyAttempts
	}
	if jc.ReadyRetryDelay.Duration != 0 {
		cfg.ReadyRetryDelay = time.Duration(jc.ReadyRetryDelay.Duration)
	}
	if jc.StoragePath != "" {
		cfg.StoragePath = jc.StoragePath
	}
}
