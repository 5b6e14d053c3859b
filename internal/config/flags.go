package config

import (
	"flag"
	"os"
	"time"

	"github.com/taskmith/authkit/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-b string   backend kind: "local" or "cloud"
//	-u string   base URL of the selected backend
//	-k string   API key sent to the backend
//	-g bool     enable guest mode
//	-d bool     development auto-authentication override
//	-t int      global initialization timeout, seconds
//	-r int      max readiness retry attempts
//	-s string   path to the client-state sqlite file
//
// The function filters os.Args to only the flags it knows about, via
// flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-b", "-u", "-k", "-g", "-d", "-t", "-r", "-s"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	backend := fs.String("b", string(cfg.BackendKind), "backend kind (local|cloud)")
	fs.StringVar(&cfg.BaseURL, "u", cfg.BaseURL, "backend base URL")
	fs.StringVar(&cfg.APIKey, "k", cfg.APIKey, "backend API key")
	fs.BoolVar(&cfg.GuestModeEnabled, "g", cfg.GuestModeEnabled, "enable guest mode")
	fs.BoolVar(&cfg.DevAutoAuth, "d", cfg.DevAutoAuth, "development auto-authentication")
	initTimeout := fs.Int("t", int(cfg.InitTimeout.Seconds()), "initialization timeout (in seconds)")
	fs.IntVar(&cfg.MaxReadyAttempts, "r", cfg.MaxReadyAttempts, "max readiness retry attempts")
	fs.StringVar(&cfg.StoragePath, "s", cfg.StoragePath, "client-state sqlite path")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.BackendKind = BackendKind(*backend)
	cfg.InitTimeout = time.Duration(*initTimeout) * time.Second
}
