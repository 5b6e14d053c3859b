// Package cli is a small REPL exercising the session coordinator end to
// end: sign-in/up/out, guest personas, profile display. It exists so the
// library can be driven without a UI on top.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"

	"github.com/taskmith/authkit/internal/backend"
	"github.com/taskmith/authkit/internal/config"
	"github.com/taskmith/authkit/internal/diag"
	"github.com/taskmith/authkit/internal/guest"
	"github.com/taskmith/authkit/internal/logging"
	"github.com/taskmith/authkit/internal/session"
)

type App struct {
	config *config.Config
	coord  *session.Coordinator
	db     *sql.DB
	reader *bufio.Reader
	log    logging.Logger
}

func NewApp(cfg *config.Config) (*App, error) {
	ctx := context.Background()
	log := logging.NewTextLogger(os.Stderr, slog.LevelInfo)

	db, err := guest.OpenDatabase(ctx, cfg.StoragePath)
	if err != nil {
		return nil, err
	}
	store := guest.NewSQLiteStore(db)

	var adapter backend.Adapter
	switch cfg.BackendKind {
	case config.BackendLocal:
		adapter = backend.NewLocal(backend.LocalOptions{
			BaseURL:  cfg.BaseURL,
			APIKey:   cfg.APIKey,
			Sessions: store,
		}, log)
	default:
		adapter = backend.NewCloud(backend.CloudOptions{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			RedirectURL: cfg.OAuthRedirectURL,
			Sessions:    store,
		}, log)
	}

	coord := session.New(*cfg, session.Deps{
		Adapter: adapter,
		Guests:  guest.NewManager(store),
		Diag:    diag.NewReporter(cfg.BaseURL, cfg.StoragePath, log),
		Log:     log,
	})

	return &App{
		config: cfg,
		coord:  coord,
		db:     db,
		reader: bufio.NewReader(os.Stdin),
		log:    log,
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.db.Close()
	defer a.coord.Teardown()

	_ = a.coord.Initialize(ctx)
	a.Root(ctx)
}
