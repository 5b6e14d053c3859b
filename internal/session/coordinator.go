// Package session implements the session lifecycle coordinator: the single
// source of truth for "who is the current actor and how authenticated are
// they". It selects a backend (or guest mode), bounds every network call
// with a deadline, recovers readiness races through the retry controller,
// and exposes the resulting state as immutable snapshots.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskmith/authkit/internal/backend"
	"github.com/taskmith/authkit/internal/config"
	"github.com/taskmith/authkit/internal/diag"
	"github.com/taskmith/authkit/internal/guest"
	"github.com/taskmith/authkit/internal/identity"
	"github.com/taskmith/authkit/internal/logging"
	"github.com/taskmith/authkit/internal/racex"
	"github.com/taskmith/authkit/internal/retryx"
)

var devNamespace = uuid.MustParse("9d2c7a40-21d7-4a85-9b3e-5f0a3c11d6b4")

var devSigningSecret = []byte("authkit-dev-auto-auth")

// Deps are the coordinator's collaborators. Adapter and Guests are required;
// the rest default when nil.
type Deps struct {
	Adapter backend.Adapter
	Guests  *guest.Manager
	Retry   *retryx.Controller
	Diag    *diag.Reporter
	Log     logging.Logger
}

// Coordinator owns the authoritative user/session/profile state. Create one
// per application lifetime; release it with Teardown.
type Coordinator struct {
	cfg     config.Config
	adapter backend.Adapter
	guests  *guest.Manager
	retry   *retryx.Controller
	diag    *diag.Reporter
	log     logging.Logger

	// ctx scopes all background work; Teardown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	snap         Snapshot
	initializing bool // InitializationGuard: one live attempt at a time
	initialized  bool // full initialization runs at most once
	generation   uint64
	closed       bool
	sub          *backend.Subscription
	initTimer    *time.Timer
	watchers     []chan Snapshot
}

// New constructs a coordinator in the uninitialized state.
func New(cfg config.Config, deps Deps) *Coordinator {
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	if deps.Retry == nil {
		deps.Retry = retryx.New(cfg.MaxReadyAttempts, cfg.ReadyRetryDelay)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		cfg:     cfg,
		adapter: deps.Adapter,
		guests:  deps.Guests,
		retry:   deps.Retry,
		diag:    deps.Diag,
		log:     deps.Log.With("component", "session-coordinator"),
		ctx:     ctx,
		cancel:  cancel,
		snap:    Snapshot{Status: StatusUninitialized},
	}
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Watch returns a channel receiving a snapshot after every state change.
// Slow receivers miss intermediate snapshots rather than blocking the
// coordinator. The channel closes on Teardown.
func (c *Coordinator) Watch() <-chan Snapshot {
	ch := make(chan Snapshot, 8)
	c.mu.Lock()
	c.watchers = append(c.watchers, ch)
	c.mu.Unlock()
	return ch
}

// Initialize drives the startup sequence:
//
//  1. dev auto-auth override: synthesize a deterministic identity, done;
//  2. persisted guest selection: restore synchronously, no network, done;
//  3. otherwise: arm the global deadline, subscribe to auth-state changes,
//     wait for backend readiness (bounded retry), race the session check
//     against its deadline, then race the profile fetch against its own.
//
// A second call while an attempt is live, or after initialization has
// concluded, returns immediately.
func (c *Coordinator) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.initializing || c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initializing = true
	c.initialized = true
	gen := c.generation
	c.setStateLocked(Snapshot{Status: StatusInitializing})
	c.mu.Unlock()

	if c.cfg.DevAutoAuth {
		c.finishDevAutoAuth(gen)
		return nil
	}

	if c.guests != nil {
		persona, found, err := c.guests.Persisted(ctx)
		if err != nil {
			c.log.Error(ctx, "persisted guest selection unreadable", "err", err)
			c.finishError(gen, identity.NewAuthError(identity.CodeGuestModeError, "stored guest selection could not be read"))
			return nil
		}
		if found {
			c.restoreGuest(gen, persona)
			return nil
		}
	}

	// Global deadline, independent of the per-call deadlines below.
	c.mu.Lock()
	c.initTimer = time.AfterFunc(c.cfg.InitTimeout, func() {
		c.onInitDeadline(gen)
	})
	// Subscribe before the session query so a transition racing the
	// initial check is never dropped.
	c.sub = c.adapter.OnAuthStateChange(c.handleAuthEvent)
	c.mu.Unlock()

	go c.initializeBackend(gen)
	return nil
}

func (c *Coordinator) initializeBackend(gen uint64) {
	ctx := c.ctx

	sess, err := retryx.Do(ctx, c.retry, c.adapter.Ready, func(ctx context.Context) (*identity.Session, error) {
		return racex.Race(ctx, c.cfg.SessionCheckTimeout, c.adapter.CurrentSession)
	})
	if err != nil {
		switch {
		case errors.Is(err, retryx.ErrServiceUnavailable):
			c.log.Error(ctx, "backend never became ready", "err", err, "attempts", c.retry.Attempts())
			c.finishError(gen, mapAuthError(err))
		case errors.Is(err, racex.ErrDeadline):
			c.finishError(gen, identity.NewAuthError(identity.CodeTimeout, "session check timed out"))
		default:
			c.log.Error(ctx, "session check failed", "err", err)
			c.finishError(gen, mapAuthError(err))
		}
		return
	}

	if sess == nil || sess.User == nil {
		c.finish(gen, Snapshot{Status: StatusUnauthenticated})
		return
	}

	profile, err := racex.Race(ctx, c.cfg.ProfileFetchTimeout, func(ctx context.Context) (*identity.Profile, error) {
		return c.adapter.FetchProfile(ctx, sess.AccessToken, sess.User.ID)
	})
	if err != nil {
		// Partial success: the user is authenticated, only the profile is
		// missing. Keep user and session, surface a profile error.
		c.log.Warn(ctx, "profile fetch failed after session check", "err", err, "user", sess.User.ID)
		c.finish(gen, Snapshot{
			Status:  StatusError,
			User:    sess.User,
			Session: sess,
			Err:     identity.NewAuthError(identity.CodeProfileFetchFailed, "signed in, but the profile could not be loaded"),
		})
		return
	}

	c.finish(gen, Snapshot{
		Status:  StatusAuthenticated,
		User:    sess.User,
		Session: sess,
		Profile: profile,
	})
}

func (c *Coordinator) finishDevAutoAuth(gen uint64) {
	userID := uuid.NewSHA1(devNamespace, []byte("dev-user")).String()
	now := time.Now()
	user := &identity.User{
		ID:               userID,
		Email:            "dev@localhost",
		CreatedAt:        now,
		EmailConfirmedAt: &now,
		Metadata:         map[string]any{"dev": true},
	}
	token, err := identity.SignLocalToken(userID, devSigningSecret, 24*time.Hour)
	if err != nil {
		c.finishError(gen, identity.NewAuthError(identity.CodeGuestModeError, "dev identity could not be constructed"))
		return
	}
	c.finish(gen, Snapshot{
		Status: StatusAuthenticated,
		User:   user,
		Session: &identity.Session{
			AccessToken: token,
			TokenType:   "bearer",
			ExpiresAt:   now.Add(24 * time.Hour),
			User:        user,
		},
		Profile: &identity.Profile{
			UserID:         userID,
			Email:          user.Email,
			FullName:       "Dev User",
			Role:           "admin",
			Tier:           "pro",
			OnboardingDone: true,
		},
	})
}

func (c *Coordinator) restoreGuest(gen uint64, persona identity.Persona) {
	id, err := c.guests.Synthesize(persona)
	if err != nil {
		c.finishError(gen, identity.NewAuthError(identity.CodeGuestModeError, "guest identity could not be constructed"))
		return
	}
	c.finish(gen, Snapshot{
		Status:  StatusGuest,
		User:    id.User,
		Session: id.Session,
		Profile: id.Profile,
		Persona: persona,
	})
}

// onInitDeadline forces the error state if initialization has not concluded
// by the global deadline. Idempotent: once the guard is cleared, a late
// expiry is a no-op.
func (c *Coordinator) onInitDeadline(gen uint64) {
	c.finishError(gen, identity.NewAuthError(identity.CodeTimeout, "initialization timed out"))
}

// finish concludes the live initialization attempt with the given state.
// Every exit path funnels through here (or finishError), so the guard is
// cleared and the deadline timer cancelled exactly once.
func (c *Coordinator) finish(gen uint64, snap Snapshot) {
	c.mu.Lock()
	if c.closed || gen != c.generation || !c.initializing {
		c.mu.Unlock()
		return
	}
	c.initializing = false
	if c.initTimer != nil {
		c.initTimer.Stop()
		c.initTimer = nil
	}
	c.setStateLocked(snap)
	c.mu.Unlock()

	c.log.Info(c.ctx, "initialization concluded", "status", string(snap.Status))
}

func (c *Coordinator) finishError(gen uint64, authErr *identity.AuthError) {
	c.finish(gen, Snapshot{Status: StatusError, Err: authErr})

	// Advisory diagnostics, strictly after the state has moved.
	if c.diag != nil && authErr.Code != identity.CodeGuestModeError {
		go c.attachHint(gen, authErr.Code)
	}
}

// attachHint runs the diagnostics probes and, if the error is still current,
// decorates it with the hint.
func (c *Coordinator) attachHint(gen uint64, code identity.ErrorCode) {
	hint := c.diag.Hint(c.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		return
	}
	if c.snap.Status == StatusError && c.snap.Err != nil && c.snap.Err.Code == code {
		decorated := *c.snap.Err
		decorated.Hint = hint
		snap := c.snap
		snap.Err = &decorated
		c.setStateLocked(snap)
	}
}

// handleAuthEvent applies backend-pushed session transitions. Mutation
// operations rely on this path instead of re-running initialization.
func (c *Coordinator) handleAuthEvent(ev backend.AuthEvent) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	gen := c.generation

	switch ev.Type {
	case backend.EventSignedOut:
		c.setStateLocked(Snapshot{Status: StatusUnauthenticated})
		c.mu.Unlock()

	case backend.EventTokenRefreshed:
		if ev.Session != nil && c.snap.User != nil {
			snap := c.snap
			snap.Session = ev.Session
			c.setStateLocked(snap)
		}
		c.mu.Unlock()

	case backend.EventSignedIn:
		if ev.Session == nil || ev.Session.User == nil {
			c.mu.Unlock()
			return
		}
		c.setStateLocked(Snapshot{
			Status:  StatusAuthenticated,
			User:    ev.Session.User,
			Session: ev.Session,
		})
		c.mu.Unlock()
		// One profile fetch per session-establishment event.
		go c.loadProfile(gen, ev.Session)

	default:
		c.mu.Unlock()
	}
}

// loadProfile fetches the profile for a freshly established session and
// folds it into the state, with partial-success semantics on failure.
func (c *Coordinator) loadProfile(gen uint64, sess *identity.Session) {
	profile, err := racex.Race(c.ctx, c.cfg.ProfileFetchTimeout, func(ctx context.Context) (*identity.Profile, error) {
		return c.adapter.FetchProfile(ctx, sess.AccessToken, sess.User.ID)
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		return
	}
	// The session may have been replaced while the fetch was in flight;
	// a stale result must not overwrite newer state.
	if c.snap.User == nil || c.snap.User.ID != sess.User.ID {
		return
	}

	snap := c.snap
	if err != nil {
		c.log.Warn(c.ctx, "profile fetch failed", "err", err, "user", sess.User.ID)
		snap.Status = StatusError
		snap.Err = identity.NewAuthError(identity.CodeProfileFetchFailed, "signed in, but the profile could not be loaded")
	} else {
		snap.Profile = profile
		if snap.Status != StatusError {
			snap.Status = StatusAuthenticated
		}
	}
	c.setStateLocked(snap)
}

// setStateLocked replaces the snapshot and notifies watchers. Callers hold mu.
func (c *Coordinator) setStateLocked(snap Snapshot) {
	snap.GuestAvailable = c.cfg.GuestModeEnabled && snap.Status == StatusError
	c.snap = snap
	for _, ch := range c.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// Teardown releases everything the coordinator holds: the auth-state
// subscription, pending timers, background work, and watcher channels.
// Updates from callbacks of a previous generation are discarded afterwards.
func (c *Coordinator) Teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	c.initializing = false
	if c.initTimer != nil {
		c.initTimer.Stop()
		c.initTimer = nil
	}
	sub := c.sub
	c.sub = nil
	watchers := c.watchers
	c.watchers = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	c.cancel()
	for _, ch := range watchers {
		close(ch)
	}
	if c.adapter != nil {
		if err := c.adapter.Close(); err != nil {
			c.log.Warn(context.Background(), "adapter close failed", "err", err)
		}
	}
}

// mapAuthError translates sentinel errors onto the structured taxonomy.
func mapAuthError(err error) *identity.AuthError {
	switch {
	case errors.Is(err, retryx.ErrServiceUnavailable):
		return identity.NewAuthError(identity.CodeServiceUnavailable, "the authentication service is not responding")
	case errors.Is(err, backend.ErrClientNotReady):
		return identity.NewAuthError(identity.CodeClientNotReady, "the authentication client is still starting")
	case errors.Is(err, backend.ErrInvalidCredentials):
		return identity.NewAuthError(identity.CodeInvalidCredentials, "email or password is incorrect")
	case errors.Is(err, racex.ErrDeadline):
		return identity.NewAuthError(identity.CodeTimeout, "the operation timed out")
	case errors.Is(err, backend.ErrNetwork):
		return identity.NewAuthError(identity.CodeNetworkError, "could not reach the authentication service")
	case errors.Is(err, guest.ErrStorage):
		return identity.NewAuthError(identity.CodeGuestModeError, "guest state storage failed")
	case errors.Is(err, context.Canceled):
		// Teardown artifact, not a network fault.
		return identity.NewAuthError(identity.CodeServiceUnavailable, "the operation was cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return identity.NewAuthError(identity.CodeTimeout, "the operation timed out")
	default:
		return identity.NewAuthError(identity.CodeNetworkError, "the operation failed unexpectedly")
	}
}
