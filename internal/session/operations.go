package session

import (
	"context"

	"github.com/taskmith/authkit/internal/identity"
	"github.com/taskmith/authkit/internal/racex"
)

// Mutation operations. None of them re-run initialization: they delegate to
// the backend adapter and let the auth-state subscription propagate the
// resulting transition. Failures come back as Results so callers can render
// inline feedback.

// SignIn authenticates with email and password.
func (c *Coordinator) SignIn(ctx context.Context, email, password string) Result {
	if r, ok := c.precheck(ctx); !ok {
		return r
	}

	if _, err := c.adapter.SignIn(ctx, email, password); err != nil {
		return errResult(mapAuthError(err))
	}
	c.clearErrorState()
	return okResult()
}

// SignUp creates an account. When the backend withholds tokens pending email
// confirmation, the result says so and no session is established.
func (c *Coordinator) SignUp(ctx context.Context, email, password, displayName string) Result {
	if r, ok := c.precheck(ctx); !ok {
		return r
	}

	sess, err := c.adapter.SignUp(ctx, email, password, displayName)
	if err != nil {
		return errResult(mapAuthError(err))
	}
	c.clearErrorState()
	if sess == nil {
		return Result{OK: true, ConfirmationRequired: true}
	}
	return okResult()
}

// SignOut ends the current session regardless of which path (guest or
// backend) produced it. The resulting state always has user, session,
// profile and error all cleared.
func (c *Coordinator) SignOut(ctx context.Context) Result {
	c.mu.Lock()
	persona := c.snap.Persona
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errResult(identity.NewAuthError(identity.CodeServiceUnavailable, "coordinator is torn down"))
	}

	if persona != "" {
		if err := c.guests.Exit(ctx); err != nil {
			return errResult(mapAuthError(err))
		}
	} else {
		if err := c.adapter.SignOut(ctx); err != nil {
			return errResult(mapAuthError(err))
		}
	}

	c.mu.Lock()
	c.setStateLocked(Snapshot{Status: StatusUnauthenticated})
	c.mu.Unlock()
	return okResult()
}

// SignInWithProvider starts an OAuth flow. The library cannot perform the
// browser redirect itself, so the authorize URL rides back on the result.
func (c *Coordinator) SignInWithProvider(ctx context.Context, provider string) Result {
	if r, ok := c.precheck(ctx); !ok {
		return r
	}

	url, err := c.adapter.ProviderAuthURL(provider)
	if err != nil {
		return errResult(mapAuthError(err))
	}
	return Result{OK: true, AuthURL: url}
}

// ResetPassword requests a password-reset email.
func (c *Coordinator) ResetPassword(ctx context.Context, email string) Result {
	if r, ok := c.precheck(ctx); !ok {
		return r
	}

	if err := c.adapter.ResetPassword(ctx, email); err != nil {
		return errResult(mapAuthError(err))
	}
	return okResult()
}

// UpdateProfile patches the profile and then refreshes it explicitly — one
// fetch per profile-mutating operation.
func (c *Coordinator) UpdateProfile(ctx context.Context, patch identity.ProfilePatch) Result {
	c.mu.Lock()
	sess := c.snap.Session
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errResult(identity.NewAuthError(identity.CodeServiceUnavailable, "coordinator is torn down"))
	}
	if sess == nil || sess.User == nil {
		return errResult(identity.NewAuthError(identity.CodeInvalidCredentials, "not signed in"))
	}

	if err := c.adapter.UpdateProfile(ctx, sess.AccessToken, sess.User.ID, patch); err != nil {
		return errResult(mapAuthError(err))
	}
	return c.RefreshProfile(ctx)
}

// RefreshProfile re-fetches the profile for the current session.
func (c *Coordinator) RefreshProfile(ctx context.Context) Result {
	c.mu.Lock()
	sess := c.snap.Session
	gen := c.generation
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errResult(identity.NewAuthError(identity.CodeServiceUnavailable, "coordinator is torn down"))
	}
	if sess == nil || sess.User == nil {
		return errResult(identity.NewAuthError(identity.CodeInvalidCredentials, "not signed in"))
	}

	profile, err := racex.Race(ctx, c.cfg.ProfileFetchTimeout, func(ctx context.Context) (*identity.Profile, error) {
		return c.adapter.FetchProfile(ctx, sess.AccessToken, sess.User.ID)
	})
	if err != nil {
		return errResult(identity.NewAuthError(identity.CodeProfileFetchFailed, "profile could not be loaded"))
	}

	c.mu.Lock()
	if !c.closed && gen == c.generation && c.snap.User != nil && c.snap.User.ID == sess.User.ID {
		snap := c.snap
		snap.Profile = profile
		c.setStateLocked(snap)
	}
	c.mu.Unlock()
	return okResult()
}

// EnterGuestMode synthesizes the persona identity, persists the selection
// and moves to the guest state.
func (c *Coordinator) EnterGuestMode(ctx context.Context, persona identity.Persona) Result {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errResult(identity.NewAuthError(identity.CodeServiceUnavailable, "coordinator is torn down"))
	}
	if !c.cfg.GuestModeEnabled || c.guests == nil {
		return errResult(identity.NewAuthError(identity.CodeGuestModeError, "guest mode is disabled"))
	}
	if _, err := identity.ParsePersona(string(persona)); err != nil {
		return errResult(identity.NewAuthError(identity.CodeGuestModeError, err.Error()))
	}

	id, err := c.guests.Enter(ctx, persona)
	if err != nil {
		return errResult(mapAuthError(err))
	}

	c.mu.Lock()
	c.setStateLocked(Snapshot{
		Status:  StatusGuest,
		User:    id.User,
		Session: id.Session,
		Profile: id.Profile,
		Persona: persona,
	})
	c.mu.Unlock()
	return okResult()
}

// ExitGuestMode clears the persisted selection and the guest identity.
func (c *Coordinator) ExitGuestMode(ctx context.Context) Result {
	c.mu.Lock()
	persona := c.snap.Persona
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errResult(identity.NewAuthError(identity.CodeServiceUnavailable, "coordinator is torn down"))
	}
	if persona == "" {
		return errResult(identity.NewAuthError(identity.CodeGuestModeError, "not in guest mode"))
	}

	if err := c.guests.Exit(ctx); err != nil {
		return errResult(mapAuthError(err))
	}

	c.mu.Lock()
	c.setStateLocked(Snapshot{Status: StatusUnauthenticated})
	c.mu.Unlock()
	return okResult()
}

// ClearError drops the surfaced error and settles the status back onto
// whatever the remaining state supports.
func (c *Coordinator) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.snap.Err == nil {
		return
	}

	snap := c.snap
	snap.Err = nil
	switch {
	case snap.Persona != "":
		snap.Status = StatusGuest
	case snap.User != nil:
		snap.Status = StatusAuthenticated
	default:
		snap.Status = StatusUnauthenticated
	}
	c.setStateLocked(snap)
}

// precheck gates mutation operations on liveness and backend readiness.
// Readiness failures are recovered via the retry controller; only an
// exhausted budget reaches the caller.
func (c *Coordinator) precheck(ctx context.Context) (Result, bool) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errResult(identity.NewAuthError(identity.CodeServiceUnavailable, "coordinator is torn down")), false
	}

	if err := c.retry.AwaitReady(ctx, c.adapter.Ready); err != nil {
		return errResult(mapAuthError(err)), false
	}
	return Result{}, true
}

// clearErrorState drops a stale error after a successful operation.
func (c *Coordinator) clearErrorState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap.Err != nil {
		snap := c.snap
		snap.Err = nil
		c.setStateLocked(snap)
	}
}
