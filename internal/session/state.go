package session

import "github.com/taskmith/authkit/internal/identity"

// Status is the coordinator's visible lifecycle state.
//
// uninitialized -> initializing -> {authenticated, unauthenticated, guest,
// error}. The initializing transition happens once, at construction; after
// that, state moves only through explicit operations or backend-pushed
// auth-state events.
type Status string

const (
	StatusUninitialized   Status = "uninitialized"
	StatusInitializing    Status = "initializing"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
	StatusGuest           Status = "guest"
	StatusError           Status = "error"
)

// Snapshot is a read-only copy of the coordinator's authoritative state.
// UI code renders from snapshots; only the coordinator writes them.
type Snapshot struct {
	Status  Status
	User    *identity.User
	Session *identity.Session
	Profile *identity.Profile
	Persona identity.Persona
	Err     *identity.AuthError

	// GuestAvailable is set on terminal errors when guest mode is enabled,
	// so the UI can offer "continue as guest" instead of a dead end.
	GuestAvailable bool
}

// Result is the discriminated outcome of a mutation operation. Callers
// render inline feedback from Err instead of wrapping calls in try/catch
// style recovery.
type Result struct {
	OK  bool
	Err *identity.AuthError

	// AuthURL carries the OAuth authorize URL for provider sign-in.
	AuthURL string

	// ConfirmationRequired marks a sign-up that succeeded but issued no
	// session because email confirmation is pending.
	ConfirmationRequired bool
}

func okResult() Result {
	return Result{OK: true}
}

func errResult(err *identity.AuthError) Result {
	return Result{Err: err}
}
