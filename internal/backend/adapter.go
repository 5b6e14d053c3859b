// Package backend abstracts the two interchangeable identity backends (a
// self-hosted "local" stack and a hosted "cloud" service) behind a single
// Adapter interface, so the session coordinator above it is backend-agnostic.
package backend

import (
	"context"
	"errors"

	"github.com/taskmith/authkit/internal/identity"
)

// Sentinel failure modes surfaced to the coordinator. Match with errors.Is.
var (
	// ErrClientNotReady means the backend client has not finished its own
	// setup yet. Retryable; never shown to users unless retries run out.
	ErrClientNotReady = errors.New("backend client not ready")

	// ErrInvalidCredentials is terminal and user-correctable.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNetwork covers transport failures and backend 5xx responses.
	// Terminal but diagnosable.
	ErrNetwork = errors.New("network error")

	// ErrProviderUnsupported is returned by backends that cannot broker
	// OAuth provider sign-in.
	ErrProviderUnsupported = errors.New("oauth provider not supported")
)

// Adapter translates coordinator-level operations into backend-specific
// calls and normalizes responses into the common identity shapes.
//
// All methods honor context cancellation. CurrentSession returns (nil, nil)
// when the backend holds no session — absence is not an error.
type Adapter interface {
	// Ready reports whether the client can serve calls. Returns
	// ErrClientNotReady while setup is still in flight.
	Ready(ctx context.Context) error

	SignIn(ctx context.Context, email, password string) (*identity.Session, error)
	SignUp(ctx context.Context, email, password, displayName string) (*identity.Session, error)
	SignOut(ctx context.Context) error
	ResetPassword(ctx context.Context, email string) error

	// ProviderAuthURL builds the OAuth authorize URL for the named
	// provider. The caller is responsible for the redirect.
	ProviderAuthURL(provider string) (string, error)

	CurrentSession(ctx context.Context) (*identity.Session, error)

	FetchProfile(ctx context.Context, accessToken, userID string) (*identity.Profile, error)
	UpdateProfile(ctx context.Context, accessToken, userID string, patch identity.ProfilePatch) error

	// OnAuthStateChange registers fn for session transitions pushed by the
	// backend (sign-in, sign-out, token refresh). The returned subscription
	// must be released via Unsubscribe.
	OnAuthStateChange(fn func(AuthEvent)) *Subscription

	Close() error
}
