// Package identity defines the data model shared by the session coordinator
// and the identity backends: users, sessions, profiles, guest personas and
// the structured error taxonomy.
package identity

import "time"

// User is the identity record issued by a backend. It is immutable once
// issued; re-authentication replaces it wholesale.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	CreatedAt        time.Time      `json:"created_at"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	Metadata         map[string]any `json:"user_metadata,omitempty"`
}

// Session holds the token pair for an authenticated user. Sessions are never
// mutated in place; any token refresh or re-authentication produces a new
// value.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         *User     `json:"user"`
}

// Expired reports whether the session's access token is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Profile is the application-specific record derived from a user: role,
// subscription tier, preferences. It is fetched lazily once a session is
// established and refreshed explicitly after profile-mutating operations.
type Profile struct {
	UserID         string         `json:"id"`
	Email          string         `json:"email"`
	FullName       string         `json:"full_name"`
	Role           string         `json:"role"`
	Tier           string         `json:"subscription_tier"`
	Preferences    map[string]any `json:"preferences,omitempty"`
	OnboardingDone bool           `json:"onboarding_completed"`
}

// ProfilePatch carries the mutable profile fields for an update. Nil fields
// are left untouched.
type ProfilePatch struct {
	FullName       *string        `json:"full_name,omitempty"`
	Preferences    map[string]any `json:"preferences,omitempty"`
	OnboardingDone *bool          `json:"onboarding_completed,omitempty"`
}
