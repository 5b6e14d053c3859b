// Package guest synthesizes fully-formed user/session/profile triples for
// guest personas without contacting any backend, and persists the chosen
// persona so it survives restarts.
package guest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/taskmith/authkit/internal/identity"
)

// ErrStorage wraps failures of the durable persona store. These indicate a
// storage or construction bug, not a user mistake.
var ErrStorage = errors.New("guest storage error")

// personaKey is the fixed storage key holding the persisted selection.
const personaKey = "guest_persona"

// guestNamespace seeds deterministic guest user ids: the same persona always
// yields the same id, across processes and machines.
var guestNamespace = uuid.MustParse("3f1f8a52-9c4e-4b6a-8d15-76c2a40ee9b1")

// guestSigningSecret signs guest access tokens. Guests never reach a real
// backend, so the secret only has to be stable, not confidential.
var guestSigningSecret = []byte("authkit-guest-mode")

const guestSessionTTL = 24 * time.Hour

// Identity is the synthesized triple for one persona.
type Identity struct {
	User    *identity.User
	Session *identity.Session
	Profile *identity.Profile
}

// Manager constructs guest identities and owns the persisted selection.
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Synthesize builds the identity triple for a persona. Pure computation:
// no storage, no network, no timers.
func (m *Manager) Synthesize(persona identity.Persona) (*Identity, error) {
	userID := uuid.NewSHA1(guestNamespace, []byte(persona)).String()

	now := time.Now()
	user := &identity.User{
		ID:               userID,
		Email:            string(persona) + "@guest.invalid",
		CreatedAt:        now,
		EmailConfirmedAt: &now,
		Metadata:         map[string]any{"guest": true, "persona": string(persona)},
	}

	token, err := identity.SignLocalToken(userID, guestSigningSecret, guestSessionTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	session := &identity.Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresAt:   now.Add(guestSessionTTL),
		User:        user,
	}

	profile := &identity.Profile{
		UserID:         userID,
		Email:          user.Email,
		FullName:       personaDisplayName(persona),
		Role:           personaRole(persona),
		Tier:           personaTier(persona),
		Preferences:    map[string]any{"theme": "system"},
		OnboardingDone: true,
	}

	return &Identity{User: user, Session: session, Profile: profile}, nil
}

// Enter synthesizes the persona identity and persists the selection.
func (m *Manager) Enter(ctx context.Context, persona identity.Persona) (*Identity, error) {
	id, err := m.Synthesize(persona)
	if err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, personaKey, []byte(persona)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return id, nil
}

// Persisted returns the previously chosen persona, if any. Called once at
// coordinator startup; a corrupt value is surfaced, not silently dropped.
func (m *Manager) Persisted(ctx context.Context) (identity.Persona, bool, error) {
	raw, err := m.store.Get(ctx, personaKey)
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if raw == nil {
		return "", false, nil
	}
	persona, err := identity.ParsePersona(string(raw))
	if err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return persona, true, nil
}

// Exit clears the persisted selection.
func (m *Manager) Exit(ctx context.Context) error {
	if err := m.store.Delete(ctx, personaKey); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func personaDisplayName(p identity.Persona) string {
	switch p {
	case identity.PersonaAdmin:
		return "Guest Admin"
	case identity.PersonaReviewer:
		return "Guest Reviewer"
	default:
		return "Guest Explorer"
	}
}

func personaRole(p identity.Persona) string {
	if p == identity.PersonaAdmin {
		return "admin"
	}
	return "member"
}

func personaTier(p identity.Persona) string {
	if p == identity.PersonaExplorer {
		return "free"
	}
	return "pro"
}
