package backend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskmith/authkit/internal/identity"
)

// sessionKey is the client-state key holding the persisted token pair.
const sessionKey = "backend_session"

// TokenStore persists the token pair across process restarts, so a fresh
// process restores the previous session (and renews it through the refresh
// grant) instead of forcing a new sign-in. guest.SQLiteStore satisfies it;
// a nil store means memory-only sessions.
type TokenStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// loadSession reads the persisted session. A nil store or an absent key
// yields (nil, nil).
func loadSession(ctx context.Context, store TokenStore) (*identity.Session, error) {
	if store == nil {
		return nil, nil
	}
	raw, err := store.Get(ctx, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	var s identity.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode persisted session: %w", err)
	}
	return &s, nil
}

// storeSession writes the session, or clears the key when s is nil.
func storeSession(ctx context.Context, store TokenStore, s *identity.Session) error {
	if store == nil {
		return nil
	}
	if s == nil {
		return store.Delete(ctx, sessionKey)
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return store.Set(ctx, sessionKey, raw)
}
