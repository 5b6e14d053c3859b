package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taskmith/authkit/internal/identity"
)

type memTokenStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{m: make(map[string][]byte)}
}

func (s *memTokenStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}

func (s *memTokenStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *memTokenStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}

// deadDoer fails every request, simulating an unreachable backend.
type deadDoer struct{}

func (deadDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func seedSession(t *testing.T, store TokenStore, expiresAt time.Time) *identity.Session {
	t.Helper()
	s := &identity.Session{
		AccessToken:  "token-old",
		RefreshToken: "refresh-old",
		TokenType:    "bearer",
		ExpiresAt:    expiresAt,
		User:         &identity.User{ID: "user-1", Email: "alice@example.com"},
	}
	require.NoError(t, storeSession(context.Background(), store, s))
	return s
}

func TestLocalCurrentSession_RestoresPersisted(t *testing.T) {
	store := newMemTokenStore()
	seedSession(t, store, time.Now().Add(time.Hour))

	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	a := NewLocal(LocalOptions{BaseURL: srv.URL, HTTPClient: srv.Client(), Sessions: store}, nil)
	awaitReady(t, a)

	s, err := a.CurrentSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "user-1", s.User.ID)
	require.Equal(t, "token-old", s.AccessToken)

	// The unexpired session needed no token traffic.
	_, ok := rec.find(http.MethodPost, "/auth/token")
	require.False(t, ok)
}

func TestLocalCurrentSession_RefreshesRestoredExpired(t *testing.T) {
	store := newMemTokenStore()
	seedSession(t, store, time.Now().Add(-time.Hour))

	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		if r.URL.Path == "/auth/token" {
			payload := authPayload("user-1")
			payload["access_token"] = "token-fresh"
			_ = json.NewEncoder(w).Encode(payload)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	a := NewLocal(LocalOptions{BaseURL: srv.URL, HTTPClient: srv.Client(), Sessions: store}, nil)
	awaitReady(t, a)

	s, err := a.CurrentSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-fresh", s.AccessToken)

	req, ok := rec.find(http.MethodPost, "/auth/token")
	require.True(t, ok)
	require.Equal(t, "refresh_token", req.Body["grant_type"])
	require.Equal(t, "refresh-old", req.Body["refresh_token"])

	// The renewed pair replaced the persisted one.
	persisted, err := loadSession(context.Background(), store)
	require.NoError(t, err)
	require.Equal(t, "token-fresh", persisted.AccessToken)
}

func TestLocalCurrentSession_UnreachableBackendIsNetworkError(t *testing.T) {
	store := newMemTokenStore()
	seedSession(t, store, time.Now().Add(-time.Hour))

	a := NewLocal(LocalOptions{BaseURL: "http://127.0.0.1:1", HTTPClient: deadDoer{}, Sessions: store}, nil)
	awaitReady(t, a)

	// The restored session is expired, so the check must hit the network
	// and surface the failure instead of silently reporting no session.
	_, err := a.CurrentSession(context.Background())
	require.ErrorIs(t, err, ErrNetwork)
}

func TestLocalSignInAndOut_PersistLifecycle(t *testing.T) {
	store := newMemTokenStore()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/token" {
			_ = json.NewEncoder(w).Encode(authPayload("user-1"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	a := NewLocal(LocalOptions{BaseURL: srv.URL, HTTPClient: srv.Client(), Sessions: store}, nil)
	awaitReady(t, a)

	_, err := a.SignIn(context.Background(), "alice@example.com", "hunter2")
	require.NoError(t, err)

	persisted, err := loadSession(context.Background(), store)
	require.NoError(t, err)
	require.Equal(t, "token-abc", persisted.AccessToken)

	require.NoError(t, a.SignOut(context.Background()))

	persisted, err = loadSession(context.Background(), store)
	require.NoError(t, err)
	require.Nil(t, persisted)
}

func TestCloudCurrentSession_RestoresPersisted(t *testing.T) {
	store := newMemTokenStore()
	seedSession(t, store, time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	a := NewCloud(CloudOptions{BaseURL: srv.URL, APIKey: "anon", HTTPClient: srv.Client(), Sessions: store}, nil)
	awaitReady(t, a)

	s, err := a.CurrentSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "user-1", s.User.ID)
}
