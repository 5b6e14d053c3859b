package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskmith/authkit/internal/identity"
	"github.com/taskmith/authkit/internal/logging"
)

// Local talks to a self-hosted identity stack: an auth endpoint for
// credential operations and a PostgREST-style data endpoint for profiles.
type Local struct {
	baseURL  string
	apiKey   string
	http     httpDoer
	sessions TokenStore
	log      logging.Logger
	hub      *Hub

	ready atomic.Bool

	mu      sync.Mutex
	session *identity.Session
}

// LocalOptions configures a Local adapter. HTTPClient may be nil; a default
// client with a 30s transport timeout is used then. Sessions may be nil;
// the session then lives only as long as the process.
type LocalOptions struct {
	BaseURL    string
	APIKey     string
	HTTPClient httpDoer
	Sessions   TokenStore
}

// NewLocal constructs the adapter and starts its warm-up probe in the
// background. Until the probe completes, Ready reports ErrClientNotReady and
// callers are expected to go through the retry controller.
func NewLocal(opts LocalOptions, log logging.Logger) *Local {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logging.Nop()
	}
	a := &Local{
		baseURL:  opts.BaseURL,
		apiKey:   opts.APIKey,
		http:     opts.HTTPClient,
		sessions: opts.Sessions,
		log:      log.With("backend", "local"),
		hub:      NewHub(),
	}
	go a.warmUp()
	return a
}

// warmUp restores the persisted session and probes the auth health route
// once. The probe outcome does not gate readiness — readiness means "the
// client finished constructing", and an unreachable backend must surface as
// a network error on the first real call, not as an endless not-ready loop.
func (a *Local) warmUp() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s, err := loadSession(ctx, a.sessions); err != nil {
		a.log.Warn(ctx, "persisted session unreadable", "err", err)
	} else if s != nil {
		a.mu.Lock()
		a.session = s
		a.mu.Unlock()
	}

	err := doJSON(ctx, a.http, http.MethodGet, a.baseURL+"/auth/health", a.headers(""), nil, nil)
	if err != nil {
		a.log.Warn(ctx, "auth health probe failed", "err", err)
	}
	a.ready.Store(true)
}

func (a *Local) Ready(_ context.Context) error {
	if !a.ready.Load() {
		return ErrClientNotReady
	}
	return nil
}

func (a *Local) headers(token string) map[string]string {
	h := map[string]string{}
	if a.apiKey != "" {
		h["apikey"] = a.apiKey
	}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h
}

func (a *Local) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	body := map[string]string{"grant_type": "password", "email": email, "password": password}

	var resp authResponse
	if err := doJSON(ctx, a.http, http.MethodPost, a.baseURL+"/auth/token", a.headers(""), body, &resp); err != nil {
		return nil, err
	}

	s := resp.session(time.Now())
	a.setSession(s)
	a.hub.Emit(AuthEvent{Type: EventSignedIn, Session: s})
	return s, nil
}

func (a *Local) SignUp(ctx context.Context, email, password, displayName string) (*identity.Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]any{"full_name": displayName},
	}

	var resp authResponse
	if err := doJSON(ctx, a.http, http.MethodPost, a.baseURL+"/auth/signup", a.headers(""), body, &resp); err != nil {
		return nil, err
	}

	// Self-hosted auth may require email confirmation before issuing tokens.
	if resp.AccessToken == "" {
		return nil, nil
	}

	s := resp.session(time.Now())
	a.setSession(s)
	a.hub.Emit(AuthEvent{Type: EventSignedIn, Session: s})
	return s, nil
}

func (a *Local) SignOut(ctx context.Context) error {
	a.mu.Lock()
	token := ""
	if a.session != nil {
		token = a.session.AccessToken
	}
	a.mu.Unlock()
	a.setSession(nil)

	if token != "" {
		if err := doJSON(ctx, a.http, http.MethodPost, a.baseURL+"/auth/logout", a.headers(token), nil, nil); err != nil {
			a.log.Warn(ctx, "server-side logout failed", "err", err)
		}
	}
	a.hub.Emit(AuthEvent{Type: EventSignedOut})
	return nil
}

func (a *Local) ResetPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return doJSON(ctx, a.http, http.MethodPost, a.baseURL+"/auth/recover", a.headers(""), body, nil)
}

// ProviderAuthURL: the self-hosted stack ships no OAuth broker.
func (a *Local) ProviderAuthURL(string) (string, error) {
	return "", ErrProviderUnsupported
}

// CurrentSession returns the session held by the adapter, refreshing it via
// the refresh token when the access token has expired. (nil, nil) means no
// session.
func (a *Local) CurrentSession(ctx context.Context) (*identity.Session, error) {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()

	if s == nil {
		return nil, nil
	}
	if !s.Expired(time.Now()) {
		return s, nil
	}
	if s.RefreshToken == "" {
		return nil, nil
	}

	body := map[string]string{"grant_type": "refresh_token", "refresh_token": s.RefreshToken}
	var resp authResponse
	if err := doJSON(ctx, a.http, http.MethodPost, a.baseURL+"/auth/token", a.headers(""), body, &resp); err != nil {
		return nil, err
	}

	fresh := resp.session(time.Now())
	if fresh.User == nil {
		fresh.User = s.User
	}
	a.setSession(fresh)
	a.hub.Emit(AuthEvent{Type: EventTokenRefreshed, Session: fresh})
	return fresh, nil
}

// FetchProfile calls the combined profile+role procedure directly over HTTP:
// one round trip instead of a profiles query plus a roles query.
func (a *Local) FetchProfile(ctx context.Context, accessToken, userID string) (*identity.Profile, error) {
	h := a.headers(accessToken)
	h["Accept"] = "application/vnd.pgrst.object+json"

	var raw json.RawMessage
	url := a.baseURL + "/rpc/get_user_profile_with_role"
	if err := doJSON(ctx, a.http, http.MethodPost, url, h, map[string]string{"p_user_id": userID}, &raw); err != nil {
		return nil, err
	}
	return decodeProfilePayload(raw)
}

func (a *Local) UpdateProfile(ctx context.Context, accessToken, userID string, patch identity.ProfilePatch) error {
	h := a.headers(accessToken)
	h["Prefer"] = "return=minimal"

	url := fmt.Sprintf("%s/profiles?id=eq.%s", a.baseURL, userID)
	return doJSON(ctx, a.http, http.MethodPatch, url, h, patch, nil)
}

func (a *Local) OnAuthStateChange(fn func(AuthEvent)) *Subscription {
	return a.hub.Subscribe(fn)
}

func (a *Local) Close() error {
	return nil
}

// setSession replaces the in-memory session and mirrors it into the durable
// store. Persistence failures are logged, not surfaced: the live session
// keeps working for this process either way.
func (a *Local) setSession(s *identity.Session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()

	ctx := context.Background()
	if err := storeSession(ctx, a.sessions, s); err != nil {
		a.log.Warn(ctx, "session persistence failed", "err", err)
	}
}

// decodeProfilePayload accepts either a single JSON object or an array whose
// first element is the profile (PostgREST returns both shapes depending on
// the Accept header).
func decodeProfilePayload(raw json.RawMessage) (*identity.Profile, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty profile response")
	}
	if raw[0] == '[' {
		var list []identity.Profile
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode profile list: %w", err)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("profile not found")
		}
		return &list[0], nil
	}
	var p identity.Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}
