package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taskmith/authkit/internal/identity"
	"github.com/taskmith/authkit/internal/logging"
)

// Cloud delegates to the hosted auth+REST service. Credential operations go
// through the hosted auth API; the profile comes back from a single
// remote-procedure call that bundles profile and role in one round trip.
type Cloud struct {
	baseURL     string
	apiKey      string
	redirectURL string
	http        httpDoer
	sessions    TokenStore
	log         logging.Logger
	hub         *Hub

	ready atomic.Bool

	mu      sync.Mutex
	session *identity.Session
}

// CloudOptions configures a Cloud adapter. Sessions may be nil; the session
// then lives only as long as the process.
type CloudOptions struct {
	BaseURL     string
	APIKey      string
	RedirectURL string
	HTTPClient  httpDoer
	Sessions    TokenStore
}

func NewCloud(opts CloudOptions, log logging.Logger) *Cloud {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logging.Nop()
	}
	a := &Cloud{
		baseURL:     opts.BaseURL,
		apiKey:      opts.APIKey,
		redirectURL: opts.RedirectURL,
		http:        opts.HTTPClient,
		sessions:    opts.Sessions,
		log:         log.With("backend", "cloud"),
		hub:         NewHub(),
	}
	go a.warmUp()
	return a
}

// warmUp restores the persisted session and probes the health route; the
// probe outcome does not gate readiness (see Local.warmUp).
func (a *Cloud) warmUp() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s, err := loadSession(ctx, a.sessions); err != nil {
		a.log.Warn(ctx, "persisted session unreadable", "err", err)
	} else if s != nil {
		a.mu.Lock()
		a.session = s
		a.mu.Unlock()
	}

	err := doJSON(ctx, a.http, http.MethodGet, a.baseURL+"/auth/v1/health", a.headers(""), nil, nil)
	if err != nil {
		a.log.Warn(ctx, "auth health probe failed", "err", err)
	}
	a.ready.Store(true)
}

func (a *Cloud) Ready(_ context.Context) error {
	if !a.ready.Load() {
		return ErrClientNotReady
	}
	return nil
}

func (a *Cloud) headers(token string) map[string]string {
	h := map[string]string{"apikey": a.apiKey}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h
}

func (a *Cloud) SignIn(ctx context.Context, email, password string) (*identity.Session, error) {
	body := map[string]string{"email": email, "password": password}

	var resp authResponse
	url := a.baseURL + "/auth/v1/token?grant_type=password"
	if err := doJSON(ctx, a.http, http.MethodPost, url, a.headers(""), body, &resp); err != nil {
		return nil, err
	}

	s := resp.session(time.Now())
	a.setSession(s)
	a.hub.Emit(AuthEvent{Type: EventSignedIn, Session: s})
	return s, nil
}

func (a *Cloud) SignUp(ctx context.Context, email, password, displayName string) (*identity.Session, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data":     map[string]any{"full_name": displayName},
	}

	var resp authResponse
	if err := doJSON(ctx, a.http, http.MethodPost, a.baseURL+"/auth/v1/signup", a.headers(""), body, &resp); err != nil {
		return nil, err
	}

	// Hosted auth withholds tokens when email confirmation is pending.
	if resp.AccessToken == "" {
		return nil, nil
	}

	s := resp.session(time.Now())
	a.setSession(s)
	a.hub.Emit(AuthEvent{Type: EventSignedIn, Session: s})
	return s, nil
}

func (a *Cloud) SignOut(ctx context.Context) error {
	a.mu.Lock()
	token := ""
	if a.session != nil {
		token = a.session.AccessToken
	}
	a.mu.Unlock()
	a.setSession(nil)

	if token != "" {
		if err := doJSON(ctx, a.http, http.MethodPost, a.baseURL+"/auth/v1/logout", a.headers(token), nil, nil); err != nil {
			a.log.Warn(ctx, "server-side logout failed", "err", err)
		}
	}
	a.hub.Emit(AuthEvent{Type: EventSignedOut})
	return nil
}

func (a *Cloud) ResetPassword(ctx context.Context, email string) error {
	body := map[string]string{"email": email}
	return doJSON(ctx, a.http, http.MethodPost, a.baseURL+"/auth/v1/recover", a.headers(""), body, nil)
}

// ProviderAuthURL builds the hosted authorize URL. The library cannot drive
// a browser redirect itself; the caller renders or opens the URL.
func (a *Cloud) ProviderAuthURL(provider string) (string, error) {
	if provider == "" {
		return "", fmt.Errorf("%w: empty provider name", ErrProviderUnsupported)
	}
	q := url.Values{"provider": {provider}}
	if a.redirectURL != "" {
		q.Set("redirect_to", a.redirectURL)
	}
	return a.baseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

func (a *Cloud) CurrentSession(ctx context.Context) (*identity.Session, error) {
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

	body := map[string]string{"refresh_token": s.RefreshToken}
	var resp authResponse
	url := a.baseURL + "/auth/v1/token?grant_type=refresh_token"
	if err := doJSON(ctx, a.http, http.MethodPost, url, a.headers(""), body, &resp); err != nil {
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

func (a *Cloud) FetchProfile(ctx context.Context, accessToken, userID string) (*identity.Profile, error) {
	h := a.headers(accessToken)
	h["Accept"] = "application/vnd.pgrst.object+json"

	var raw json.RawMessage
	url := a.baseURL + "/rest/v1/rpc/get_user_profile_with_role"
	if err := doJSON(ctx, a.http, http.MethodPost, url, h, map[string]string{"p_user_id": userID}, &raw); err != nil {
		return nil, err
	}
	return decodeProfilePayload(raw)
}

func (a *Cloud) UpdateProfile(ctx context.Context, accessToken, userID string, patch identity.ProfilePatch) error {
	h := a.headers(accessToken)
	h["Prefer"] = "return=minimal"

	url := fmt.Sprintf("%s/rest/v1/profiles?id=eq.%s", a.baseURL, userID)
	return doJSON(ctx, a.http, http.MethodPatch, url, h, patch, nil)
}

func (a *Cloud) OnAuthStateChange(fn func(AuthEvent)) *Subscription {
	return a.hub.Subscribe(fn)
}

func (a *Cloud) Close() error {
	return nil
}

// setSession replaces the in-memory session and mirrors it into the durable
// store; persistence failures are logged, not surfaced.
func (a *Cloud) setSession(s *identity.Session) {
	a.mu.Lock()
	a.session = s
	a.mu.Unlock()

	ctx := context.Background()
	if err := storeSession(ctx, a.sessions, s); err != nil {
		a.log.Warn(ctx, "session persistence failed", "err", err)
	}
}
