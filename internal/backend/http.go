package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taskmith/authkit/internal/identity"
)

// authResponse is the token payload both backends return on sign-in/sign-up.
type authResponse struct {
	AccessToken  string         `json:"access_token"`
	RefreshToken string         `json:"refresh_token"`
	TokenType    string         `json:"token_type"`
	ExpiresIn    int64          `json:"expires_in"`
	User         *identity.User `json:"user"`
}

// session converts the wire payload into an identity.Session, deriving the
// absolute expiry from expires_in or, failing that, from the token's own
// exp claim.
func (r *authResponse) session(now time.Time) *identity.Session {
	s := &identity.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		User:         r.User,
	}
	if s.TokenType == "" {
		s.TokenType = "bearer"
	}
	if r.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	} else if exp, err := identity.TokenExpiry(r.AccessToken); err == nil {
		s.ExpiresAt = exp
	}
	return s
}

// apiError is the error body shape shared by both backends.
type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
}

func (e *apiError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Message, e.Msg, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// httpDoer is the subset of *http.Client the adapters need; swapped in tests.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// doJSON sends a JSON request and decodes a JSON response into out (when out
// is non-nil). Transport failures map to ErrNetwork; status codes map
// through mapStatus.
func doJSON(ctx context.Context, c httpDoer, method, url string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return mapStatus(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mapStatus normalizes an error response onto the sentinel taxonomy.
func mapStatus(resp *http.Response) error {
	var ae apiError
	_ = json.NewDecoder(resp.Body).Decode(&ae)
	detail := ae.text()

	switch {
	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusBadRequest && detail == "invalid_grant":
		if detail != "" {
			return fmt.Errorf("%w: %s", ErrInvalidCredentials, detail)
		}
		return ErrInvalidCredentials
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: backend returned %s", ErrNetwork, resp.Status)
	default:
		if detail != "" {
			return fmt.Errorf("backend error %d: %s", resp.StatusCode, detail)
		}
		return fmt.Errorf("backend error %d", resp.StatusCode)
	}
}
