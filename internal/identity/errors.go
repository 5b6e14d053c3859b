package identity

// ErrorCode classifies a terminal authentication failure. UI code renders on
// the code; Message and Hint are display material.
type ErrorCode string

const (
	CodeClientNotReady     ErrorCode = "client_not_ready"
	CodeTimeout            ErrorCode = "timeout"
	CodeInvalidCredentials ErrorCode = "invalid_credentials"
	CodeNetworkError       ErrorCode = "network_error"
	CodeProfileFetchFailed ErrorCode = "profile_fetch_failed"
	CodeGuestModeError     ErrorCode = "guest_mode_error"
	CodeServiceUnavailable ErrorCode = "service_unavailable"
)

// AuthError is the structured failure surfaced by the coordinator. Hint is
// optional advisory text produced by diagnostics after the fact.
type AuthError struct {
	Code    ErrorCode
	Message string
	Hint    string
}

func (e *AuthError) Error() string {
	if e.Hint != "" {
		return string(e.Code) + ": " + e.Message + " (" + e.Hint + ")"
	}
	return string(e.Code) + ": " + e.Message
}

// NewAuthError builds an AuthError without a hint.
func NewAuthError(code ErrorCode, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}
