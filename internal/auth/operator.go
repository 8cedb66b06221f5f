package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

const tokenQueryParameter = "access_token"

var (
	ErrMissingOperatorPIN = errors.New("operator authenticator: pin must be configured")
	ErrInvalidOperatorPIN = errors.New("operator authenticator: invalid pin")
	ErrMissingToken       = errors.New("request carries no bearer token")
)

// OperatorAuthenticator checks the PIN of the single on-site operator.
type OperatorAuthenticator struct {
	pin []byte
}

func NewOperatorAuthenticator(pin string) (*OperatorAuthenticator, error) {
	trimmed := strings.TrimSpace(pin)
	if trimmed == "" {
		return nil, ErrMissingOperatorPIN
	}
	return &OperatorAuthenticator{pin: []byte(trimmed)}, nil
}

// Authenticate returns the operator subject when candidate matches the configured PIN.
func (a *OperatorAuthenticator) Authenticate(candidate string) (string, error) {
	if subtle.ConstantTimeCompare(a.pin, []byte(strings.TrimSpace(candidate))) != 1 {
		return "", ErrInvalidOperatorPIN
	}
	return OperatorSubject, nil
}

// TokenFromRequest extracts a bearer token from the Authorization header, falling back to
// the access_token query parameter for clients such as EventSource that cannot set headers.
func TokenFromRequest(r *http.Request) (string, error) {
	if r == nil {
		return "", ErrMissingToken
	}
	header := r.Header.Get("Authorization")
	if header != "" {
		if !strings.HasPrefix(header, "Bearer ") {
			return "", ErrMissingToken
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" {
			return "", ErrMissingToken
		}
		return token, nil
	}
	token := strings.TrimSpace(r.URL.Query().Get(tokenQueryParameter))
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
