// Package backend defines the network contract the session engine consumes:
// login, token refresh, and logout against the auth server. Everything beyond
// pass/fail/status-code is the transport's concern, not the engine's.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jrsteele09/go-auth-client/identity"
)

// Endpoint paths on the auth server. The transport guard also matches on
// these to exempt refresh and logout calls from retry-after-refresh.
const (
	PathLogin   = "/auth/login"
	PathRefresh = "/auth/refresh"
	PathLogout  = "/auth/logout"
)

// Credentials are the inputs to a password login.
type Credentials struct {
	Email       string
	Password    string
	DeviceLabel string // Human-readable device name shown in the server's session list
	Remember    bool
}

// LoginResult is a successful login response.
type LoginResult struct {
	Token     string
	ExpiresIn time.Duration // Zero when the server omitted it
	Identity  *identity.Identity
}

// RefreshResult is a successful token refresh response.
type RefreshResult struct {
	Token     string
	ExpiresIn time.Duration
}

// Client is the auth-server API consumed by the session engine.
type Client interface {
	Login(ctx context.Context, creds Credentials) (*LoginResult, error)
	Refresh(ctx context.Context, currentToken string) (*RefreshResult, error)
	Logout(ctx context.Context, currentToken string) error
}

// APIError is a non-2xx response from the auth server. Message carries the
// server's user-facing "message" field and Reason its "error" field; either
// may be empty.
type APIError struct {
	Status  int
	Message string
	Reason  string
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("auth server returned %d: %s", e.Status, e.Message)
	case e.Reason != "":
		return fmt.Sprintf("auth server returned %d: %s", e.Status, e.Reason)
	default:
		return fmt.Sprintf("auth server returned %d", e.Status)
	}
}

// IsAuthInvalid reports whether err is an APIError indicating the credential
// was rejected.
func IsAuthInvalid(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// UserMessage extracts the best user-facing message from a login failure:
// the server's message field, then its error field, then fallback.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Reason != "" {
			return apiErr.Reason
		}
	}
	return fallback
}
