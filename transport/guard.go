// Package transport provides the interceptor that sits on every outgoing
// authenticated request: it attaches the current token, and on an
// auth-invalid response decides between triggering the refresh coordinator,
// bypassing it (refresh/logout endpoints), or propagating the failure.
package transport

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/backend"
	"github.com/jrsteele09/go-auth-client/refresh"
	"github.com/jrsteele09/go-auth-client/session"
)

const headerRequestID = "X-Request-ID"

// retriedKey marks a request that has already been retried once after a
// refresh, so a server that keeps rejecting cannot cause a retry loop.
type retriedKey struct{}

// Guard is an http.RoundTripper implementing the retry-after-refresh policy.
// Wrap it into the http.Client used for authenticated API calls:
//
//	client := &http.Client{Transport: guard}
type Guard struct {
	base        http.RoundTripper
	runtime     *session.Store
	refresher   *refresh.Coordinator
	logger      zerolog.Logger
	exemptPaths []string
}

var _ http.RoundTripper = (*Guard)(nil)

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the guard's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithBase sets the underlying RoundTripper (default http.DefaultTransport).
func WithBase(rt http.RoundTripper) Option {
	return func(g *Guard) {
		g.base = rt
	}
}

// WithExemptPaths overrides the request paths that must never trigger a
// refresh. Defaults to the refresh and logout endpoints: a refresh call
// rejecting its own credential is terminal, and a logout call may
// legitimately fail with an already-invalidated token.
func WithExemptPaths(paths ...string) Option {
	return func(g *Guard) {
		g.exemptPaths = paths
	}
}

// NewGuard creates a Guard over the given runtime store and coordinator.
func NewGuard(runtime *session.Store, refresher *refresh.Coordinator, options ...Option) (*Guard, error) {
	if runtime == nil {
		return nil, pkgerrors.New("[NewGuard] runtime session store is required")
	}
	if refresher == nil {
		return nil, pkgerrors.New("[NewGuard] refresh coordinator is required")
	}

	g := &Guard{
		base:        http.DefaultTransport,
		runtime:     runtime,
		refresher:   refresher,
		logger:      zerolog.Nop(),
		exemptPaths: []string{backend.PathRefresh, backend.PathLogout},
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// RoundTrip attaches the runtime token (a synchronous read, no I/O) and
// applies the §refresh policy on a 401: exempt endpoints and already-retried
// requests propagate the response; everything else refreshes once and retries
// once with the new token.
func (g *Guard) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	if out.Header.Get("Authorization") == "" {
		if tok := g.runtime.Snapshot().Token; tok != "" {
			out.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	if out.Header.Get(headerRequestID) == "" {
		out.Header.Set(headerRequestID, uuid.NewString())
	}

	resp, err := g.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if g.exempt(req.URL.Path) {
		return resp, nil
	}
	if req.Context().Value(retriedKey{}) != nil {
		g.logger.Debug().Str("path", req.URL.Path).Msg("still unauthorized after refresh, giving up")
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		// The body was consumed by the first attempt and cannot be
		// replayed, so a retry is impossible.
		return resp, nil
	}

	newToken, refreshErr := g.refresher.Refresh(req.Context())
	if refreshErr != nil {
		// The coordinator has already torn the session down; the caller
		// sees the original auth failure.
		return resp, nil
	}
	resp.Body.Close()

	retry := req.Clone(context.WithValue(req.Context(), retriedKey{}, true))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, pkgerrors.Wrap(err, "[Guard.RoundTrip] replaying request body")
		}
		retry.Body = body
	}
	retry.Header.Set("Authorization", "Bearer "+newToken)
	if retry.Header.Get(headerRequestID) == "" {
		retry.Header.Set(headerRequestID, uuid.NewString())
	}
	g.logger.Debug().Str("path", req.URL.Path).Msg("retrying request with refreshed token")
	return g.base.RoundTrip(retry)
}

func (g *Guard) exempt(path string) bool {
	for _, p := range g.exemptPaths {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}
