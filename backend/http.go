package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/identity"
)

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient sets the underlying *http.Client. Hosts that want automatic
// retry-after-refresh pass a client whose Transport is a transport.Guard.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		c.httpClient = hc
	}
}

// NewHTTPClient creates an HTTPClient for the auth server at baseURL.
func NewHTTPClient(baseURL string, options ...HTTPOption) (*HTTPClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, pkgerrors.New("[backend.NewHTTPClient] baseURL is required")
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

type loginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DeviceLabel string `json:"device_label,omitempty"`
	Remember    bool   `json:"remember"`
}

type loginResponse struct {
	Token       string                `json:"token"`
	ExpiresIn   int64                 `json:"expires_in"` // Seconds
	User        *identity.User        `json:"user"`
	Tenant      *identity.Tenant      `json:"tenant"`
	Permissions []identity.Permission `json:"permissions"`
}

type refreshResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // Seconds
}

type errorResponse struct {
	Message string `json:"message"`
	Reason  string `json:"error"`
}

// Login exchanges credentials for a token and identity snapshot.
func (c *HTTPClient) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var resp loginResponse
	err := c.post(ctx, PathLogin, "", loginRequest{
		Email:       creds.Email,
		Password:    creds.Password,
		DeviceLabel: creds.DeviceLabel,
		Remember:    creds.Remember,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("backend.Login: %w", err)
	}
	return &LoginResult{
		Token:     resp.Token,
		ExpiresIn: time.Duration(resp.ExpiresIn) * time.Second,
		Identity: &identity.Identity{
			User:        resp.User,
			Tenant:      resp.Tenant,
			Permissions: resp.Permissions,
		},
	}, nil
}

// Refresh exchanges the current token for a fresh one.
func (c *HTTPClient) Refresh(ctx context.Context, currentToken string) (*RefreshResult, error) {
	var resp refreshResponse
	if err := c.post(ctx, PathRefresh, currentToken, struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("backend.Refresh: %w", err)
	}
	return &RefreshResult{
		Token:     resp.Token,
		ExpiresIn: time.Duration(resp.ExpiresIn) * time.Second,
	}, nil
}

// Logout invalidates the token server-side. Callers treat failure as
// non-blocking: the local session is cleared regardless.
func (c *HTTPClient) Logout(ctx context.Context, currentToken string) error {
	if err := c.post(ctx, PathLogout, currentToken, struct{}{}, nil); err != nil {
		return fmt.Errorf("backend.Logout: %w", err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path, bearer string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(raw) > 0 {
		var body errorResponse
		if err := json.Unmarshal(raw, &body); err == nil {
			apiErr.Message = body.Message
			apiErr.Reason = body.Reason
		}
	}
	return apiErr
}
