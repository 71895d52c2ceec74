package backendfakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/backend"
)

var _ backend.Client = (*FakeClient)(nil)

// FakeClient is a scriptable backend.Client. Each call either returns the
// configured result or, when a func hook is set, delegates to it.
type FakeClient struct {
	lock sync.Mutex

	LoginResult *backend.LoginResult
	LoginErr    error
	LoginFunc   func(ctx context.Context, creds backend.Credentials) (*backend.LoginResult, error)

	RefreshResult *backend.RefreshResult
	RefreshErr    error
	RefreshFunc   func(ctx context.Context, currentToken string) (*backend.RefreshResult, error)

	LogoutErr  error
	LogoutFunc func(ctx context.Context, currentToken string) error

	loginCalls   []backend.Credentials
	refreshCalls []string
	logoutCalls  []string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

func (c *FakeClient) Login(ctx context.Context, creds backend.Credentials) (*backend.LoginResult, error) {
	c.lock.Lock()
	c.loginCalls = append(c.loginCalls, creds)
	fn := c.LoginFunc
	result, err := c.LoginResult, c.LoginErr
	c.lock.Unlock()

	if fn != nil {
		return fn(ctx, creds)
	}
	return result, err
}

func (c *FakeClient) Refresh(ctx context.Context, currentToken string) (*backend.RefreshResult, error) {
	c.lock.Lock()
	c.refreshCalls = append(c.refreshCalls, currentToken)
	fn := c.RefreshFunc
	result, err := c.RefreshResult, c.RefreshErr
	c.lock.Unlock()

	if fn != nil {
		return fn(ctx, currentToken)
	}
	return result, err
}

func (c *FakeClient) Logout(ctx context.Context, currentToken string) error {
	c.lock.Lock()
	c.logoutCalls = append(c.logoutCalls, currentToken)
	fn := c.LogoutFunc
	err := c.LogoutErr
	c.lock.Unlock()

	if fn != nil {
		return fn(ctx, currentToken)
	}
	return err
}

// LoginCallCount returns how many times Login was invoked.
func (c *FakeClient) LoginCallCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.loginCalls)
}

// RefreshCallCount returns how many times Refresh was invoked.
func (c *FakeClient) RefreshCallCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.refreshCalls)
}

// RefreshCalls returns the tokens passed to each Refresh invocation.
func (c *FakeClient) RefreshCalls() []string {
	c.lock.Lock()
	defer c.lock.Unlock()
	out := make([]string, len(c.refreshCalls))
	copy(out, c.refreshCalls)
	return out
}

// LogoutCallCount returns how many times Logout was invoked.
func (c *FakeClient) LogoutCallCount() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return len(c.logoutCalls)
}
