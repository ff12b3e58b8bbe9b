package apiclient

import (
	"context"

	"github.com/Seann-Moser/afisha/session"
)

// MockClient provides customizable hooks for testing code that depends on API.
type MockClient struct {
	RegisterFunc       func(ctx context.Context, req RegisterRequest) error
	LoginFunc          func(ctx context.Context, email, password string) (*session.Credentials, error)
	GetActiveLoginFunc func(ctx context.Context) (*session.User, error)
	LogoutFunc         func(ctx context.Context) error
}

// Ensure MockClient implements API
var _ API = (*MockClient)(nil)

// Register calls RegisterFunc if set, otherwise returns nil
func (m *MockClient) Register(ctx context.Context, req RegisterRequest) error {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, req)
	}
	return nil
}

// Login calls LoginFunc if set, otherwise returns an auth error
func (m *MockClient) Login(ctx context.Context, email, password string) (*session.Credentials, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, &Error{Kind: ErrAuth}
}

// GetActiveLogin calls GetActiveLoginFunc if set, otherwise returns an auth error
func (m *MockClient) GetActiveLogin(ctx context.Context) (*session.User, error) {
	if m.GetActiveLoginFunc != nil {
		return m.GetActiveLoginFunc(ctx)
	}
	return nil, &Error{Kind: ErrAuth}
}

// Logout calls LogoutFunc if set, otherwise returns nil
func (m *MockClient) Logout(ctx context.Context) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx)
	}
	return nil
}
