package auth

import (
	"context"
	"errors"
)

type contextKey string

const managerKey contextKey = "AUTH_MANAGER"

// WithManager attaches m to ctx so handlers share the instance instead of building their own.
func WithManager(ctx context.Context, m *Manager) context.Context {
	return context.WithValue(ctx, managerKey, m)
}

func FromContext(ctx context.Context) (*Manager, error) {
	m, ok := ctx.Value(managerKey).(*Manager)
	if !ok || m == nil {
		return nil, errors.New("auth manager not found in context")
	}
	return m, nil
}
