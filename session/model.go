package session

import (
	"context"
	"errors"
)

type contextKey string

const (
	userKey contextKey = "CURRENT_USER"
)

// Credentials is the opaque token and user id pair that proves a session to the API.
type Credentials struct {
	Token  string `json:"sessionToken"`
	UserID string `json:"sessionUserId"`
}

// Valid reports whether both halves are present. A request is only decorated with
// credentials when both are set.
func (c *Credentials) Valid() bool {
	return c != nil && c.Token != "" && c.UserID != ""
}

// User is the signed-in account as reported by the API's active-login endpoint.
type User struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// WithContext attaches the user to ctx
func (u *User) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, userKey, u)
}

func UserFromContext(ctx context.Context) (*User, error) {
	v := ctx.Value(userKey)
	if v == nil {
		return nil, errors.New("no user in context")
	}
	u, ok := v.(*User)
	if !ok {
		return nil, errors.New("invalid user type in context")
	}
	return u, nil
}
