package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/Seann-Moser/afisha/storage"
)

const (
	TokenKey  = "sessionToken"
	UserIDKey = "sessionUserId"
)

// TokenStore owns the persisted session credentials. Nothing here expires them; a stale
// token is only discovered when the API rejects it.
type TokenStore struct {
	kv storage.KV
}

func NewTokenStore(kv storage.KV) *TokenStore {
	return &TokenStore{kv: kv}
}

func (s *TokenStore) Save(ctx context.Context, token, userID string) error {
	if token == "" || userID == "" {
		return errors.New("session token and user id are required")
	}
	if err := s.kv.Set(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}
	if err := s.kv.Set(ctx, UserIDKey, userID); err != nil {
		return fmt.Errorf("failed to save session user id: %w", err)
	}
	return nil
}

// Read returns nil, nil when either half of the credentials is missing.
func (s *TokenStore) Read(ctx context.Context) (*Credentials, error) {
	token, err := s.get(ctx, TokenKey)
	if err != nil {
		return nil, err
	}
	userID, err := s.get(ctx, UserIDKey)
	if err != nil {
		return nil, err
	}
	creds := &Credentials{Token: token, UserID: userID}
	if !creds.Valid() {
		return nil, nil
	}
	return creds, nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, TokenKey, UserIDKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *TokenStore) get(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}
