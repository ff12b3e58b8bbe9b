package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/Seann-Moser/afisha/storage"
)

const (
	RedirectFlagKey = "redirect"
	RedirectPathKey = "redirectPath"
	ReturnToKey     = "redirectAfterLogin"

	flagged = "true"
)

// Marker is the pending redirect left behind by the static-hosting entry shim.
type Marker struct {
	Flagged      bool
	OriginalPath string
}

// Transient wraps tab-scoped storage: the pending redirect marker and the path to restore
// after a forced login.
type Transient struct {
	kv storage.KV
}

func NewTransient(kv storage.KV) *Transient {
	return &Transient{kv: kv}
}

// MarkRedirect records a deep link that the host could not serve directly.
func (t *Transient) MarkRedirect(ctx context.Context, originalPath string) error {
	if err := t.kv.Set(ctx, RedirectPathKey, originalPath); err != nil {
		return fmt.Errorf("failed to store redirect path: %w", err)
	}
	if err := t.kv.Set(ctx, RedirectFlagKey, flagged); err != nil {
		return fmt.Errorf("failed to store redirect flag: %w", err)
	}
	return nil
}

// ConsumeRedirect reads and deletes the marker in one step. It returns nil when no redirect
// is pending, so a second call after a successful one is always a no-op. An unreadable marker
// is deleted as well and its read error returned.
func (t *Transient) ConsumeRedirect(ctx context.Context) (*Marker, error) {
	flag, err := t.kv.Get(ctx, RedirectFlagKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	var readErr error
	if err != nil {
		readErr = fmt.Errorf("failed to read redirect flag: %w", err)
	}
	path, err := t.kv.Get(ctx, RedirectPathKey)
	if err != nil && !errors.Is(err, storage.ErrNotFound) && readErr == nil {
		readErr = fmt.Errorf("failed to read redirect path: %w", err)
	}
	if err := t.kv.Delete(ctx, RedirectFlagKey, RedirectPathKey); err != nil {
		return nil, fmt.Errorf("failed to consume redirect marker: %w", err)
	}
	if readErr != nil {
		return nil, readErr
	}
	if flag != flagged {
		return nil, nil
	}
	if path == "" {
		path = "/"
	}
	return &Marker{Flagged: true, OriginalPath: path}, nil
}

// SetReturnTo remembers where to send the user once they have logged in.
func (t *Transient) SetReturnTo(ctx context.Context, path string) error {
	if err := t.kv.Set(ctx, ReturnToKey, path); err != nil {
		return fmt.Errorf("failed to store post-login target: %w", err)
	}
	return nil
}

// ReturnTo reads the post-login target without consuming it.
func (t *Transient) ReturnTo(ctx context.Context) (string, bool, error) {
	v, err := t.kv.Get(ctx, ReturnToKey)
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read post-login target: %w", err)
	}
	return v, true, nil
}

// ConsumeReturnTo returns the post-login target, or fallback when none was set, and
// deletes it.
func (t *Transient) ConsumeReturnTo(ctx context.Context, fallback string) (string, error) {
	v, ok, err := t.ReturnTo(ctx)
	if err != nil {
		return fallback, err
	}
	if !ok {
		return fallback, nil
	}
	if err := t.kv.Delete(ctx, ReturnToKey); err != nil {
		return v, fmt.Errorf("failed to delete post-login target: %w", err)
	}
	if v == "" {
		return fallback, nil
	}
	return v, nil
}
