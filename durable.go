package afisha

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/Seann-Moser/afisha/session"
	"github.com/Seann-Moser/afisha/storage"
)

const deviceKey = "device"

// WithDeviceScoped keeps credentials in a shared backend under a per-browser device id. The
// id lives in a long-lived signed cookie and is created on first use.
func WithDeviceScoped(scope func(device string) storage.KV) Option {
	return func(a *App) error {
		a.durable = a.deviceScoped(scope)
		return nil
	}
}

func (a *App) deviceScoped(scope func(device string) storage.KV) DurableFunc {
	return func(w http.ResponseWriter, r *http.Request) (storage.KV, error) {
		cookies := session.NewCookieStore(w, r, a.opts.CookieSecret, a.cookieOptions(r, durablePrefix, a.opts.CookieMaxAge))
		device, err := cookies.Get(r.Context(), deviceKey)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				a.log.WithError(err).Warn("discarding unreadable device cookie")
			}
			device = uuid.New().String()
			if err := cookies.Set(r.Context(), deviceKey, device); err != nil {
				return nil, err
			}
		}
		return scope(device), nil
	}
}
