package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/Seann-Moser/afisha/storage"
	"github.com/Seann-Moser/afisha/utils"
)

var SameSite = http.SameSiteLaxMode

// CookieOptions controls how a CookieStore writes cookies.
type CookieOptions struct {
	// Prefix is prepended to every key to form the cookie name.
	Prefix string
	// MaxAge of zero writes session cookies, which the browser drops when it closes.
	MaxAge time.Duration
	Secure bool
	// UseDomain scopes cookies to the registrable domain of the request origin.
	UseDomain bool
}

var _ storage.KV = (*CookieStore)(nil)

// CookieStore is a per-request key-value store kept in signed cookies. Writes are visible
// to later reads in the same request before the response reaches the browser.
type CookieStore struct {
	w      http.ResponseWriter
	r      *http.Request
	secret []byte
	opts   CookieOptions

	mu      sync.Mutex
	pending map[string]*string
}

func NewCookieStore(w http.ResponseWriter, r *http.Request, secret []byte, opts CookieOptions) *CookieStore {
	return &CookieStore{
		w:       w,
		r:       r,
		secret:  secret,
		opts:    opts,
		pending: make(map[string]*string),
	}
}

func (c *CookieStore) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.pending[key]; ok {
		if v == nil {
			return "", storage.ErrNotFound
		}
		return *v, nil
	}
	ck, err := c.r.Cookie(c.opts.Prefix + key)
	if errors.Is(err, http.ErrNoCookie) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return verify(ck.Value, c.secret)
}

func (c *CookieStore) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := value
	c.pending[key] = &v
	ck := c.cookie(key, sign(value, c.secret))
	if c.opts.MaxAge > 0 {
		ck.MaxAge = int(c.opts.MaxAge.Seconds())
		ck.Expires = time.Now().Add(c.opts.MaxAge)
	}
	http.SetCookie(c.w, ck)
	return nil
}

func (c *CookieStore) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.pending[key] = nil
		ck := c.cookie(key, "")
		ck.MaxAge = -1
		ck.Expires = time.Unix(0, 0)
		http.SetCookie(c.w, ck)
	}
	return nil
}

func (c *CookieStore) cookie(key, value string) *http.Cookie {
	ck := &http.Cookie{
		Name:     c.opts.Prefix + key,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.opts.Secure,
		SameSite: SameSite,
	}
	if c.opts.UseDomain {
		ck.Domain = utils.CookieDomain(c.r)
	}
	return ck
}
