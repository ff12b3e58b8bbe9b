// Package afisha hosts the app shell over HTTP. Every page request restores the session from
// cookies, replays a recovered deep link and applies the route guard before the page renders.
package afisha

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/Seann-Moser/afisha/apiclient"
	"github.com/Seann-Moser/afisha/auth"
	"github.com/Seann-Moser/afisha/route"
	"github.com/Seann-Moser/afisha/session"
	"github.com/Seann-Moser/afisha/storage"
)

const (
	durablePrefix   = "afisha_"
	transientPrefix = "afisha_tab_"

	DefaultCookieMaxAge = 30 * 24 * time.Hour
)

// Options configure an App.
type Options struct {
	APIBaseURL     string
	APITimeout     time.Duration
	RestoreTimeout time.Duration
	LandingPath    string
	LoginPath      string
	// EntryPath is where the entry shim sends deep links it cannot serve.
	EntryPath string
	// ShimDeepLinks routes every page other than EntryPath through the entry shim, the way a
	// static host without rewrites would.
	ShimDeepLinks bool
	CookieSecret  []byte
	CookieDomain  bool
	CookieMaxAge  time.Duration
}

// DurableFunc returns the durable store for one request.
type DurableFunc func(w http.ResponseWriter, r *http.Request) (storage.KV, error)

type App struct {
	opts         Options
	log          logrus.FieldLogger
	httpClient   *http.Client
	durable      DurableFunc
	authMetrics  *auth.Metrics
	routeMetrics *route.Metrics
}

type Option func(*App) error

func WithLogger(l logrus.FieldLogger) Option {
	return func(a *App) error {
		a.log = l
		return nil
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(a *App) error {
		a.httpClient = hc
		return nil
	}
}

// WithDurable replaces the default cookie-backed credential store.
func WithDurable(fn DurableFunc) Option {
	return func(a *App) error {
		a.durable = fn
		return nil
	}
}

// WithRegistry registers session and routing metrics with reg.
func WithRegistry(reg prometheus.Registerer) Option {
	return func(a *App) error {
		var err error
		if a.authMetrics, err = auth.NewMetrics(reg); err != nil {
			return err
		}
		a.routeMetrics, err = route.NewMetrics(reg)
		return err
	}
}

func New(opts Options, options ...Option) (*App, error) {
	if opts.APIBaseURL == "" {
		return nil, errors.New("api base url is required")
	}
	if len(opts.CookieSecret) == 0 {
		return nil, errors.New("cookie secret is required")
	}
	if opts.LoginPath == "" {
		opts.LoginPath = route.DefaultLoginPath
	}
	if opts.LandingPath == "" {
		opts.LandingPath = auth.DefaultLandingPath
	}
	if opts.EntryPath == "" {
		opts.EntryPath = "/"
	}
	if opts.CookieMaxAge == 0 {
		opts.CookieMaxAge = DefaultCookieMaxAge
	}
	a := &App{
		opts: opts,
		log:  logrus.StandardLogger(),
	}
	a.durable = a.cookieDurable
	for _, o := range options {
		if err := o(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// requestSession is the per-request wiring of stores, API client and auth manager.
type requestSession struct {
	tokens    *session.TokenStore
	transient *session.Transient
	manager   *auth.Manager
	log       logrus.FieldLogger
}

func (a *App) newSession(w http.ResponseWriter, r *http.Request) (*requestSession, error) {
	log := a.log.WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path})
	kv, err := a.durable(w, r)
	if err != nil {
		return nil, err
	}
	tokens := session.NewTokenStore(kv)
	transient := session.NewTransient(a.transientKV(w, r))

	clientOpts := []apiclient.Option{apiclient.WithLogger(log)}
	if a.httpClient != nil {
		clientOpts = append(clientOpts, apiclient.WithHTTPClient(a.httpClient))
	}
	if a.opts.APITimeout > 0 {
		clientOpts = append(clientOpts, apiclient.WithTimeout(a.opts.APITimeout))
	}
	client, err := apiclient.New(a.opts.APIBaseURL, tokens, clientOpts...)
	if err != nil {
		return nil, err
	}

	manager := auth.NewManager(client, tokens, transient,
		auth.WithLogger(log),
		auth.WithMetrics(a.authMetrics),
		auth.WithRestoreTimeout(a.opts.RestoreTimeout),
		auth.WithLandingPath(a.opts.LandingPath),
	)
	return &requestSession{tokens: tokens, transient: transient, manager: manager, log: log}, nil
}

func (a *App) cookieOptions(r *http.Request, prefix string, maxAge time.Duration) session.CookieOptions {
	return session.CookieOptions{
		Prefix:    prefix,
		MaxAge:    maxAge,
		Secure:    isSecure(r),
		UseDomain: a.opts.CookieDomain,
	}
}

func (a *App) cookieDurable(w http.ResponseWriter, r *http.Request) (storage.KV, error) {
	return session.NewCookieStore(w, r, a.opts.CookieSecret, a.cookieOptions(r, durablePrefix, a.opts.CookieMaxAge)), nil
}

// transientKV holds tab-scoped values in session cookies.
func (a *App) transientKV(w http.ResponseWriter, r *http.Request) storage.KV {
	return session.NewCookieStore(w, r, a.opts.CookieSecret, a.cookieOptions(r, transientPrefix, 0))
}

// Middleware runs the app shell for the request. Anonymous visits to protected paths are
// redirected to the login page; a replayed deep link is rendered in place and reported
// through LocationFromContext and the Content-Location header.
func (a *App) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := a.newSession(w, r)
		if err != nil {
			a.log.WithError(err).Error("failed to build session")
			writeError(w, http.StatusInternalServerError, "session unavailable")
			return
		}

		history := &route.History{}
		shell := route.NewShell(sess.manager, sess.transient, history,
			route.WithLoginPath(a.opts.LoginPath),
			route.WithLogger(sess.log),
			route.WithMetrics(a.routeMetrics),
		)
		defer shell.Close()

		requested := r.URL.RequestURI()
		d := shell.Boot(r.Context(), requested)
		if last, ok := history.Last(); ok && last.Action == route.ActionRedirect {
			http.Redirect(w, r, last.Path, http.StatusFound)
			return
		}

		location := shell.Location()
		if location != requested {
			w.Header().Set("Content-Location", location)
		}
		ctx := withLocation(r.Context(), location)
		ctx = auth.WithManager(ctx, sess.manager)
		if st := sess.manager.Status(); st.User != nil {
			ctx = st.User.WithContext(ctx)
		}
		sess.log.WithField("decision", d.String()).Debug("serving page")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const locationKey contextKey = "LOCATION"

func withLocation(ctx context.Context, location string) context.Context {
	return context.WithValue(ctx, locationKey, location)
}

// LocationFromContext returns the path the page should show, which differs from the request
// path when a deep link was replayed.
func LocationFromContext(ctx context.Context) string {
	v, _ := ctx.Value(locationKey).(string)
	return v
}

// isSecure reports whether the browser reached us over TLS, directly or through a proxy.
func isSecure(r *http.Request) bool {
	secure := r.TLS != nil
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		secure = proto == "https"
	}
	return secure
}
