// Package auth owns the in-memory session state: who is signed in and whether the initial
// restoration from stored credentials has finished.
package auth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Seann-Moser/afisha/apiclient"
	"github.com/Seann-Moser/afisha/session"
)

const (
	DefaultRestoreTimeout = 10 * time.Second
	DefaultLandingPath    = "/"
)

// Manager is the single source of truth for auth state. Build one per app lifetime and pass
// it by reference.
type Manager struct {
	api            apiclient.API
	tokens         *session.TokenStore
	transient      *session.Transient
	log            logrus.FieldLogger
	notifier       Notifier
	metrics        *Metrics
	restoreTimeout time.Duration
	landingPath    string

	restoreOnce sync.Once
	ready       chan struct{}

	mu      sync.RWMutex
	state   State
	user    *session.User
	subs    map[int]func(Status)
	nextSub int
}

type Option func(*Manager)

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

func WithNotifier(n Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithRestoreTimeout bounds the silent restoration call. Zero keeps the default.
func WithRestoreTimeout(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.restoreTimeout = d
		}
	}
}

// WithLandingPath sets where a successful login goes when no post-login target is stored.
func WithLandingPath(p string) Option {
	return func(m *Manager) {
		if p != "" {
			m.landingPath = p
		}
	}
}

// NewManager returns a manager in StateRestoring. transient may be nil, in which case logins
// always land on the landing path.
func NewManager(api apiclient.API, tokens *session.TokenStore, transient *session.Transient, opts ...Option) *Manager {
	m := &Manager{
		api:            api,
		tokens:         tokens,
		transient:      transient,
		log:            logrus.StandardLogger(),
		restoreTimeout: DefaultRestoreTimeout,
		landingPath:    DefaultLandingPath,
		ready:          make(chan struct{}),
		state:          StateRestoring,
		subs:           make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.notifier == nil {
		m.notifier = LogNotifier{Log: m.log}
	}
	return m
}

// Status returns a snapshot of the current state.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Status{State: m.state, User: m.user}
}

// Ready is closed once the initial restoration has ended.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Wait blocks until restoration has ended or ctx is done.
func (m *Manager) Wait(ctx context.Context) (Status, error) {
	select {
	case <-m.ready:
		return m.Status(), nil
	case <-ctx.Done():
		return m.Status(), ctx.Err()
	}
}

// Subscribe calls fn after every state change until the returned cancel func is called.
// fn runs on the goroutine that caused the change and must not call Subscribe.
func (m *Manager) Subscribe(fn func(Status)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Restore runs the silent restoration at most once per Manager. Later calls wait for the
// first one and return the current status. Failures are logged, never surfaced: a failed
// restore just means nobody is signed in.
func (m *Manager) Restore(ctx context.Context) Status {
	m.restoreOnce.Do(func() {
		state, user := m.restore(ctx)
		m.settle(state, user)
	})
	return m.Status()
}

func (m *Manager) restore(ctx context.Context) (State, *session.User) {
	creds, err := m.tokens.Read(ctx)
	if err != nil {
		m.log.WithError(err).Warn("failed to read stored session")
		m.clearTokens(ctx)
		m.metrics.restore("error")
		return StateUnauthenticated, nil
	}
	if creds == nil {
		m.log.Debug("no stored session")
		m.metrics.restore("anonymous")
		return StateUnauthenticated, nil
	}

	rctx, cancel := context.WithTimeout(ctx, m.restoreTimeout)
	defer cancel()
	user, err := m.api.GetActiveLogin(rctx)
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		case errors.Is(err, apiclient.ErrAuth):
			outcome = "expired"
		}
		m.log.WithError(err).WithFields(logrus.Fields{"user_id": creds.UserID, "outcome": outcome}).
			Warn("session restore failed")
		m.clearTokens(ctx)
		m.metrics.restore(outcome)
		return StateUnauthenticated, nil
	}

	m.log.WithField("user_id", creds.UserID).Info("session restored")
	m.metrics.restore("restored")
	return StateAuthenticated, user
}

// settle ends StateRestoring. It is only ever called from inside restoreOnce.
func (m *Manager) settle(state State, user *session.User) {
	m.setState(state, user)
	close(m.ready)
}

// settlePending ends a restoration nobody started, without a network call, and waits for one
// that is in flight.
func (m *Manager) settlePending() {
	m.restoreOnce.Do(func() {
		m.metrics.restore("skipped")
		m.settle(StateUnauthenticated, nil)
	})
}

// Login signs in and returns where to navigate next: the stored post-login target, or the
// landing path.
func (m *Manager) Login(ctx context.Context, email, password string) Result {
	m.settlePending()
	log := m.log.WithField("email", email)

	if _, err := m.api.Login(ctx, email, password); err != nil {
		log.WithError(err).Info("login rejected")
		m.metrics.login(outcomeFor(err))
		return m.fail(ctx, loginMessage(err), err)
	}
	user, err := m.api.GetActiveLogin(ctx)
	if err != nil {
		log.WithError(err).Warn("login succeeded but active login lookup failed")
		m.clearTokens(ctx)
		m.metrics.login(outcomeFor(err))
		return m.fail(ctx, loginMessage(err), err)
	}

	m.setState(StateAuthenticated, user)
	target := m.landingPath
	if m.transient != nil {
		if target, err = m.transient.ConsumeReturnTo(ctx, m.landingPath); err != nil {
			log.WithError(err).Warn("failed to consume post-login target")
		}
	}
	m.metrics.login("success")
	log.WithField("redirect", target).Info("logged in")
	return Result{Success: true, Redirect: target, Data: user}
}

// Logout forgets the session. Calling it while signed out only clears storage again.
func (m *Manager) Logout(ctx context.Context) {
	m.settlePending()
	if err := m.api.Logout(ctx); err != nil {
		m.log.WithError(err).Warn("logout failed to clear stored session")
		m.clearTokens(ctx)
	}
	if m.Status().State != StateUnauthenticated {
		m.log.Info("logged out")
	}
	m.setState(StateUnauthenticated, nil)
}

// Register creates an account. It does not sign in.
func (m *Manager) Register(ctx context.Context, req apiclient.RegisterRequest) Result {
	if err := m.api.Register(ctx, req); err != nil {
		m.log.WithError(err).WithField("email", req.Email).Info("registration rejected")
		return m.fail(ctx, registerMessage(err), err)
	}
	m.log.WithField("email", req.Email).Info("account registered")
	m.notifier.Notify(ctx, Notification{Level: LevelInfo, Message: "Registration successful. You can now log in."})
	return Result{Success: true, Data: req.Email}
}

// CheckSession re-validates the stored session. It never touches isLoading and, unlike
// restoration, leaves the current user in place when the check fails.
func (m *Manager) CheckSession(ctx context.Context) Result {
	user, err := m.api.GetActiveLogin(ctx)
	if err != nil {
		m.log.WithError(err).Warn("session check failed")
		m.metrics.check(outcomeFor(err))
		return m.fail(ctx, checkMessage(err), err)
	}
	m.mu.RLock()
	authenticated := m.state == StateAuthenticated
	m.mu.RUnlock()
	if authenticated {
		m.setState(StateAuthenticated, user)
	}
	m.metrics.check("success")
	return Result{Success: true, Data: user}
}

func (m *Manager) fail(ctx context.Context, msg string, err error) Result {
	m.notifier.Notify(ctx, Notification{Level: LevelError, Message: msg})
	return Result{Error: msg, Err: err}
}

func (m *Manager) clearTokens(ctx context.Context) {
	if err := m.tokens.Clear(ctx); err != nil {
		m.log.WithError(err).Error("failed to clear stored session")
	}
}

func (m *Manager) setState(state State, user *session.User) {
	m.mu.Lock()
	if m.state == state && m.user == user {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.user = user
	st := Status{State: state, User: user}
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Status), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.subs[id])
	}
	m.mu.Unlock()

	m.log.WithField("state", state).Debug("auth state changed")
	for _, fn := range fns {
		fn(st)
	}
}

func outcomeFor(err error) string {
	switch {
	case errors.Is(err, apiclient.ErrAuth):
		return "unauthorized"
	case errors.Is(err, apiclient.ErrValidation):
		return "invalid"
	case errors.Is(err, apiclient.ErrNetwork):
		return "network"
	default:
		return "error"
	}
}

func loginMessage(err error) string {
	if errors.Is(err, apiclient.ErrAuth) {
		return "Invalid email or password."
	}
	return describe(err)
}

func registerMessage(err error) string {
	return describe(err)
}

func checkMessage(err error) string {
	if errors.Is(err, apiclient.ErrAuth) {
		return "Your session has expired. Please log in again."
	}
	return describe(err)
}

func describe(err error) string {
	var apiErr *apiclient.Error
	switch {
	case errors.Is(err, apiclient.ErrValidation) && errors.As(err, &apiErr):
		if fields := apiErr.FieldErrors(); len(fields) > 0 {
			return "Please check the form: " + strings.Join(fields, "; ") + "."
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return "The request was rejected. Please check the form."
	case errors.Is(err, apiclient.ErrNetwork):
		return "Could not reach the server. Please try again later."
	case errors.Is(err, apiclient.ErrAuth):
		return "You are not authorized to do that."
	default:
		return "Something went wrong. Please try again."
	}
}
