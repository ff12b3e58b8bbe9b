package route

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Seann-Moser/afisha/auth"
	"github.com/Seann-Moser/afisha/session"
)

// Shell is the app shell for one page lifetime. It runs reconciliation and the guard on boot
// and again on every auth state change.
type Shell struct {
	manager    *auth.Manager
	reconciler *Reconciler
	guard      *Guard
	nav        Navigator
	log        logrus.FieldLogger

	mu        sync.Mutex
	path      string
	last      Decision
	lastState auth.State
	evaluated bool
	cancel    func()
}

type shellConfig struct {
	loginPath string
	log       logrus.FieldLogger
	metrics   *Metrics
}

type ShellOption func(*shellConfig)

func WithLoginPath(p string) ShellOption {
	return func(c *shellConfig) { c.loginPath = p }
}

func WithLogger(l logrus.FieldLogger) ShellOption {
	return func(c *shellConfig) { c.log = l }
}

func WithMetrics(m *Metrics) ShellOption {
	return func(c *shellConfig) { c.metrics = m }
}

func NewShell(manager *auth.Manager, transient *session.Transient, nav Navigator, opts ...ShellOption) *Shell {
	cfg := shellConfig{loginPath: DefaultLoginPath, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Shell{
		manager:    manager,
		reconciler: NewReconciler(transient, cfg.loginPath, cfg.log, cfg.metrics),
		guard:      NewGuard(transient, cfg.loginPath, cfg.log, cfg.metrics),
		nav:        nav,
		log:        cfg.log,
	}
}

// Boot mounts the shell at path, restores the session and returns the settled decision.
// The shell keeps following auth state changes until Close.
func (s *Shell) Boot(ctx context.Context, path string) Decision {
	s.mu.Lock()
	s.path = path
	s.evaluated = false
	if s.cancel == nil {
		s.cancel = s.manager.Subscribe(func(st auth.Status) { s.evaluate(ctx, st) })
	}
	s.mu.Unlock()

	s.evaluate(ctx, s.manager.Status())
	s.manager.Restore(ctx)
	return s.evaluate(ctx, s.manager.Status())
}

// Location is the path the shell currently shows.
func (s *Shell) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path
}

func (s *Shell) Decision() Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Close stops following auth state changes.
func (s *Shell) Close() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Shell) evaluate(ctx context.Context, st auth.Status) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.evaluated && st.State == s.lastState && !s.reconciler.Pending() {
		return s.last
	}
	s.evaluated = true
	s.lastState = st.State

	d, err := s.reconciler.Reconcile(ctx, st)
	if err != nil {
		s.log.WithError(err).Warn("failed to reconcile pending redirect")
	}
	if d.Action == ActionReplace {
		s.nav.Replace(d.Target)
		s.path = d.Target
	}

	g := s.guard.Check(ctx, st, s.path, s.reconciler.Pending())
	if g.Action == ActionRedirect {
		s.nav.Redirect(g.Target)
		s.path = g.Target
	}
	s.log.WithFields(logrus.Fields{"path": s.path, "state": st.State, "decision": g.String()}).Debug("route evaluated")
	s.last = g
	return g
}
