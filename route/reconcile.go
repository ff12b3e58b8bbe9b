package route

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Seann-Moser/afisha/auth"
	"github.com/Seann-Moser/afisha/session"
)

// DefaultLoginPath is where anonymous visitors are sent.
const DefaultLoginPath = "/login"

// Reconciler replays the deep link left by the entry shim. The marker is consumed on the
// first call, before the auth state is known; a protected target is then held in memory
// until the state resolves.
type Reconciler struct {
	transient *session.Transient
	loginPath string
	log       logrus.FieldLogger
	metrics   *Metrics

	mu      sync.Mutex
	pending *session.Marker
}

func NewReconciler(transient *session.Transient, loginPath string, log logrus.FieldLogger, metrics *Metrics) *Reconciler {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Reconciler{transient: transient, loginPath: loginPath, log: log, metrics: metrics}
}

// Pending reports whether a consumed marker is still waiting for the auth state.
func (r *Reconciler) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending != nil
}

// Reconcile returns ActionNone when there is nothing to replay, ActionWait while a protected
// target waits on restoration, and ActionReplace once it is decided. Calling it again after
// a decision is a no-op.
func (r *Reconciler) Reconcile(ctx context.Context, st auth.Status) (Decision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending == nil {
		marker, err := r.transient.ConsumeRedirect(ctx)
		if err != nil {
			return Decision{Action: ActionNone}, err
		}
		if marker == nil {
			return Decision{Action: ActionNone}, nil
		}
		r.log.WithField("path", marker.OriginalPath).Debug("consumed redirect marker")
		r.pending = marker
	}

	path := r.pending.OriginalPath
	log := r.log.WithFields(logrus.Fields{"path": path, "state": st.State})
	switch {
	case !IsProtected(path):
		r.pending = nil
		r.metrics.reconciled("public")
		log.Debug("replaying public deep link")
		return Decision{Action: ActionReplace, Target: path}, nil
	case st.IsLoading():
		return Decision{Action: ActionWait, Target: path}, nil
	case st.IsAuthenticated():
		r.pending = nil
		r.metrics.reconciled("authenticated")
		log.Debug("replaying protected deep link")
		return Decision{Action: ActionReplace, Target: path}, nil
	default:
		r.pending = nil
		r.metrics.reconciled("login")
		if err := r.transient.SetReturnTo(ctx, path); err != nil {
			log.WithError(err).Warn("failed to remember deep link for after login")
		}
		log.Info("deep link needs login")
		return Decision{Action: ActionReplace, Target: r.loginPath}, nil
	}
}
