package route

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Seann-Moser/afisha/auth"
	"github.com/Seann-Moser/afisha/session"
)

// Guard keeps anonymous visitors off protected paths that were reached directly rather than
// through a recovered deep link.
type Guard struct {
	transient *session.Transient
	loginPath string
	log       logrus.FieldLogger
	metrics   *Metrics
}

func NewGuard(transient *session.Transient, loginPath string, log logrus.FieldLogger, metrics *Metrics) *Guard {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Guard{transient: transient, loginPath: loginPath, log: log, metrics: metrics}
}

// Check decides what to show for path, which may carry a query string. reconciling is true
// while a recovered deep link is still undecided.
func (g *Guard) Check(ctx context.Context, st auth.Status, path string, reconciling bool) Decision {
	protected := IsProtected(path)
	switch {
	case reconciling, st.IsLoading() && protected:
		return Decision{Action: ActionLoading, Target: path}
	case protected && !st.IsAuthenticated():
		if err := g.transient.SetReturnTo(ctx, path); err != nil {
			g.log.WithError(err).WithField("path", path).Warn("failed to remember path for after login")
		}
		g.metrics.guarded()
		g.log.WithField("path", path).Info("anonymous visit to protected path")
		return Decision{Action: ActionRedirect, Target: g.loginPath}
	default:
		return Decision{Action: ActionRender, Target: path}
	}
}
