package afisha

import (
	"net/http"

	"github.com/Seann-Moser/afisha/session"
)

// EntryShim stands in for a static host that cannot rewrite paths: it remembers the requested
// deep link in tab-scoped storage and sends the browser to the synthetic entry path.
func (a *App) EntryShim() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == a.opts.EntryPath {
			writeError(w, http.StatusNotFound, "Not Found")
			return
		}
		transient := session.NewTransient(a.transientKV(w, r))
		if err := transient.MarkRedirect(r.Context(), r.URL.RequestURI()); err != nil {
			a.log.WithError(err).Error("failed to store deep link")
			writeError(w, http.StatusInternalServerError, "session unavailable")
			return
		}
		a.log.WithField("path", r.URL.RequestURI()).Debug("deep link sent to entry path")
		http.Redirect(w, r, a.opts.EntryPath, http.StatusFound)
	})
}
