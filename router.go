package afisha

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router mounts the session endpoints and the guarded pages. Paths under each of
// publicPrefixes are served by pages without the shell, for bundles and images.
func (a *App) Router(pages http.Handler, publicPrefixes ...string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(a.opts.LoginPath, a.LoginHandler).Methods(http.MethodPost)
	r.HandleFunc("/logout", a.LogoutHandler).Methods(http.MethodPost)
	r.HandleFunc("/register", a.RegisterHandler).Methods(http.MethodPost)
	r.HandleFunc("/session", a.SessionHandler).Methods(http.MethodGet)

	for _, p := range publicPrefixes {
		r.PathPrefix(p).Handler(pages).Methods(http.MethodGet, http.MethodHead)
	}

	guarded := a.Middleware(pages)
	if a.opts.ShimDeepLinks {
		r.Path(a.opts.EntryPath).Handler(guarded).Methods(http.MethodGet, http.MethodHead)
		r.PathPrefix("/").Handler(a.EntryShim()).Methods(http.MethodGet, http.MethodHead)
		return r
	}
	r.PathPrefix("/").Handler(guarded).Methods(http.MethodGet, http.MethodHead)
	return r
}
