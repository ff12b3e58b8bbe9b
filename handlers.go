package afisha

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Seann-Moser/afisha/apiclient"
	"github.com/Seann-Moser/afisha/session"
)

type credentialsForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

// SessionResponse is what the page sees of the auth state.
type SessionResponse struct {
	IsAuthenticated bool          `json:"isAuthenticated"`
	IsLoading       bool          `json:"isLoading"`
	User            *session.User `json:"user"`
	Location        string        `json:"location,omitempty"`
}

// LoginHandler signs in with a JSON body or a form post. Form posts are answered with a 303
// to the post-login target.
func (a *App) LoginHandler(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sess, err := a.newSession(w, r)
	if err != nil {
		a.log.WithError(err).Error("failed to build session")
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	res := sess.manager.Login(r.Context(), form.Email, form.Password)
	if !res.Success {
		writeError(w, failureStatus(res.Err, http.StatusUnauthorized), res.Error)
		return
	}
	if !isJSON(r) {
		http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"redirect": res.Redirect, "user": res.Data})
}

// LogoutHandler forgets the session. It succeeds whether or not anyone was signed in.
func (a *App) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := a.newSession(w, r)
	if err != nil {
		a.log.WithError(err).Error("failed to build session")
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	sess.manager.Logout(r.Context())
	if !isJSON(r) {
		http.Redirect(w, r, a.opts.LoginPath, http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterHandler creates an account without signing in.
func (a *App) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	form, err := decodeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sess, err := a.newSession(w, r)
	if err != nil {
		a.log.WithError(err).Error("failed to build session")
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}

	res := sess.manager.Register(r.Context(), apiclient.RegisterRequest{
		Email:    form.Email,
		Password: form.Password,
		FullName: form.FullName,
	})
	if !res.Success {
		writeError(w, failureStatus(res.Err, http.StatusBadRequest), res.Error)
		return
	}
	if !isJSON(r) {
		http.Redirect(w, r, a.opts.LoginPath, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"email": res.Data})
}

// SessionHandler restores the session and reports it.
func (a *App) SessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := a.newSession(w, r)
	if err != nil {
		a.log.WithError(err).Error("failed to build session")
		writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	st := sess.manager.Restore(r.Context())
	writeJSON(w, http.StatusOK, SessionResponse{
		IsAuthenticated: st.IsAuthenticated(),
		IsLoading:       st.IsLoading(),
		User:            st.User,
	})
}

// StatusPage is a minimal page for hosts without a static bundle: it reports the auth state
// and the location the shell settled on.
func StatusPage(w http.ResponseWriter, r *http.Request) {
	resp := SessionResponse{Location: LocationFromContext(r.Context())}
	if u, err := session.UserFromContext(r.Context()); err == nil {
		resp.IsAuthenticated = true
		resp.User = u
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeForm(r *http.Request) (credentialsForm, error) {
	var f credentialsForm
	if isJSON(r) {
		err := json.NewDecoder(r.Body).Decode(&f)
		return f, err
	}
	if err := r.ParseForm(); err != nil {
		return f, err
	}
	f.Email = strings.TrimSpace(r.PostFormValue("email"))
	f.Password = r.PostFormValue("password")
	f.FullName = strings.TrimSpace(r.PostFormValue("fullName"))
	return f, nil
}

func isJSON(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// writeJSON helper sends a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("failed to write JSON response")
	}
}

// failureStatus maps an API failure to the status the page sees. Anything unclassified gets
// fallback.
func failureStatus(err error, fallback int) int {
	switch {
	case errors.Is(err, apiclient.ErrNetwork):
		return http.StatusBadGateway
	case errors.Is(err, apiclient.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, apiclient.ErrValidation):
		return http.StatusBadRequest
	default:
		return fallback
	}
}

// writeError helper sends a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
