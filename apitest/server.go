// Package apitest runs an in-process stand-in for the remote afisha REST API. It implements
// the session endpoints only: POST /register, POST /login and GET /login.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	headerToken  = "X-Session-Token"
	headerUserID = "X-Session-User-Id"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Account is a registered user.
type Account struct {
	ID           string
	Email        string
	FullName     string
	Role         string
	PasswordHash []byte
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Server holds accounts and sessions in memory.
type Server struct {
	log  logrus.FieldLogger
	cost int

	mu       sync.Mutex
	accounts map[string]*Account // by email
	sessions map[string]string   // token -> account id
	latency  time.Duration
	headers  []http.Header
}

func NewServer(log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		log:      log,
		cost:     bcrypt.MinCost,
		accounts: make(map[string]*Account),
		sessions: make(map[string]string),
	}
}

// Start serves the API on a loopback httptest server. Callers close it.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s.Router())
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.record)
	r.HandleFunc("/register", s.RegisterHandler).Methods(http.MethodPost)
	r.HandleFunc("/login", s.LoginHandler).Methods(http.MethodPost)
	r.HandleFunc("/login", s.ActiveLoginHandler).Methods(http.MethodGet)
	return r
}

// AddUser registers an account directly, bypassing validation.
func (s *Server) AddUser(email, password, fullName, role string) *Account {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		panic(err)
	}
	acc := &Account{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		FullName:     fullName,
		Role:         role,
		PasswordHash: hash,
	}
	s.mu.Lock()
	s.accounts[acc.Email] = acc
	s.mu.Unlock()
	return acc
}

// IssueSession creates a session for an existing account without a login call.
func (s *Server) IssueSession(acc *Account) string {
	token := uuid.New().String()
	s.mu.Lock()
	s.sessions[token] = acc.ID
	s.mu.Unlock()
	return token
}

// ExpireSessions invalidates every issued token.
func (s *Server) ExpireSessions() {
	s.mu.Lock()
	s.sessions = make(map[string]string)
	s.mu.Unlock()
}

// SetLatency delays every response, or until the client gives up.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	s.latency = d
	s.mu.Unlock()
}

// Headers returns the headers of every request received so far.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]http.Header, len(s.headers))
	copy(out, s.headers)
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.headers = append(s.headers, r.Header.Clone())
		latency := s.latency
		s.mu.Unlock()
		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RegisterHandler handles new account registration.
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if fields := validateRegistration(req); fields != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", fields)
		return
	}

	email := strings.ToLower(req.Email)
	s.mu.Lock()
	_, exists := s.accounts[email]
	s.mu.Unlock()
	if exists {
		writeError(w, http.StatusConflict, "Email already registered", map[string]string{"email": "is already registered"})
		return
	}

	s.AddUser(email, req.Password, req.FullName, RoleUser)
	s.log.WithField("email", email).Info("account registered")
	w.WriteHeader(http.StatusCreated)
}

// LoginHandler checks email and password and issues session credentials.
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	}
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	}

	token := s.IssueSession(acc)
	s.log.WithField("email", acc.Email).Info("account logged in")
	writeJSON(w, http.StatusOK, map[string]string{"sessionToken": token, "sessionUserId": acc.ID})
}

// ActiveLoginHandler returns the account behind the request's session headers.
func (s *Server) ActiveLoginHandler(w http.ResponseWriter, r *http.Request) {
	token, userID := r.Header.Get(headerToken), r.Header.Get(headerUserID)
	if token == "" || userID == "" {
		writeError(w, http.StatusUnauthorized, "Not logged in", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[token] != userID {
		writeError(w, http.StatusUnauthorized, "Session expired", nil)
		return
	}
	for _, acc := range s.accounts {
		if acc.ID == userID {
			writeJSON(w, http.StatusOK, map[string]string{"email": acc.Email, "fullName": acc.FullName, "role": acc.Role})
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "Session expired", nil)
}

// writeJSON helper sends a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, fields map[string]string) {
	body := map[string]interface{}{"error": message}
	if fields != nil {
		body["fields"] = fields
	}
	writeJSON(w, status, body)
}
