package apitest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	log, _ := test.NewNullLogger()
	return NewServer(log)
}

func serve(s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, req)
	return rr
}

func TestRegisterHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantFields []string
	}{
		{"valid", `{"email":"ann@example.com","password":"Secret123","fullName":"Ann"}`, http.StatusCreated, nil},
		{"bad json", `{`, http.StatusBadRequest, nil},
		{"bad email", `{"email":"nope","password":"Secret123","fullName":"Ann"}`, http.StatusBadRequest, []string{"email"}},
		{"weak password", `{"email":"ann@example.com","password":"short","fullName":"Ann"}`, http.StatusBadRequest, []string{"password"}},
		{"everything wrong", `{"email":"","password":"","fullName":" "}`, http.StatusBadRequest, []string{"email", "fullName", "password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(newTestServer(), http.MethodPost, "/register", tt.body, nil)
			assert.Equal(t, tt.wantStatus, rr.Code)
			for _, f := range tt.wantFields {
				assert.Contains(t, rr.Body.String(), `"`+f+`"`)
			}
		})
	}
}

func TestRegisterHandler_Duplicate(t *testing.T) {
	s := newTestServer()
	s.AddUser("ann@example.com", "Secret123", "Ann", RoleUser)

	rr := serve(s, http.MethodPost, "/register", `{"email":"Ann@example.com","password":"Secret123","fullName":"Ann"}`, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestLoginAndActiveLogin(t *testing.T) {
	s := newTestServer()
	acc := s.AddUser("ann@example.com", "Secret123", "Ann Smith", RoleAdmin)

	rr := serve(s, http.MethodPost, "/login", `{"email":"ann@example.com","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(s, http.MethodPost, "/login", `{"email":"ann@example.com","password":"Secret123"}`, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"sessionUserId":"`+acc.ID+`"`)

	token := s.IssueSession(acc)
	rr = serve(s, http.MethodGet, "/login", "", map[string]string{headerToken: token, headerUserID: acc.ID})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"email":"ann@example.com","fullName":"Ann Smith","role":"admin"}`, rr.Body.String())

	rr = serve(s, http.MethodGet, "/login", "", map[string]string{headerToken: token, headerUserID: "someone-else"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(s, http.MethodGet, "/login", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	s.ExpireSessions()
	rr = serve(s, http.MethodGet, "/login", "", map[string]string{headerToken: token, headerUserID: acc.ID})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHeadersRecorded(t *testing.T) {
	s := NewServer(logrus.New())
	serve(s, http.MethodGet, "/login", "", map[string]string{"X-Request-Id": "abc"})
	h := s.Headers()
	require.Len(t, h, 1)
	assert.Equal(t, "abc", h[0].Get("X-Request-Id"))
}
