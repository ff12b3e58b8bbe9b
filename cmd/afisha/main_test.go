package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seann-Moser/afisha/apitest"
	"github.com/Seann-Moser/afisha/config"
)

// setup points the CLI at a fake API and a session file in a temp dir.
func setup(t *testing.T) *apitest.Server {
	t.Helper()
	log, _ := test.NewNullLogger()
	api := apitest.NewServer(log)
	srv := api.Start()
	t.Cleanup(srv.Close)

	t.Setenv("AFISHA_API_BASE_URL", srv.URL)
	t.Setenv("AFISHA_STORAGE_DRIVER", config.DriverFile)
	t.Setenv("AFISHA_STORAGE_FILE_PATH", filepath.Join(t.TempDir(), "session.json"))
	t.Setenv("AFISHA_LOG_LEVEL", "error")
	return api
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"login": false, "logout": false, "register": false, "whoami": false, "check": false, "open": false, "serve": false, "mock-api": false}
	for _, c := range newRootCmd().Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		assert.True(t, found, "subcommand %q not registered", name)
	}
}

func TestSessionLifecycle(t *testing.T) {
	setup(t)

	out, err := run(t, "register", "--email", "ann@example.com", "--password", "Secret123", "--full-name", "Ann Lee")
	require.NoError(t, err)
	assert.Contains(t, out, "Registration successful")

	out, err = run(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not logged in.\n", out)

	out, err = run(t, "open", "/events")
	require.NoError(t, err)
	assert.Contains(t, out, "redirect /login")
	assert.Contains(t, out, "after login: /events")

	out, err = run(t, "login", "--email", "ann@example.com", "--password", "Secret123")
	require.NoError(t, err)
	assert.Contains(t, out, "ann@example.com (Ann Lee, user)")
	assert.Contains(t, out, "Next: /")

	out, err = run(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com (Ann Lee, user)\n", out)

	out, err = run(t, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "Session is valid.")

	out, err = run(t, "open", "/events")
	require.NoError(t, err)
	assert.Equal(t, "render /events\n", out)

	out, err = run(t, "logout")
	require.NoError(t, err)
	assert.Equal(t, "Logged out.\n", out)

	out, err = run(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not logged in.\n", out)
}

func TestLoginErrors(t *testing.T) {
	api := setup(t)
	api.AddUser("ann@example.com", "Secret123", "Ann", apitest.RoleUser)

	_, err := run(t, "login", "--email", "ann@example.com", "--password", "nope")
	assert.EqualError(t, err, "Invalid email or password.")

	_, err = run(t, "login", "--password", "Secret123")
	assert.EqualError(t, err, "--email is required")

	t.Setenv("AFISHA_PASSWORD", "Secret123")
	_, err = run(t, "login", "--email", "ann@example.com")
	assert.NoError(t, err)
}

func TestCheckExpiredSession(t *testing.T) {
	api := setup(t)
	api.AddUser("ann@example.com", "Secret123", "Ann", apitest.RoleUser)
	_, err := run(t, "login", "--email", "ann@example.com", "--password", "Secret123")
	require.NoError(t, err)

	api.ExpireSessions()
	_, err = run(t, "check")
	assert.EqualError(t, err, "Your session has expired. Please log in again.")

	out, err := run(t, "whoami")
	require.NoError(t, err)
	assert.Equal(t, "Not logged in.\n", out)
}

func TestOpenWithMarker(t *testing.T) {
	setup(t)

	out, err := run(t, "open", "/", "--marker", "/notifications")
	require.NoError(t, err)
	assert.Equal(t, "replace /login\nrender /login\nafter login: /notifications\n", out)

	out, err = run(t, "open", "/", "--marker", "/login?x=1")
	require.NoError(t, err)
	assert.Equal(t, "replace /login?x=1\nrender /login?x=1\n", out)
}

func TestInvalidConfig(t *testing.T) {
	setup(t)
	t.Setenv("AFISHA_STORAGE_DRIVER", "sqlite")
	_, err := run(t, "whoami")
	assert.ErrorContains(t, err, "invalid storage driver")
}

func TestOpenStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverRedis
	cfg.Storage.RedisURL = "redis://" + mr.Addr()
	c := &cli{cfg: cfg, log: cfg.Logger()}

	kv, closeFn, err := c.openStore(context.Background())
	require.NoError(t, err)
	defer closeFn()
	require.NoError(t, kv.Set(context.Background(), "sessionToken", "tok"))
	v, err := mr.Get("afisha:cli:sessionToken")
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}

func TestBuildServer(t *testing.T) {
	api := setup(t)
	api.AddUser("ann@example.com", "Secret123", "Ann", apitest.RoleUser)
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.CookieSecret = "0123456789abcdef0123456789abcdef"
	c := &cli{cfg: cfg, log: cfg.Logger()}

	handler, closeFn, err := c.buildServer(context.Background())
	require.NoError(t, err)
	defer closeFn()

	for path, want := range map[string]int{"/healthz": http.StatusOK, "/metrics": http.StatusOK, "/events": http.StatusFound, "/login": http.StatusOK} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}
