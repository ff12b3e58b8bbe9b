package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Seann-Moser/afisha/storage"
)

func TestHMAC(t *testing.T) {
	secret := []byte("mysecret")
	msg := "hello"
	sig := computeHMAC(msg, secret)
	if !validateHMAC(msg, sig, secret) {
		t.Errorf("validateHMAC failed for valid signature")
	}
	if validateHMAC(msg, sig+"bad", secret) {
		t.Errorf("validateHMAC passed for invalid signature")
	}
}

func TestSignVerify(t *testing.T) {
	secret := []byte("cookie-secret")
	raw := sign("/events?tab=mine", secret)

	got, err := verify(raw, secret)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if got != "/events?tab=mine" {
		t.Errorf("expected /events?tab=mine, got %q", got)
	}

	if _, err := verify(raw, []byte("other-secret")); err == nil {
		t.Errorf("expected error for wrong secret")
	}
	if _, err := verify("no-separator", secret); err == nil {
		t.Errorf("expected error for malformed value")
	}
}

func TestCookieStoreRoundTrip(t *testing.T) {
	secret := []byte("mysessionsecret")
	ctx := context.Background()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	store := NewCookieStore(rr, req, secret, CookieOptions{Prefix: "afisha_", MaxAge: time.Hour})
	if err := store.Set(ctx, TokenKey, "tok-1"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	// visible inside the same request
	if v, err := store.Get(ctx, TokenKey); err != nil || v != "tok-1" {
		t.Fatalf("expected pending value tok-1, got %q (%v)", v, err)
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if cookies[0].Name != "afisha_"+TokenKey {
		t.Errorf("unexpected cookie name %s", cookies[0].Name)
	}
	if cookies[0].MaxAge != 3600 {
		t.Errorf("expected MaxAge 3600, got %d", cookies[0].MaxAge)
	}

	req2 := httptest.NewRequest("GET", "/", nil)
	req2.AddCookie(cookies[0])
	next := NewCookieStore(httptest.NewRecorder(), req2, secret, CookieOptions{Prefix: "afisha_"})
	got, err := next.Get(ctx, TokenKey)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got != "tok-1" {
		t.Errorf("expected tok-1, got %s", got)
	}
}

func TestCookieStoreSessionScoped(t *testing.T) {
	rr := httptest.NewRecorder()
	store := NewCookieStore(rr, httptest.NewRequest("GET", "/", nil), []byte("s"), CookieOptions{Prefix: "tab_"})
	if err := store.Set(context.Background(), RedirectFlagKey, "true"); err != nil {
		t.Fatal(err)
	}
	c := rr.Result().Cookies()[0]
	if c.MaxAge != 0 || !c.Expires.IsZero() {
		t.Errorf("expected a session cookie, got MaxAge=%d Expires=%v", c.MaxAge, c.Expires)
	}
	if !c.HttpOnly {
		t.Errorf("expected HttpOnly cookie")
	}
}

func TestCookieStoreDelete(t *testing.T) {
	secret := []byte("s")
	ctx := context.Background()
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: "p_" + TokenKey, Value: sign("tok", secret)})

	rr := httptest.NewRecorder()
	store := NewCookieStore(rr, req, secret, CookieOptions{Prefix: "p_"})
	if err := store.Delete(ctx, TokenKey); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, TokenKey); err != storage.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	c := rr.Result().Cookies()[0]
	if c.MaxAge >= 0 {
		t.Errorf("expected expiring cookie, got MaxAge=%d", c.MaxAge)
	}
}

func TestCookieStoreTampered(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: TokenKey, Value: sign("tok", []byte("attacker"))})
	store := NewCookieStore(httptest.NewRecorder(), req, []byte("server"), CookieOptions{})
	if _, err := store.Get(context.Background(), TokenKey); err == nil {
		t.Errorf("expected error for tampered cookie")
	}
}

func TestCookieStoreDomain(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://app.afisha.example.com")
	store := NewCookieStore(rr, req, []byte("s"), CookieOptions{UseDomain: true})
	if err := store.Set(context.Background(), TokenKey, "tok"); err != nil {
		t.Fatal(err)
	}
	if d := rr.Result().Cookies()[0].Domain; d != "example.com" {
		t.Errorf("expected domain example.com, got %q", d)
	}
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	ts := NewTokenStore(kv)

	creds, err := ts.Read(ctx)
	if err != nil || creds != nil {
		t.Fatalf("expected empty store, got %v (%v)", creds, err)
	}

	if err := ts.Save(ctx, "tok", "42"); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	creds, err = ts.Read(ctx)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if creds.Token != "tok" || creds.UserID != "42" {
		t.Errorf("unexpected credentials %+v", creds)
	}

	if err := ts.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if creds, _ := ts.Read(ctx); creds != nil {
		t.Errorf("expected nil after Clear, got %+v", creds)
	}
	if kv.Len() != 0 {
		t.Errorf("expected no keys left, got %d", kv.Len())
	}
}

func TestTokenStoreHalfWritten(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Set(ctx, TokenKey, "tok")

	creds, err := NewTokenStore(kv).Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if creds != nil {
		t.Errorf("expected nil credentials when user id is missing, got %+v", creds)
	}
}

func TestTokenStoreRejectsEmpty(t *testing.T) {
	if err := NewTokenStore(storage.NewMemory()).Save(context.Background(), "", "42"); err == nil {
		t.Errorf("expected error for empty token")
	}
}

func TestTransientRedirectMarker(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	tr := NewTransient(kv)

	m, err := tr.ConsumeRedirect(ctx)
	if err != nil || m != nil {
		t.Fatalf("expected no marker, got %+v (%v)", m, err)
	}

	if err := tr.MarkRedirect(ctx, "/notifications"); err != nil {
		t.Fatal(err)
	}
	m, err = tr.ConsumeRedirect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || !m.Flagged || m.OriginalPath != "/notifications" {
		t.Fatalf("unexpected marker %+v", m)
	}
	if kv.Len() != 0 {
		t.Errorf("marker not deleted, %d keys left", kv.Len())
	}

	m, err = tr.ConsumeRedirect(ctx)
	if err != nil || m != nil {
		t.Errorf("second consume should be a no-op, got %+v (%v)", m, err)
	}
}

func TestTransientMarkerWithoutPath(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Set(ctx, RedirectFlagKey, "true")

	m, err := NewTransient(kv).ConsumeRedirect(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m == nil || m.OriginalPath != "/" {
		t.Errorf("expected fallback to /, got %+v", m)
	}
}

func TestTransientUnflaggedMarkerIsDiscarded(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemory()
	_ = kv.Set(ctx, RedirectFlagKey, "false")
	_ = kv.Set(ctx, RedirectPathKey, "/events")

	m, err := NewTransient(kv).ConsumeRedirect(ctx)
	if err != nil || m != nil {
		t.Errorf("expected nil marker, got %+v (%v)", m, err)
	}
	if kv.Len() != 0 {
		t.Errorf("expected stale keys removed, %d left", kv.Len())
	}
}

func TestTransientUnverifiableMarkerIsDeleted(t *testing.T) {
	ctx := context.Background()
	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: RedirectFlagKey, Value: sign(flagged, []byte("rotated"))})
	req.AddCookie(&http.Cookie{Name: RedirectPathKey, Value: sign("/events/42", []byte("rotated"))})

	rr := httptest.NewRecorder()
	tr := NewTransient(NewCookieStore(rr, req, []byte("server"), CookieOptions{}))

	m, err := tr.ConsumeRedirect(ctx)
	if err == nil || m != nil {
		t.Fatalf("expected read error and no marker, got %+v (%v)", m, err)
	}

	expired := map[string]bool{}
	for _, c := range rr.Result().Cookies() {
		if c.MaxAge < 0 {
			expired[c.Name] = true
		}
	}
	if !expired[RedirectFlagKey] || !expired[RedirectPathKey] {
		t.Errorf("expected both marker cookies expired, got %v", expired)
	}

	m, err = tr.ConsumeRedirect(ctx)
	if err != nil || m != nil {
		t.Errorf("expected second consume to be a no-op, got %+v (%v)", m, err)
	}
}

func TestTransientReturnTo(t *testing.T) {
	ctx := context.Background()
	tr := NewTransient(storage.NewMemory())

	got, err := tr.ConsumeReturnTo(ctx, "/")
	if err != nil || got != "/" {
		t.Fatalf("expected fallback, got %q (%v)", got, err)
	}

	if err := tr.SetReturnTo(ctx, "/events?page=2"); err != nil {
		t.Fatal(err)
	}
	if v, ok, _ := tr.ReturnTo(ctx); !ok || v != "/events?page=2" {
		t.Errorf("ReturnTo = %q, %v", v, ok)
	}
	got, err = tr.ConsumeReturnTo(ctx, "/")
	if err != nil || got != "/events?page=2" {
		t.Fatalf("expected stored target, got %q (%v)", got, err)
	}
	got, _ = tr.ConsumeReturnTo(ctx, "/")
	if got != "/" {
		t.Errorf("target should be consumed once, got %q", got)
	}
}

func TestUserContext(t *testing.T) {
	u := &User{Email: "a@b.c"}
	ctx := u.WithContext(context.Background())
	got, err := UserFromContext(ctx)
	if err != nil {
		t.Errorf("UserFromContext error: %v", err)
	}
	if got.Email != u.Email {
		t.Errorf("expected %s, got %s", u.Email, got.Email)
	}
	if _, err := UserFromContext(context.Background()); err == nil {
		t.Errorf("expected error for missing user in context")
	}
}
