package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func cookieRequest(w *httptest.ResponseRecorder, path string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range w.Result().Cookies() {
		r.AddCookie(c)
	}
	return r
}

func TestSessionRoundTrip(t *testing.T) {
	s := NewSessions("secret")
	w := httptest.NewRecorder()
	s.CreateSession(w, 42)

	uid, ok := s.ParseSession(cookieRequest(w, "/"))
	if !ok || uid != 42 {
		t.Fatalf("expected uid 42, got %d %v", uid, ok)
	}

	other := NewSessions("other-secret")
	if _, ok := other.ParseSession(cookieRequest(w, "/")); ok {
		t.Fatalf("expected signature mismatch")
	}
}

func TestSessionTampered(t *testing.T) {
	s := NewSessions("secret")
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "1.9999999999.forged"})
	if _, ok := s.ParseSession(r); ok {
		t.Fatalf("expected forged cookie to be rejected")
	}
}

func TestSessionExpires(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	s := NewSessions("secret", WithTTL(time.Hour), WithClock(func() time.Time { return now }))
	w := httptest.NewRecorder()
	s.CreateSession(w, 7)
	r := cookieRequest(w, "/")

	if _, ok := s.ParseSession(r); !ok {
		t.Fatalf("expected valid session")
	}
	now = now.Add(2 * time.Hour)
	if _, ok := s.ParseSession(r); ok {
		t.Fatalf("expected expired session")
	}
}

func TestDocumentGrant(t *testing.T) {
	s := NewSessions("secret")
	w := httptest.NewRecorder()
	s.GrantDocument(w, "tok-a", "digest-1", time.Hour)

	r := cookieRequest(w, "/p/tok-a")
	if !s.HasGrant(r, "tok-a", "digest-1") {
		t.Fatalf("expected grant for tok-a")
	}
	if s.HasGrant(r, "tok-b", "digest-1") {
		t.Fatalf("grant must not leak to another document")
	}
	if got := w.Result().Cookies()[0].Path; got != "/p/tok-a" {
		t.Fatalf("unexpected cookie path %q", got)
	}
}

func TestDocumentGrantFollowsPassword(t *testing.T) {
	s := NewSessions("secret")
	w := httptest.NewRecorder()
	s.GrantDocument(w, "tok-a", "digest-1", time.Hour)
	r := cookieRequest(w, "/p/tok-a")

	if s.HasGrant(r, "tok-a", "digest-2") {
		t.Fatalf("grant must not survive a password change")
	}
	if s.HasGrant(r, "tok-a", "") {
		t.Fatalf("grant must not survive a password removal")
	}
}

func TestRequireAuth(t *testing.T) {
	s := NewSessions("secret", WithVerifier(func(_ context.Context, uid uint) bool { return uid == 1 }))
	h := s.Middleware(s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		if uid != 1 {
			t.Errorf("unexpected uid %d", uid)
		}
		w.WriteHeader(http.StatusNoContent)
	})))

	// anonymous API call
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/clients", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", w.Code)
	}

	// anonymous browser
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect got %d", w.Code)
	}

	// valid user
	login := httptest.NewRecorder()
	s.CreateSession(login, 1)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, cookieRequest(login, "/api/clients"))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", w.Code)
	}

	// deleted user
	gone := httptest.NewRecorder()
	s.CreateSession(gone, 2)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, cookieRequest(gone, "/api/clients"))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for deleted user got %d", w.Code)
	}
}
