// Package auth issues and checks HMAC-signed cookies: the owner session and
// the per-document grant remembered after a successful unlock.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/briefly/internal/httpx"
)

type ctxKey string

const (
	sessionCookieName = "session"
	grantCookieName   = "doc_grant"
	userIDCtxKey      = ctxKey("userID")

	DefaultSessionTTL = 14 * 24 * time.Hour
)

// UserVerifier validates that a session's user still exists.
type UserVerifier func(ctx context.Context, uid uint) bool

// Sessions signs and verifies cookies with one secret.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	verify UserVerifier
	now    func() time.Time
}

type Option func(*Sessions)

// WithVerifier makes RequireAuth reject sessions whose user is gone.
func WithVerifier(v UserVerifier) Option { return func(s *Sessions) { s.verify = v } }

// WithSecureCookies sets the Secure flag, for HTTPS deployments.
func WithSecureCookies(secure bool) Option { return func(s *Sessions) { s.secure = secure } }

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option { return func(s *Sessions) { s.ttl = ttl } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(s *Sessions) { s.now = now } }

func NewSessions(secret string, opts ...Option) *Sessions {
	s := &Sessions{secret: []byte(secret), ttl: DefaultSessionTTL, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Sessions) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// seal returns "payload.expiry.signature".
func (s *Sessions) seal(payload string, exp time.Time) string {
	body := payload + "." + strconv.FormatInt(exp.Unix(), 10)
	return body + "." + s.sign(body)
}

// open checks signature and expiry and returns the payload.
func (s *Sessions) open(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 {
		return "", false
	}
	body, sig := value[:i], value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(s.sign(body))) {
		return "", false
	}
	j := strings.LastIndexByte(body, '.')
	if j <= 0 {
		return "", false
	}
	exp, err := strconv.ParseInt(body[j+1:], 10, 64)
	if err != nil || s.now().Unix() >= exp {
		return "", false
	}
	return body[:j], true
}

// CreateSession sets a signed cookie with the user id.
func (s *Sessions) CreateSession(w http.ResponseWriter, userID uint) {
	exp := s.now().Add(s.ttl)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    s.seal(strconv.FormatUint(uint64(userID), 10), exp),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  exp,
	})
}

// ClearSession deletes the session cookie.
func (s *Sessions) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// ParseSession validates the cookie and returns the user id.
func (s *Sessions) ParseSession(r *http.Request) (uint, bool) {
	c, err := r.Cookie(sessionCookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	uidStr, ok := s.open(c.Value)
	if !ok {
		return 0, false
	}
	id64, err := strconv.ParseUint(uidStr, 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}

// GrantDocument remembers that the visitor unlocked the document behind
// token with the password whose digest is given. The cookie is scoped to
// the document's public path.
func (s *Sessions) GrantDocument(w http.ResponseWriter, token, digest string, ttl time.Duration) {
	exp := s.now().Add(ttl)
	http.SetCookie(w, &http.Cookie{
		Name:     grantCookieName,
		Value:    s.seal(s.grantPayload(token, digest), exp),
		Path:     "/p/" + token,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  exp,
	})
}

// HasGrant reports whether the request carries a valid grant for token.
// A grant issued under another password digest no longer counts.
func (s *Sessions) HasGrant(r *http.Request, token, digest string) bool {
	want := []byte(s.grantPayload(token, digest))
	for _, c := range r.Cookies() {
		if c.Name != grantCookieName {
			continue
		}
		if got, ok := s.open(c.Value); ok && hmac.Equal([]byte(got), want) {
			return true
		}
	}
	return false
}

// grantPayload binds the token to a fingerprint of the password digest.
func (s *Sessions) grantPayload(token, digest string) string {
	return token + ":" + s.sign("grant:" + digest)[:16]
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(userIDCtxKey).(uint)
	return id, ok && id != 0
}

// Middleware attaches the user id to the request context if present.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := s.ParseSession(r); ok {
			r = r.WithContext(WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth returns 401 JSON to API clients and redirects browsers to /login.
func (s *Sessions) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, ok := UserIDFromContext(r.Context())
		if ok && s.verify != nil && !s.verify(r.Context(), uid) {
			s.ClearSession(w)
			ok = false
		}
		if !ok {
			if httpx.WantsJSON(r) || strings.HasPrefix(r.URL.Path, "/api/") {
				httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", "", nil)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
