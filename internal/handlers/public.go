package handlers

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/briefly/internal/access"
	"github.com/diewo77/briefly/internal/auth"
	"github.com/diewo77/briefly/internal/httpx"
	"github.com/diewo77/briefly/internal/i18n"
	"github.com/diewo77/briefly/internal/logging"
	"github.com/diewo77/briefly/internal/middleware"
	"github.com/diewo77/briefly/internal/models"
	"github.com/diewo77/briefly/internal/render"
	"github.com/diewo77/briefly/internal/services"
	"github.com/diewo77/briefly/internal/validation"
	"github.com/diewo77/briefly/internal/workflow"
)

const defaultGrantTTL = 12 * time.Hour

// PublicHandler serves the client facing pages under /p/{token}.
type PublicHandler struct {
	docs       *services.DocumentService
	gate       *access.Gate
	sessions   *auth.Sessions
	renderer   *render.Renderer
	trustProxy bool
	grantTTL   time.Duration
	logger     logging.Logger
}

type PublicOption func(*PublicHandler)

// WithTrustProxy makes the client identity come from X-Forwarded-For.
func WithTrustProxy(trust bool) PublicOption {
	return func(h *PublicHandler) { h.trustProxy = trust }
}

// WithGrantTTL sets how long a successful unlock is remembered.
func WithGrantTTL(ttl time.Duration) PublicOption {
	return func(h *PublicHandler) {
		if ttl > 0 {
			h.grantTTL = ttl
		}
	}
}

func NewPublicHandler(docs *services.DocumentService, gate *access.Gate, sessions *auth.Sessions, renderer *render.Renderer, l logging.Logger, opts ...PublicOption) *PublicHandler {
	h := &PublicHandler{
		docs:     docs,
		gate:     gate,
		sessions: sessions,
		renderer: renderer,
		grantTTL: defaultGrantTTL,
		logger:   logging.OrNop(l),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *PublicHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /p/{token}", h.View)
	mux.HandleFunc("POST /p/{token}/unlock", h.Unlock)
	mux.HandleFunc("POST /p/{token}/approve", h.act(workflow.ActionApprove, "notice.approved"))
	mux.HandleFunc("POST /p/{token}/reject", h.act(workflow.ActionReject, "notice.rejected"))
}

type publicDocument struct {
	*models.Document
	Actions []string `json:"actions"`
}

type gateResponse struct {
	Reason            access.Reason `json:"reason"`
	RetryAfterSeconds int           `json:"retry_after_seconds,omitempty"`
}

// View shows the document, the password form or the locked notice.
func (h *PublicHandler) View(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	if h.hasAccess(r, doc) {
		h.showDocument(w, r, http.StatusOK, doc, "")
		return
	}
	d, err := h.gate.CheckDocument(r.Context(), doc, clientIP(r, h.trustProxy), "")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.denied(w, r, doc, d)
}

// Unlock checks the submitted password and remembers a success in a
// cookie scoped to the document.
func (h *PublicHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.load(w, r)
	if !ok {
		return
	}
	password, err := h.password(w, r)
	if err != nil {
		badRequest(w, r)
		return
	}
	d, err := h.gate.CheckDocument(r.Context(), doc, clientIP(r, h.trustProxy), password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !d.Granted {
		h.denied(w, r, doc, d)
		return
	}
	if doc.IsPasswordProtected {
		h.sessions.GrantDocument(w, doc.Token, doc.AccessPassword, h.grantTTL)
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusOK, gateResponse{Reason: d.Reason})
		return
	}
	http.Redirect(w, r, "/p/"+doc.Token, http.StatusSeeOther)
}

func (h *PublicHandler) act(action workflow.Action, notice string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := h.load(w, r)
		if !ok {
			return
		}
		if !h.hasAccess(r, doc) {
			h.denied(w, r, doc, access.Decision{Reason: access.ReasonPasswordRequired})
			return
		}
		var in services.TransitionInput
		if httpx.WantsJSON(r) {
			if err := httpx.DecodeOptionalJSON(w, r, &in); err != nil {
				badRequest(w, r)
				return
			}
		} else {
			in.Reason = r.FormValue("reason")
		}
		updated, err := h.docs.ClientTransition(r.Context(), doc, action, in)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.showDocument(w, r, http.StatusOK, updated, notice)
	}
}

func (h *PublicHandler) load(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	doc, err := h.docs.GetByToken(r.Context(), r.PathValue("token"))
	if err != nil {
		h.fail(w, r, err)
		return nil, false
	}
	return doc, true
}

func (h *PublicHandler) hasAccess(r *http.Request, doc *models.Document) bool {
	return !doc.IsPasswordProtected || h.sessions.HasGrant(r, doc.Token, doc.AccessPassword)
}

func (h *PublicHandler) password(w http.ResponseWriter, r *http.Request) (string, error) {
	if !httpx.WantsJSON(r) {
		return r.FormValue("password"), nil
	}
	var in struct {
		Password string `json:"password"`
	}
	err := httpx.DecodeJSON(w, r, &in)
	return in.Password, err
}

func (h *PublicHandler) showDocument(w http.ResponseWriter, r *http.Request, status int, doc *models.Document, notice string) {
	actions := services.ClientActions(doc)
	if httpx.WantsJSON(r) {
		if actions == nil {
			actions = []string{}
		}
		httpx.JSON(w, status, publicDocument{Document: doc, Actions: actions})
		return
	}
	view := render.DocumentView{
		Doc:     doc,
		Lang:    middleware.LangFrom(r),
		Token:   doc.Token,
		Actions: actions,
		Notice:  notice,
		UIMode:  middleware.ThemeFrom(r),
	}
	h.html(w, status, func(w http.ResponseWriter) error { return h.renderer.Document(w, view) })
}

// denied answers a decision that did not grant access.
func (h *PublicHandler) denied(w http.ResponseWriter, r *http.Request, doc *models.Document, d access.Decision) {
	lang := middleware.LangFrom(r)
	if d.Reason == access.ReasonLocked {
		w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())))
		if httpx.WantsJSON(r) {
			httpx.JSON(w, http.StatusTooManyRequests, gateResponse{Reason: d.Reason, RetryAfterSeconds: int(d.RetryAfter.Seconds())})
			return
		}
		view := render.PageView{Lang: lang, Token: doc.Token, RetryMinutes: int(d.RetryAfter.Minutes()), UIMode: middleware.ThemeFrom(r)}
		h.html(w, http.StatusTooManyRequests, func(w http.ResponseWriter) error {
			return h.renderer.Page(w, render.PageLocked, view)
		})
		return
	}

	status := http.StatusOK
	view := render.PageView{Lang: lang, Token: doc.Token, UIMode: middleware.ThemeFrom(r)}
	if d.Reason == access.ReasonWrongPassword {
		status = http.StatusUnauthorized
		view.Error = "gate.wrong_password"
	}
	// Mutating calls without a grant are unauthorized too.
	if r.Method != http.MethodGet {
		status = http.StatusUnauthorized
	}
	if httpx.WantsJSON(r) {
		httpx.JSON(w, http.StatusUnauthorized, gateResponse{Reason: d.Reason})
		return
	}
	h.html(w, status, func(w http.ResponseWriter) error {
		return h.renderer.Page(w, render.PagePassword, view)
	})
}

// fail maps errors to the public pages. Browsers get an HTML message,
// API callers the JSON error body.
func (h *PublicHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if httpx.WantsJSON(r) {
		writeError(w, r, h.logger, err)
		return
	}
	lang := middleware.LangFrom(r)
	var inv *workflow.InvalidTransitionError
	var verr *validation.Error
	status, key := http.StatusInternalServerError, "error.internal"
	switch {
	case errors.Is(err, models.ErrNotFound):
		status, key = http.StatusNotFound, "error.not_available"
	case errors.As(err, &inv):
		status, key = http.StatusConflict, "error.invalid_transition"
	case errors.As(err, &verr):
		status, key = http.StatusUnprocessableEntity, "error.invalid_input"
	case errors.Is(err, services.ErrForbidden):
		status, key = http.StatusForbidden, "error.forbidden"
	case errors.Is(err, access.ErrUnavailable):
		h.logger.Errorw("access gate unavailable", "path", r.URL.Path, "error", err)
		status, key = http.StatusServiceUnavailable, "error.unavailable"
	default:
		h.logger.Errorw("public request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	msg := i18n.T(lang, key)
	view := render.PageView{Lang: lang, Title: msg, Message: msg, UIMode: middleware.ThemeFrom(r)}
	h.html(w, status, func(w http.ResponseWriter) error {
		return h.renderer.Page(w, render.PageMessage, view)
	})
}

func (h *PublicHandler) html(w http.ResponseWriter, status int, write func(http.ResponseWriter) error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := write(w); err != nil {
		h.logger.Errorw("render public page", "error", err)
	}
}

// clientIP is the identity the access gate counts attempts for.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
