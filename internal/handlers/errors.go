// Package handlers exposes the owner JSON API and the public document pages.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/diewo77/briefly/internal/access"
	"github.com/diewo77/briefly/internal/httpx"
	"github.com/diewo77/briefly/internal/i18n"
	"github.com/diewo77/briefly/internal/logging"
	"github.com/diewo77/briefly/internal/middleware"
	"github.com/diewo77/briefly/internal/models"
	"github.com/diewo77/briefly/internal/services"
	"github.com/diewo77/briefly/internal/validation"
	"github.com/diewo77/briefly/internal/workflow"
)

type transitionDetails struct {
	Kind     models.Kind     `json:"kind"`
	From     models.Status   `json:"from"`
	Action   workflow.Action `json:"action"`
	Conflict bool            `json:"conflict,omitempty"`
}

type validationDetails struct {
	Fields   validation.Violations `json:"fields"`
	Messages map[string]string     `json:"messages"`
}

// writeError is the single place mapping domain errors to HTTP. Raw error
// text never reaches the client.
func writeError(w http.ResponseWriter, r *http.Request, l logging.Logger, err error) {
	lang := middleware.LangFrom(r)
	var inv *workflow.InvalidTransitionError
	var verr *validation.Error
	switch {
	case errors.Is(err, models.ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_available", i18n.T(lang, "error.not_available"), nil)
	case errors.As(err, &inv):
		httpx.JSONError(w, http.StatusConflict, "invalid_transition", i18n.T(lang, "error.invalid_transition"),
			transitionDetails{Kind: inv.Kind, From: inv.From, Action: inv.Action, Conflict: inv.Conflict})
	case errors.As(err, &verr):
		msgs := make(map[string]string, len(verr.Fields))
		for field, code := range verr.Fields {
			msgs[field] = i18n.T(lang, code)
		}
		httpx.JSONError(w, http.StatusUnprocessableEntity, "validation_failed", i18n.T(lang, "error.invalid_input"),
			validationDetails{Fields: verr.Fields, Messages: msgs})
	case errors.Is(err, services.ErrNotEditable):
		httpx.JSONError(w, http.StatusConflict, "not_editable", i18n.T(lang, "error.not_editable"), nil)
	case errors.Is(err, services.ErrForbidden):
		httpx.JSONError(w, http.StatusForbidden, "forbidden", i18n.T(lang, "error.forbidden"), nil)
	case errors.Is(err, services.ErrBadCredentials):
		httpx.JSONError(w, http.StatusUnauthorized, "bad_credentials", i18n.T(lang, "error.bad_credentials"), nil)
	case errors.Is(err, access.ErrUnavailable):
		logging.OrNop(l).Errorw("access gate unavailable", "path", r.URL.Path, "error", err)
		httpx.JSONError(w, http.StatusServiceUnavailable, "unavailable", i18n.T(lang, "error.unavailable"), nil)
	default:
		logging.OrNop(l).Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		httpx.JSONError(w, http.StatusInternalServerError, "internal", i18n.T(lang, "error.internal"), nil)
	}
}

func badRequest(w http.ResponseWriter, r *http.Request) {
	httpx.JSONError(w, http.StatusBadRequest, "bad_request", i18n.T(middleware.LangFrom(r), "error.invalid_input"), nil)
}

func pathID(r *http.Request, name string) (uint, bool) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
