package handlers

import (
	"net/http"

	"github.com/diewo77/briefly/internal/auth"
	"github.com/diewo77/briefly/internal/httpx"
	"github.com/diewo77/briefly/internal/logging"
	"github.com/diewo77/briefly/internal/middleware"
	"github.com/diewo77/briefly/internal/models"
	"github.com/diewo77/briefly/internal/render"
	"github.com/diewo77/briefly/internal/services"
	"github.com/diewo77/briefly/internal/workflow"
)

// DocumentHandler serves the owner API for briefs and invoices.
type DocumentHandler struct {
	docs     *services.DocumentService
	renderer *render.Renderer
	logger   logging.Logger
}

func NewDocumentHandler(docs *services.DocumentService, renderer *render.Renderer, l logging.Logger) *DocumentHandler {
	return &DocumentHandler{docs: docs, renderer: renderer, logger: logging.OrNop(l)}
}

type documentResponse struct {
	*models.Document
	PublicURL string   `json:"public_url"`
	Actions   []string `json:"actions"`
}

func (h *DocumentHandler) response(doc *models.Document) documentResponse {
	actions := []string{}
	for _, a := range workflow.Available(doc.Kind, doc.Status) {
		actions = append(actions, string(a))
	}
	return documentResponse{Document: doc, PublicURL: h.docs.PublicURL(doc), Actions: actions}
}

// Routes registers the handler on mux. Every route requires a session.
func (h *DocumentHandler) Routes(mux *http.ServeMux, protect func(http.Handler) http.Handler) {
	handle := func(pattern string, f http.HandlerFunc) { mux.Handle(pattern, protect(f)) }
	handle("GET /api/briefs", h.list(models.KindBrief))
	handle("POST /api/briefs", h.create(models.KindBrief))
	handle("GET /api/invoices", h.list(models.KindInvoice))
	handle("POST /api/invoices", h.create(models.KindInvoice))
	handle("GET /api/documents", h.list(""))
	handle("GET /api/documents/{id}", h.Get)
	handle("PUT /api/documents/{id}", h.Update)
	handle("POST /api/documents/{id}/password", h.SetPassword)
	handle("GET /api/documents/{id}/print", h.Print)
	handle("POST /api/documents/{id}/{action}", h.Transition)
	handle("GET /api/themes", h.Themes)
}

func (h *DocumentHandler) list(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())
		docs, err := h.docs.List(r.Context(), userID, kind)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		out := make([]documentResponse, len(docs))
		for i := range docs {
			out[i] = h.response(&docs[i])
		}
		httpx.JSON(w, http.StatusOK, out)
	}
}

func (h *DocumentHandler) create(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := auth.UserIDFromContext(r.Context())
		var in services.DocumentInput
		if err := httpx.DecodeJSON(w, r, &in); err != nil {
			badRequest(w, r)
			return
		}
		doc, err := h.docs.Create(r.Context(), userID, kind, in)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, h.response(doc))
	}
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r)
		return
	}
	doc, err := h.docs.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.response(doc))
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r)
		return
	}
	var in services.DocumentInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		badRequest(w, r)
		return
	}
	doc, err := h.docs.Update(r.Context(), userID, id, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.response(doc))
}

// SetPassword sets or, with an empty password, clears the access password.
func (h *DocumentHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r)
		return
	}
	var in struct {
		Password string `json:"password"`
	}
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		badRequest(w, r)
		return
	}
	doc, err := h.docs.SetPassword(r.Context(), userID, id, in.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.response(doc))
}

func (h *DocumentHandler) Transition(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r, "id")
	action, known := workflow.ParseAction(r.PathValue("action"))
	if !ok || !known {
		writeError(w, r, h.logger, models.ErrNotFound)
		return
	}
	var in services.TransitionInput
	if err := httpx.DecodeOptionalJSON(w, r, &in); err != nil {
		badRequest(w, r)
		return
	}
	doc, err := h.docs.OwnerTransition(r.Context(), userID, id, action, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.response(doc))
}

// Themes lists the print themes a document can use.
func (h *DocumentHandler) Themes(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, render.Themes())
}

// Print renders the owner's printable HTML view.
func (h *DocumentHandler) Print(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r)
		return
	}
	doc, err := h.docs.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.renderer.Document(w, render.DocumentView{Doc: doc, Lang: middleware.LangFrom(r), UIMode: middleware.ThemeFrom(r)}); err != nil {
		h.logger.Errorw("render document", "document_id", doc.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}
