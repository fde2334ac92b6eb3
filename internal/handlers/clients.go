package handlers

import (
	"net/http"

	"github.com/diewo77/briefly/internal/auth"
	"github.com/diewo77/briefly/internal/httpx"
	"github.com/diewo77/briefly/internal/logging"
	"github.com/diewo77/briefly/internal/services"
)

type ClientHandler struct {
	clients *services.ClientService
	logger  logging.Logger
}

func NewClientHandler(clients *services.ClientService, l logging.Logger) *ClientHandler {
	return &ClientHandler{clients: clients, logger: logging.OrNop(l)}
}

func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	clients, err := h.clients.List(r.Context(), userID, r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, clients)
}

func (h *ClientHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var in services.ClientInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		badRequest(w, r)
		return
	}
	client, err := h.clients.Create(r.Context(), userID, in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, client)
}

func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r)
		return
	}
	client, err := h.clients.Get(r.Context(), userID, id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, client)
}
