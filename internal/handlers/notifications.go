package handlers

import (
	"net/http"
	"strconv"

	"github.com/diewo77/briefly/internal/auth"
	"github.com/diewo77/briefly/internal/httpx"
	"github.com/diewo77/briefly/internal/logging"
	"github.com/diewo77/briefly/internal/notify"
)

type NotificationHandler struct {
	outbox *notify.Outbox
	logger logging.Logger
}

func NewNotificationHandler(outbox *notify.Outbox, l logging.Logger) *NotificationHandler {
	return &NotificationHandler{outbox: outbox, logger: logging.OrNop(l)}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.outbox.List(r.Context(), userID, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		badRequest(w, r)
		return
	}
	if err := h.outbox.MarkRead(r.Context(), userID, id); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
