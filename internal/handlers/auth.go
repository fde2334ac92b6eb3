package handlers

import (
	"net/http"

	"github.com/diewo77/briefly/internal/auth"
	"github.com/diewo77/briefly/internal/httpx"
	"github.com/diewo77/briefly/internal/logging"
	"github.com/diewo77/briefly/internal/services"
	"github.com/diewo77/briefly/internal/store"
)

type AuthHandler struct {
	accounts *services.AccountService
	users    *store.UserStore
	sessions *auth.Sessions
	logger   logging.Logger
}

func NewAuthHandler(accounts *services.AccountService, users *store.UserStore, sessions *auth.Sessions, l logging.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, users: users, sessions: sessions, logger: logging.OrNop(l)}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// readCredentials accepts a JSON body or a regular form post.
func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var c credentials
	if httpx.WantsJSON(r) {
		err := httpx.DecodeJSON(w, r, &c)
		return c, err
	}
	c.Email = r.FormValue("email")
	c.Password = r.FormValue("password")
	c.Name = r.FormValue("name")
	return c, nil
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(w, r)
	if err != nil {
		badRequest(w, r)
		return
	}
	user, err := h.accounts.Signup(r.Context(), c.Email, c.Name, c.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.sessions.CreateSession(w, user.ID)
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	c, err := readCredentials(w, r)
	if err != nil {
		badRequest(w, r)
		return
	}
	user, err := h.accounts.Authenticate(r.Context(), c.Email, c.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.sessions.CreateSession(w, user.ID)
	httpx.JSON(w, http.StatusOK, user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
