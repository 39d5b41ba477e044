package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/ernie/arena/internal/storage"
	"github.com/google/uuid"
)

// CreateUserRequest is the body of POST /api/users
type CreateUserRequest struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	IsAdmin  bool       `json:"is_admin"`
	PlayerID *uuid.UUID `json:"player_id,omitempty"`
}

// UserResponse is an operator account as listed by the API
type UserResponse struct {
	ID                     int64      `json:"id"`
	Username               string     `json:"username"`
	IsAdmin                bool       `json:"is_admin"`
	PlayerID               *uuid.UUID `json:"player_id,omitempty"`
	PasswordChangeRequired bool       `json:"password_change_required"`
	CreatedAt              time.Time  `json:"created_at"`
	LastLogin              *time.Time `json:"last_login,omitempty"`
}

func userView(u storage.User) UserResponse {
	return UserResponse{
		ID:                     u.ID,
		Username:               u.Username,
		IsAdmin:                u.IsAdmin,
		PlayerID:               u.PlayerID,
		PasswordChangeRequired: u.PasswordChangeRequired,
		CreatedAt:              u.CreatedAt,
		LastLogin:              u.LastLogin,
	}
}

func (r *Router) handleCreateUser(w http.ResponseWriter, req *http.Request) {
	var body CreateUserRequest
	if !decodeBody(w, req, &body) {
		return
	}
	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	ctx := req.Context()
	if _, err := r.store.GetUserByUsername(ctx, body.Username); err == nil {
		writeError(w, http.StatusConflict, "username already exists")
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	hash, ok := hashPassword(w, body.Password)
	if !ok {
		return
	}
	if err := r.store.CreateUser(ctx, body.Username, hash, body.IsAdmin, body.PlayerID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	r.log.Info().Str("user", body.Username).Bool("admin", body.IsAdmin).
		Str("by", claimsFrom(ctx).Username).Msg("User created")
	writeJSON(w, http.StatusCreated, map[string]string{"message": "user created"})
}

func (r *Router) handleListUsers(w http.ResponseWriter, req *http.Request) {
	users, err := r.store.ListUsers(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userView(u))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDeleteUser removes an account. Admins cannot remove themselves.
func (r *Router) handleDeleteUser(w http.ResponseWriter, req *http.Request) {
	username := req.PathValue("username")
	caller := claimsFrom(req.Context())
	if caller.Username == username {
		writeError(w, http.StatusForbidden, "cannot delete yourself")
		return
	}

	switch err := r.store.DeleteUser(req.Context(), username); {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	r.log.Info().Str("user", username).Str("by", caller.Username).Msg("User deleted")
	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
