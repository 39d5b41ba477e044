package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ernie/arena/internal/auth"
	"github.com/ernie/arena/internal/storage"
)

type claimsKey struct{}

// LoginRequest is the request body for login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries a fresh token and the identity it speaks for
type LoginResponse struct {
	Token string `json:"token"`
	auth.Identity
}

// AuthCheckResponse reports whether the caller's token is valid
type AuthCheckResponse struct {
	Authenticated bool `json:"authenticated"`
	*auth.Identity
}

// ChangePasswordRequest is the request body for a password change
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func identityOf(u *storage.User) auth.Identity {
	return auth.Identity{
		UserID:                 u.ID,
		Username:               u.Username,
		IsAdmin:                u.IsAdmin,
		PlayerID:               u.PlayerID,
		PasswordChangeRequired: u.PasswordChangeRequired,
	}
}

// decodeBody reads a JSON body into v, answering 400 on failure
func decodeBody(w http.ResponseWriter, req *http.Request, v interface{}) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// hashPassword answers 400 for weak passwords and 500 for anything else
func hashPassword(w http.ResponseWriter, password string) (string, bool) {
	hash, err := auth.HashPassword(password)
	switch {
	case errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to hash password")
		return "", false
	}
	return hash, true
}

func (r *Router) issueToken(w http.ResponseWriter, id auth.Identity) (string, bool) {
	token, err := r.auth.GenerateToken(id)
	if err != nil {
		r.log.Error().Err(err).Str("user", id.Username).Msg("Token signing failed")
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return "", false
	}
	return token, true
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body LoginRequest
	if !decodeBody(w, req, &body) {
		return
	}
	if body.Username == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	ctx := req.Context()
	user, err := r.store.GetUserByUsername(ctx, body.Username)
	if err != nil || !auth.CheckPassword(body.Password, user.PasswordHash) {
		r.log.Info().Str("user", body.Username).Str("ip", getClientIP(req)).Msg("Login refused")
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
		return
	}

	id := identityOf(user)
	token, ok := r.issueToken(w, id)
	if !ok {
		return
	}
	if err := r.store.UpdateUserLastLogin(ctx, user.ID); err != nil {
		r.log.Warn().Err(err).Str("user", user.Username).Msg("Failed to record last login")
	}
	r.log.Info().Str("user", user.Username).Bool("admin", user.IsAdmin).Msg("User logged in")
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Identity: id})
}

// Tokens are stateless; logging out is the client dropping its token.
func (r *Router) handleLogout(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleAuthCheck(w http.ResponseWriter, req *http.Request) {
	claims := r.bearerClaims(req)
	if claims == nil {
		writeJSON(w, http.StatusOK, AuthCheckResponse{})
		return
	}
	writeJSON(w, http.StatusOK, AuthCheckResponse{Authenticated: true, Identity: &claims.Identity})
}

// handleChangePassword replaces the caller's password and returns a token
// without the change-required flag
func (r *Router) handleChangePassword(w http.ResponseWriter, req *http.Request) {
	caller := claimsFrom(req.Context())

	var body ChangePasswordRequest
	if !decodeBody(w, req, &body) {
		return
	}

	ctx := req.Context()
	user, err := r.store.GetUserByID(ctx, caller.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if !auth.CheckPassword(body.CurrentPassword, user.PasswordHash) {
		writeError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, ok := hashPassword(w, body.NewPassword)
	if !ok {
		return
	}
	if err := r.store.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update password")
		return
	}

	id := identityOf(user)
	id.PasswordChangeRequired = false
	token, ok := r.issueToken(w, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Identity: id})
}

// requireAuth rejects requests without a valid bearer token and passes the
// claims on through the request context
func (r *Router) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return r.authorize(false, next)
}

// requireAdmin is requireAuth for admin tokens only
func (r *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return r.authorize(true, next)
}

func (r *Router) authorize(admin bool, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		claims := r.bearerClaims(req)
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if admin && !claims.IsAdmin {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next(w, req.WithContext(context.WithValue(req.Context(), claimsKey{}, claims)))
	}
}

// bearerClaims validates the Authorization header, nil when absent or bad
func (r *Router) bearerClaims(req *http.Request) *auth.Claims {
	token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return nil
	}
	claims, err := r.auth.ValidateToken(token)
	if err != nil {
		return nil
	}
	return claims
}

// claimsFrom returns the claims requireAuth stored. Only valid behind it.
func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	if claims == nil {
		return &auth.Claims{}
	}
	return claims
}
