package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/filmstack/filmstack/internal/api/response"
	"github.com/filmstack/filmstack/internal/store"
	"github.com/filmstack/filmstack/pkg/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UserReader defines the store slice the login handler depends on.
type UserReader interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// SessionWriter defines the session slice the login handler depends on.
type SessionWriter interface {
	SetSession(ctx context.Context, token string, userID uuid.UUID, ttl time.Duration) error
}

// NewLoginHandler returns an http.HandlerFunc for POST /api/v1/auth/login.
// On valid credentials it mints an opaque session token with the given TTL.
func NewLoginHandler(users UserReader, sessions SessionWriter, sessionTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Username == "" || req.Password == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "username and password are required", nil)
			return
		}

		user, err := users.GetUserByUsername(r.Context(), req.Username)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}

		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password", nil)
			return
		}

		token, err := newSessionToken()
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
			return
		}
		if err := sessions.SetSession(r.Context(), token, user.ID, sessionTTL); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create session", nil)
			return
		}

		response.JSON(w, loginResponse{
			Username:  user.Username,
			Token:     token,
			ExpiresIn: int64(sessionTTL.Seconds()),
		})
	}
}

type loginResponse struct {
	Username  string `json:"username"`
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func newSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
