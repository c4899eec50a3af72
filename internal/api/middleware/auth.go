package middleware

import (
	"net/http"
	"strings"

	"github.com/filmstack/filmstack/internal/api/response"
	"github.com/filmstack/filmstack/internal/cache"
)

// Auth validates bearer session tokens. Tokens are minted at login and
// resolved to a user id through the session store.
type Auth struct {
	sessions cache.Cache
}

// NewAuth creates a new Auth middleware.
func NewAuth(sessions cache.Cache) *Auth {
	return &Auth{sessions: sessions}
}

// Authenticate resolves the Bearer token to a user id and sets it in the
// request context for handlers downstream.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		userID, found, err := a.sessions.GetSession(r.Context(), token)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate session", nil)
			return
		}
		if !found {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid or expired session", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUserID(r.Context(), userID)))
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
