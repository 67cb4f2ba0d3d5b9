package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/robotsunny/private-app-store/internal/models"
	"github.com/robotsunny/private-app-store/internal/store"
)

// JWTAuth extracts a bearer token, verifies it against the token service and
// resolves the bound user against the credential store. The context claims
// reflect the stored user record, so a role change takes effect on the next
// request even for tokens minted before it.
func JWTAuth(tokens *TokenService, users store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				denyJSON(w, http.StatusUnauthorized, "No token provided, access denied")
				return
			}
			claims, err := tokens.Verify(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				denyJSON(w, http.StatusUnauthorized, "Token is not valid")
				return
			}
			u, ok, err := users.UserByID(claims.UserID)
			if err != nil || !ok {
				denyJSON(w, http.StatusUnauthorized, "Token is not valid")
				return
			}
			claims = Claims{UserID: u.ID, Email: u.Email, Role: u.Role}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole gates a route on the authenticated user's role. Must run
// inside JWTAuth.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if FromContext(r.Context()).Role != role {
				denyJSON(w, http.StatusForbidden, "Access denied. "+role+" privileges required.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin is the admin variant of the guard.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)
}

func denyJSON(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": msg})
}
