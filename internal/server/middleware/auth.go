package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/crusont/crusont/internal/service"
)

const (
	// IdentityKey is the context key for the authenticated key owner.
	IdentityKey contextKey = "identity"
	// AdminKey is the context key for the authenticated admin session.
	AdminKey contextKey = "admin"
)

// Authenticate returns an HTTP middleware that resolves the bearer API
// key on each request to its owning user. The failure message never
// reveals whether a key was unknown, malformed, or deleted.
func Authenticate(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized,
					"No API key was provided. Include your key in the Authorization header as \"Bearer <your_key>\".")
				return
			}

			identity, err := authSvc.Authenticate(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrForbidden):
					writeAuthError(w, http.StatusForbidden,
						"Your account has been banned from accessing the service.")
				case errors.Is(err, service.ErrUnavailable):
					writeAuthError(w, http.StatusServiceUnavailable,
						"Authentication is temporarily unavailable. Please retry.")
				default:
					writeAuthError(w, http.StatusUnauthorized,
						"The provided API key is not valid.")
				}
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticateAdmin returns an HTTP middleware that validates an admin
// JWT session token from the Authorization header.
func AuthenticateAdmin(authSvc *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "Admin session token required.")
				return
			}

			principal, err := authSvc.ValidateJWT(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid or expired session token.")
				return
			}

			ctx := context.WithValue(r.Context(), AdminKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity extracts the authenticated key owner from the context.
// Returns nil for unauthenticated requests.
func GetIdentity(ctx context.Context) *service.Identity {
	if id, ok := ctx.Value(IdentityKey).(*service.Identity); ok {
		return id
	}
	return nil
}

// GetAdmin extracts the authenticated admin principal from the context.
func GetAdmin(ctx context.Context) *service.AdminPrincipal {
	if p, ok := ctx.Value(AdminKey).(*service.AdminPrincipal); ok {
		return p
	}
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeAuthError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
