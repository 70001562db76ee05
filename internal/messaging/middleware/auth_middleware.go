package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ghostcrm/messaging/internal/messaging/domain"
	"github.com/ghostcrm/messaging/internal/messaging/repository"
	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const (
	AuthenticatedUserContextKey = ContextKey("authenticatedUser")
	MembershipContextKey        = ContextKey("membership")
)

// AuthenticatedUser holds information about the authenticated caller.
type AuthenticatedUser struct {
	ID string
}

// UserFromContext returns the authenticated user set by Auth.
func UserFromContext(ctx context.Context) (AuthenticatedUser, bool) {
	user, ok := ctx.Value(AuthenticatedUserContextKey).(AuthenticatedUser)
	return user, ok
}

// MembershipFromContext returns the org membership set by RequireOrg.
func MembershipFromContext(ctx context.Context) (domain.Membership, bool) {
	m, ok := ctx.Value(MembershipContextKey).(domain.Membership)
	return m, ok
}

// Auth validates the bearer token and attaches the caller identity.
// Tokens are HS256 JWTs whose subject is the user ID.
func Auth(jwtSecret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Authorization header missing")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.WarnContext(r.Context(), "Invalid Authorization header format")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				logger.WarnContext(r.Context(), "Token validation failed", "error", err)
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			subject, err := token.Claims.GetSubject()
			if err != nil || subject == "" {
				logger.WarnContext(r.Context(), "Token missing subject claim")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), AuthenticatedUserContextKey, AuthenticatedUser{ID: subject})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOrg resolves the caller's organization membership and attaches it.
// Callers with no membership get 403 "no_membership".
func RequireOrg(db repository.Querier, memberships repository.MembershipRepository, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			m, err := memberships.GetByUserID(r.Context(), db, user.ID)
			if err != nil {
				if errors.Is(err, domain.ErrNoMembership) {
					logger.WarnContext(r.Context(), "caller has no organization membership", "user_id", user.ID)
					writeError(w, http.StatusForbidden, "no_membership")
					return
				}
				logger.ErrorContext(r.Context(), "membership lookup failed", "error", err, "user_id", user.ID)
				writeError(w, http.StatusInternalServerError, "internal_error")
				return
			}

			ctx := context.WithValue(r.Context(), MembershipContextKey, *m)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
