package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tagtrail/tagtrail/internal/auth"
	"github.com/tagtrail/tagtrail/internal/model"
)

// AnonymousToken is the placeholder injected when a request carries no
// Authorization header. It grants access to the health check route only.
const AnonymousToken = "_"

// UserResolver maps an external bearer token to a user.
type UserResolver interface {
	Resolve(ctx context.Context, externalToken string) (*model.User, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Users  UserResolver

	// HealthPath is the one route the anonymous placeholder may reach.
	HealthPath string

	// BypassToken short-circuits resolution for automated test harnesses.
	// Empty disables the bypass; production configuration forces it empty.
	BypassToken string
}

// Auth returns a middleware that authenticates every request.
//
// Requests without an Authorization header are treated as carrying the
// anonymous placeholder, which may only reach the health path. Any other
// token must resolve to a stored user; the resolved identity is attached
// to the request context.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				token = AnonymousToken
			}

			if token == AnonymousToken {
				if r.URL.Path == cfg.HealthPath {
					next.ServeHTTP(w, r)
					return
				}
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "anonymous"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			if cfg.BypassToken != "" && token == cfg.BypassToken {
				cfg.Logger.Warn("auth bypass token used",
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				next.ServeHTTP(w, r)
				return
			}

			user, err := cfg.Users.Resolve(r.Context(), token)
			if err != nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", "unresolved_token"),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w)
				return
			}

			ctx := auth.ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken pulls the token out of the Authorization header.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing bearer token"}}`))
}
