package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/m-mizutani/ctxlog"

	"workforce/internal/domain/auth"
	"workforce/internal/transport/http/api"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

// SessionChecker reports whether a token's session is still live.
type SessionChecker interface {
	SessionValid(ctx context.Context, userID, sessionID string) (bool, error)
}

// Auth attaches the bearer token's user to the context. Requests without a valid token pass
// through anonymously; RequireAuth and RequirePermission reject them later. A nil sessions
// skips the revocation check.
func Auth(secret string, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			user := claims.User()

			if sessions != nil && user.SessionID != "" {
				valid, err := sessions.SessionValid(r.Context(), user.UserID, user.SessionID)
				if err != nil {
					ctxlog.From(r.Context()).Warn("session check failed", "userId", user.UserID, "err", err)
				}
				if err != nil || !valid {
					next.ServeHTTP(w, r)
					return
				}
			}

			ctx := WithUser(r.Context(), user)
			ctx = ctxlog.With(ctx, ctxlog.From(ctx).With(slog.String("userId", user.UserID), slog.String("tenantId", user.TenantID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
