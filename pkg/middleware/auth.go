package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/lister/pkg/auth"
	"github.com/shashiranjanraj/lister/pkg/logger"
	"github.com/shashiranjanraj/lister/pkg/response"
)

type userKey struct{}

// Identity requires a valid bearer token and stores its subject as the
// request's user id.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			response.Unauthorized(w)
			return
		}

		claims, err := auth.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			logger.WithCtx(r.Context()).Debug("auth: token rejected", "error", err)
			response.Error(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		ctx := WithUserID(r.Context(), claims.UserID())
		log := logger.WithCtx(ctx).With("user_id", claims.UserID())
		next.ServeHTTP(w, r.WithContext(logger.InjectLogger(ctx, log)))
	})
}

// WithUserID stores the caller's id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserID returns the id set by Identity, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}
