package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/httputil"
	"compliance/pkg/requestcontext"
)

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims is what the handlers need from an access token.
type Claims struct {
	Username string
	Groups   []string
}

// RequireAuth validates the bearer token and binds the acting user, their
// groups and the raw token (for forwarding to upstream services) to the context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}
			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired token"))
				return
			}

			ctx = requestcontext.WithActor(ctx, claims.Username)
			ctx = requestcontext.WithGroups(ctx, claims.Groups)
			ctx = requestcontext.WithAccessToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
