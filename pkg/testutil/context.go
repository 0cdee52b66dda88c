package testutil

import (
	"net/http"

	"compliance/internal/platform/authz"
	"compliance/pkg/requestcontext"
)

// WithUser binds an authenticated user and their permission groups to the
// request, the way the auth middleware does after validating a token.
func WithUser(req *http.Request, username string, perms ...authz.Permission) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), username)
	ctx = requestcontext.WithGroups(ctx, groups(perms))
	ctx = requestcontext.WithAccessToken(ctx, "test-token")
	return req.WithContext(ctx)
}

// AsUser is WithUser as router middleware, for handler tests that mount a
// whole route table.
func AsUser(username string, perms ...authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, WithUser(r, username, perms...))
		})
	}
}

func groups(perms []authz.Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.Group())
	}
	return out
}
