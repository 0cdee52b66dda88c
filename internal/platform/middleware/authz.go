package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"compliance/internal/platform/authz"
	dErrors "compliance/pkg/domain-errors"
	"compliance/pkg/platform/httputil"
	"compliance/pkg/requestcontext"
)

// AssignmentChecker reports whether a user is assigned to a lifecycle record.
type AssignmentChecker interface {
	IsAssignedUser(ctx context.Context, id int64, authUserGUID string) (bool, error)
}

// RequireRole lets the request through when the token carries one of perms.
func RequireRole(logger *slog.Logger, perms ...authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if !authz.HasAny(requestcontext.Groups(ctx), perms...) {
				logger.WarnContext(ctx, "access denied",
					"actor", requestcontext.Actor(ctx),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Access Denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAssignedOrRole lets the request through when the acting user is
// assigned to the record named by the idParam route parameter, or holds one of perms.
func RequireAssignedOrRole(logger *slog.Logger, checker AssignmentChecker, idParam string, perms ...authz.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if authz.HasAny(requestcontext.Groups(ctx), perms...) {
				next.ServeHTTP(w, r)
				return
			}
			id, err := httputil.IDParam(r, idParam)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			assigned, err := checker.IsAssignedUser(ctx, id, requestcontext.Actor(ctx))
			if err != nil {
				logger.ErrorContext(ctx, "failed to check assignment",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			if !assigned {
				logger.WarnContext(ctx, "access denied",
					"actor", requestcontext.Actor(ctx),
					"record_id", id,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "Access Denied"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
