// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	actor := requestcontext.Actor(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject them directly:
//
//	ctx = requestcontext.WithActor(ctx, "idir-user")
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"
)

// SystemActor is recorded as created_by/updated_by when no user is bound.
const SystemActor = "system"

type (
	actorKey       struct{}
	groupsKey      struct{}
	accessTokenKey struct{}
	clientIPKey    struct{}
	deviceKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

// Actor returns the acting user's identity (IDP username), or SystemActor.
func Actor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}

// HasActor reports whether an authenticated user is bound to ctx.
func HasActor(ctx context.Context) bool {
	actor, ok := ctx.Value(actorKey{}).(string)
	return ok && actor != ""
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Groups returns the identity-provider groups of the acting user.
func Groups(ctx context.Context) []string {
	if groups, ok := ctx.Value(groupsKey{}).([]string); ok {
		return groups
	}
	return nil
}

func WithGroups(ctx context.Context, groups []string) context.Context {
	return context.WithValue(ctx, groupsKey{}, groups)
}

// AccessToken returns the caller's bearer token, forwarded to upstream services.
func AccessToken(ctx context.Context) string {
	if token, ok := ctx.Value(accessTokenKey{}).(string); ok {
		return token
	}
	return ""
}

func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, device)
// -----------------------------------------------------------------------------

func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

func WithClientIP(ctx context.Context, clientIP string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, clientIP)
}

// Device returns a short "browser/os" label derived from the User-Agent.
func Device(ctx context.Context) string {
	if d, ok := ctx.Value(deviceKey{}).(string); ok {
		return d
	}
	return ""
}

func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceKey{}, device)
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return reqID
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time, e.g. for year-scoped numbering in tests.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
