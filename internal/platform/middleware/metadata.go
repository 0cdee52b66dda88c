package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"compliance/pkg/requestcontext"
)

// ClientMetadata records the client IP and a short device label parsed from
// the User-Agent ("Firefox on Linux") for request logs.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("User-Agent")
		ctx := requestcontext.WithClientIP(r.Context(), ClientIPFromRequest(r))
		if raw != "" {
			ctx = requestcontext.WithDevice(ctx, deviceLabel(raw))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func deviceLabel(raw string) string {
	ua := useragent.New(raw)
	if ua.Bot() {
		return "bot"
	}
	browser, _ := ua.Browser()
	os := ua.OSInfo().Name
	switch {
	case browser != "" && os != "":
		return browser + " on " + os
	case browser != "":
		return browser
	default:
		return os
	}
}

// ClientIPFromRequest prefers proxy headers, then the connection address.
func ClientIPFromRequest(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
