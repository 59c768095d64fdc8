package middleware

import (
	"net"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// ClientIP resolves the address a request is attributed to.
type ClientIP func(ctx huma.Context) string

// NewClientIP returns a resolver that uses the connection's remote address.
// With trustProxy set, X-Forwarded-For and X-Real-IP take precedence; only
// enable it behind a proxy that overwrites those headers.
func NewClientIP(trustProxy bool) ClientIP {
	return func(ctx huma.Context) string {
		if trustProxy {
			if ip := forwardedIP(ctx); ip != "" {
				return ip
			}
		}

		return hostOnly(ctx.RemoteAddr())
	}
}

func forwardedIP(ctx huma.Context) string {
	// Check X-Forwarded-For header (may contain multiple IPs)
	if xff := ctx.Header("X-Forwarded-For"); xff != "" {
		// Take the first IP (original client)
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}

		return strings.TrimSpace(xff)
	}

	return strings.TrimSpace(ctx.Header("X-Real-IP"))
}

func hostOnly(addr string) string {
	ip, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return ip
}
