package api

import (
	"net"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/curatorapp/curator-server/internal/errors"
)

// rateLimitByIP is a huma middleware that limits requests per client IP.
func (s *Server) rateLimitByIP(ctx huma.Context, next func(huma.Context)) {
	key := clientIP(ctx)
	if !s.authLimiter.Allow(key) {
		s.logger.Warn("rate limit exceeded", "ip", key, "path", ctx.URL().Path)
		_ = huma.WriteErr(s.api, ctx, 429, "Too many requests",
			domainerrors.RateLimited("Too many requests. Please try again later."))
		return
	}
	next(ctx)
}

// clientIP strips the port from the remote address. middleware.RealIP has
// already applied X-Forwarded-For and X-Real-IP.
func clientIP(ctx huma.Context) string {
	addr := ctx.RemoteAddr()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSpace(addr)
}
