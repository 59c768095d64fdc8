package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/serroba/associates-api/internal/ratelimit"
	"go.uber.org/zap"
)

// PolicyRateLimiter returns a Huma middleware that applies policy-based rate limiting.
// It uses a ScopeResolver to determine which scopes apply to each request,
// then checks all applicable limits from the policy. Rejected requests never
// reach the handler.
//
// Per-endpoint configuration can be provided via operation metadata using
// ratelimit.MetadataKey. This allows endpoints to:
//   - Disable rate limiting entirely (Disabled: true)
//   - Select the limiter class (Scope: ratelimit.ScopeLike)
func PolicyRateLimiter(
	api huma.API,
	limiter *ratelimit.PolicyLimiter,
	resolver ratelimit.ScopeResolver,
	clientIP ClientIP,
	logger *zap.Logger,
) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		path := getOperationPath(ctx)
		cfg := ratelimit.GetEndpointConfig(ctx)

		if cfg != nil && cfg.Disabled {
			logger.Debug("rate limiting disabled for endpoint",
				zap.String("path", path), zap.String("method", ctx.Method()))
			next(ctx)

			return
		}

		key := clientIP(ctx)

		decision, err := limiter.Allow(ctx.Context(), key, resolver.Resolve(ctx))
		if err != nil {
			logger.Error("rate limit check failed", zap.String("path", path), zap.Error(err))
			_ = huma.WriteErr(api, ctx, http.StatusInternalServerError, "Internal server error")

			return
		}

		setQuotaHeaders(ctx, decision.Quota)

		if !decision.Allowed {
			handleRateLimitExceeded(api, ctx, decision.Exceeded, path, key, logger)

			return
		}

		next(ctx)
	}
}

// getOperationPath extracts the path from the operation, if available.
func getOperationPath(ctx huma.Context) string {
	if op := ctx.Operation(); op != nil {
		return op.Path
	}

	return ""
}

// setQuotaHeaders reports the tightest applicable limit to the client.
func setQuotaHeaders(ctx huma.Context, quota *ratelimit.Quota) {
	if quota == nil {
		return
	}

	ctx.SetHeader("X-RateLimit-Limit", strconv.FormatInt(quota.Limit, 10))
	ctx.SetHeader("X-RateLimit-Remaining", strconv.FormatInt(quota.Remaining, 10))
	ctx.SetHeader("X-RateLimit-Reset", strconv.FormatInt(quota.ResetAt.Unix(), 10))
}

// handleRateLimitExceeded logs and responds to a rate limit exceeded condition.
func handleRateLimitExceeded(
	api huma.API,
	ctx huma.Context,
	exceeded *ratelimit.LimitExceeded,
	path, clientIP string,
	logger *zap.Logger,
) {
	msg := ratelimit.DefaultMessage

	if exceeded != nil {
		msg = exceeded.Message

		retryAfter := max(int64(time.Until(exceeded.ResetAt).Round(time.Second)/time.Second), 1)
		ctx.SetHeader("Retry-After", strconv.FormatInt(retryAfter, 10))

		logger.Warn("rate limit exceeded",
			zap.String("path", path),
			zap.String("method", ctx.Method()),
			zap.String("scope", string(exceeded.Scope)),
			zap.Int64("count", exceeded.Count),
			zap.Int64("max", exceeded.Config.Max),
			zap.Duration("window", exceeded.Config.Window),
			zap.String("client_ip", clientIP),
		)
	}

	_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, msg)
}
