package middleware

import (
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/theAravinthM/appsmith/common/ratelimit"
)

// isInternalRequest checks if the request is from an internal service
// Internal services set X-Internal-Service header to bypass rate limits
func isInternalRequest(c echo.Context) bool {
	internalHeader := c.Request().Header.Get("X-Internal-Service")
	if internalHeader == "" {
		return false
	}

	// Verify against shared secret (prevents spoofing)
	expectedSecret := os.Getenv("INTERNAL_SERVICE_SECRET")
	if expectedSecret == "" {
		return false
	}

	return internalHeader == expectedSecret
}

// GlobalRateLimitMiddleware checks the global service-wide rate limit.
// Protects the service from being overwhelmed regardless of which
// applications the load targets. Skips internal service-to-service calls.
func GlobalRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, limit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isInternalRequest(c) {
				return next(c)
			}

			result, err := rateLimiter.CheckGlobalLimit(c.Request().Context(), limit)
			if err != nil {
				// On error, allow request (fail open for availability)
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "global_rate_limit_exceeded",
					"message": "Service is experiencing high load. Please try again later.",
					"details": map[string]interface{}{
						"limit":               result.Limit,
						"window":              "60 seconds",
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}

// ArtifactRateLimitMiddleware checks the tiered per-application rate limit.
// The tier reflects the cost of the endpoint it guards: remote operations
// (push, pull, fetch) get a much smaller budget than local status reads.
// Requests without an :applicationId path parameter pass through.
func ArtifactRateLimitMiddleware(rateLimiter *ratelimit.RateLimiter, tier ratelimit.OperationTier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if isInternalRequest(c) {
				return next(c)
			}

			applicationID := c.Param("applicationId")
			if applicationID == "" {
				return next(c)
			}

			result, err := rateLimiter.CheckArtifactLimit(c.Request().Context(), applicationID, tier)
			if err != nil {
				// On error, allow request (fail open for availability)
				return next(c)
			}

			if !result.Allowed {
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":   "artifact_rate_limit_exceeded",
					"message": "Too many git operations for this application. Please wait before trying again.",
					"details": map[string]interface{}{
						"application_id":      applicationID,
						"tier":                string(tier),
						"limit":               result.Limit,
						"current_count":       result.CurrentCount,
						"retry_after_seconds": result.RetryAfterSeconds,
					},
				})
			}

			return next(c)
		}
	}
}
