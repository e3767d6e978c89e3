package ratelimit

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kgarg2468/Skintel/internal/errors"
)

// IPRateLimitMiddleware limits every request by client address
func (rl *RateLimiter) IPRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowIP(c.Request.Context(), ip)
		if err != nil {
			// a broken limiter must not take the service down
			slog.Error("Rate limit check failed", "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitIPBlock()
			}
			reject(c, result,
				fmt.Sprintf("You have exceeded the rate limit of %d requests per minute", result.Limit))
			return
		}

		c.Next()
	}
}

// EndpointRateLimitMiddleware applies a tighter per-minute budget to one route
func (rl *RateLimiter) EndpointRateLimitMiddleware(endpoint string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()

		result, err := rl.AllowEndpoint(c.Request.Context(), endpoint, ip, limit)
		if err != nil {
			slog.Error("Endpoint rate limit check failed", "endpoint", endpoint, "ip", ip, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Endpoint-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Endpoint-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitEndpoint(endpoint)
			}
			reject(c, result,
				fmt.Sprintf("You have exceeded the rate limit of %d analyses per minute", result.Limit))
			return
		}

		c.Next()
	}
}

func reject(c *gin.Context, result *Result, message string) {
	retryAfter := int(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	c.Header("Retry-After", strconv.Itoa(retryAfter))

	appErr := apperrors.NewRateLimitError(strconv.Itoa(retryAfter))
	appErr.RequestID = c.GetString("request_id")
	apperrors.LogError(c, appErr)

	body := appErr.Response()
	body["message"] = message
	body["retry_after"] = retryAfter
	body["reset_at"] = result.ResetAt.Unix()
	c.AbortWithStatusJSON(appErr.HTTPStatus, body)
}
