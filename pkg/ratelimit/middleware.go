package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"gatherly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

// rate limiting middleware
func Middleware(rateLimiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get client IP
		clientIP := getClientIP(c)

		// Determine rate limit type from route
		limitType := getRateLimitType(c.FullPath())

		// Check rate limit
		result, err := rateLimiter.IsAllowed(c.Request.Context(), clientIP, limitType)
		if err != nil {
			response.RespondJSON(c, "error", http.StatusInternalServerError,
				"Rate limit check failed", nil, nil)
			c.Abort()
			return
		}

		// Set rate limit headers
		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", result.Limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetTime))

		// Check if rate limited
		if !result.Allowed {
			response.RespondJSON(c, "error", http.StatusTooManyRequests,
				"Rate limit exceeded", nil, []string{
					fmt.Sprintf("limit of %d requests reached, window resets at %d", result.Limit, result.ResetTime),
				})
			c.Abort()
			return
		}

		c.Next()
	}
}

// maps a route to its rate limit budget
func getRateLimitType(path string) RateLimitType {
	switch {
	// Health/monitoring endpoints
	case strings.HasPrefix(path, "/health"),
		strings.HasPrefix(path, "/metrics"),
		strings.HasPrefix(path, "/ping"):
		return RateLimitTypeHealth

	// Authentication endpoints
	case strings.Contains(path, "/auth/"):
		return RateLimitTypeAuth

	// Registration mutations, including waitlist-sensitive paths
	case strings.Contains(path, "/register"),
		strings.Contains(path, "/registrations"),
		strings.Contains(path, "/waitlist"):
		return RateLimitTypeRegistration

	// Admin surfaces
	case strings.Contains(path, "/audit"),
		strings.Contains(path, "/publish"),
		strings.Contains(path, "/unpublish"):
		return RateLimitTypeAdmin

	// Public browsing endpoints
	case strings.Contains(path, "/events"):
		return RateLimitTypePublic

	// User-specific endpoints
	case strings.Contains(path, "/users/"):
		return RateLimitTypeUser

	default:
		return RateLimitTypeDefault
	}
}

// extracts real client IP
func getClientIP(c *gin.Context) string {
	// Check X-Forwarded-For header
	xForwardedFor := c.GetHeader("X-Forwarded-For")
	if xForwardedFor != "" {
		ips := strings.Split(xForwardedFor, ",")
		if len(ips) > 0 {
			ip := strings.TrimSpace(ips[0])
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	// Check X-Real-IP header
	xRealIP := c.GetHeader("X-Real-IP")
	if xRealIP != "" {
		if net.ParseIP(xRealIP) != nil {
			return xRealIP
		}
	}

	// Fall back to RemoteAddr
	ip, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}

	return ip
}
