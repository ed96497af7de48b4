// Package security provides security middleware and checks for the connector.
package security

import (
	"github.com/gin-gonic/gin"
)

// HeadersMiddleware adds security headers to all responses. The connector
// serves JSON only, so the CSP denies everything and forbids framing.
func HeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Prevent MIME type sniffing
		c.Header("X-Content-Type-Options", "nosniff")

		// Prevent clickjacking
		c.Header("X-Frame-Options", "DENY")

		// Referrer policy
		c.Header("Referrer-Policy", "no-referrer")

		// Content Security Policy
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Responses are per-request verdicts and must never be cached
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}
