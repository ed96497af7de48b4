package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/humifortis/keycloak-connector/internal/authenticator"
	"github.com/humifortis/keycloak-connector/internal/circuitbreaker"
	"github.com/humifortis/keycloak-connector/internal/keycloak"
	"github.com/humifortis/keycloak-connector/internal/saas"
	"github.com/humifortis/keycloak-connector/internal/validation"
)

// -----------------------------------------------------------------------------
// Health & info
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	checks := make(map[string]string)

	if err := s.cfg.Validate(); err != nil {
		checks["config"] = "unhealthy"
	} else {
		checks["config"] = "healthy"
	}

	// An open circuit means decision lookups are failing fast and logins are
	// resolving via the fallback policy.
	if s.client.CircuitState() == circuitbreaker.StateOpen {
		checks["saas"] = "unhealthy"
	} else {
		checks["saas"] = "healthy"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	for _, v := range checks {
		if v != "healthy" {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   saas.ConnectorVersion,
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "keycloak-connector",
		"description": "Risk-based authentication connector for Keycloak",
		"version":     saas.ConnectorVersion,
		"provider":    saas.ConnectorType,
	})
}

// -----------------------------------------------------------------------------
// Hooks
// -----------------------------------------------------------------------------

// authHookHandler handles POST /v1/hooks/auth. The identity provider calls
// it once per login attempt and renders the verdict: success continues the
// flow, challenge triggers the next factor, denied shows the page.
//
// The verdict is always delivered with HTTP 200; 4xx here means the hook
// call itself was malformed, not that the login was denied.
func (s *Server) authHookHandler(c *gin.Context) {
	var attempt authenticator.Attempt
	if err := c.ShouldBindJSON(&attempt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.Required("realm", attempt.Realm),
		validation.ValidRealm("realm", attempt.Realm),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": errs.Error(),
		})
		return
	}

	result := s.authenticator.Authenticate(c.Request.Context(), &attempt)
	c.JSON(http.StatusOK, result)
}

// eventsHookHandler handles POST /v1/hooks/events. Delivery to the SaaS is
// fire-and-forget, so the hook acknowledges with 202 as soon as the event is
// handed off; unmonitored or untranslatable events are silently dropped.
func (s *Server) eventsHookHandler(c *gin.Context) {
	var ev keycloak.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if ev.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "type: is required",
		})
		return
	}

	s.forwarder.OnEvent(&ev)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}

// adminEventsHookHandler handles POST /v1/hooks/admin-events.
func (s *Server) adminEventsHookHandler(c *gin.Context) {
	var req struct {
		keycloak.AdminEvent
		IncludeRepresentation bool `json:"includeRepresentation"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if req.OperationType == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "operationType: is required",
		})
		return
	}

	s.forwarder.OnAdminEvent(&req.AdminEvent, req.IncludeRepresentation)
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
}
