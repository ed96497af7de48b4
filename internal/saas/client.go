// Package saas implements the HTTP client for the Humifortis risk API: a
// synchronous decision lookup and a fire-and-forget telemetry sink.
//
// The two calls have deliberately different failure semantics. A decision
// lookup blocks the login flow and surfaces a ServiceError so the caller can
// apply its fallback policy. An event send runs detached from the caller,
// is attempted exactly once, and its failure is logged and swallowed;
// telemetry must never add latency or errors to the authentication path.
package saas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/humifortis/keycloak-connector/internal/circuitbreaker"
	"github.com/humifortis/keycloak-connector/internal/metrics"
	"github.com/humifortis/keycloak-connector/internal/risk"
	"github.com/humifortis/keycloak-connector/internal/traces"
)

// Connector identity sent with every event post.
const (
	ConnectorType    = "keycloak"
	ConnectorVersion = "1.0.0"
)

const maxErrorBody = 512

// Config carries the client's connection settings.
type Config struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the Humifortis SaaS.
type Client struct {
	apiURL  string
	apiKey  string
	http    *http.Client
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
	closed  atomic.Bool // once set, new event sends are dropped

	// sendObserver, when set, is invoked after each detached event delivery
	// attempt with the outcome. Used by tests; production wiring leaves it nil.
	sendObserver func(eventType string, err error)
}

// Option configures the client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithBreaker guards decision lookups with a circuit breaker. While the
// circuit is open, GetRiskDecision fails fast with a ServiceError.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithSendObserver registers a hook called after each event delivery attempt.
func WithSendObserver(fn func(eventType string, err error)) Option {
	return func(c *Client) { c.sendObserver = fn }
}

// NewClient creates a client for the given SaaS endpoint.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CircuitState reports the decision circuit's current state. Health checks
// use it to surface a degraded SaaS without probing it.
func (c *Client) CircuitState() circuitbreaker.State {
	if c.breaker == nil {
		return circuitbreaker.StateClosed
	}
	return c.breaker.State()
}

// GetRiskDecision fetches the SaaS verdict for an entity. It returns the
// default ALLOW decision on 404 (no history is not risk) and a ServiceError
// on anything else that is not a well-formed 200. The client never decides
// allow versus deny on its own.
func (c *Client) GetRiskDecision(ctx context.Context, entityID string) (*risk.Decision, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		metrics.DecisionRequestsTotal.WithLabelValues("error").Inc()
		return nil, &ServiceError{Op: "decision", Err: ErrCircuitOpen}
	}

	ctx, span := traces.StartSpan(ctx, "saas.GetRiskDecision", traces.EntityID(entityID))
	defer span.End()

	timer := prometheus.NewTimer(metrics.DecisionRequestDuration)
	defer timer.ObserveDuration()

	reqURL := c.apiURL + "/risk/" + url.PathEscape(entityID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, c.decisionFailure(&ServiceError{Op: "decision", Err: err})
	}
	req.Header.Set("X-API-Key", c.apiKey)

	c.logger.Debug("requesting risk decision", "entity_id", entityID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.decisionFailure(&ServiceError{Op: "decision", Err: err})
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var d risk.Decision
		if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
			return nil, c.decisionFailure(&ServiceError{Op: "decision", Err: fmt.Errorf("decode decision: %w", err)})
		}
		if !d.Action.Valid() {
			return nil, c.decisionFailure(&ServiceError{Op: "decision", Err: fmt.Errorf("decision has invalid action %q", d.Action)})
		}
		if c.breaker != nil {
			c.breaker.RecordSuccess()
		}
		span.SetAttributes(traces.Action(string(d.Action)))
		metrics.DecisionRequestsTotal.WithLabelValues(actionResult(d.Action)).Inc()
		score, _ := d.RiskScore()
		c.logger.Debug("risk decision received",
			"entity_id", entityID,
			"action", d.Action,
			"risk_score", score,
		)
		return &d, nil

	case resp.StatusCode == http.StatusNotFound:
		if c.breaker != nil {
			c.breaker.RecordSuccess()
		}
		metrics.DecisionRequestsTotal.WithLabelValues("default_allow").Inc()
		c.logger.Debug("entity unknown to SaaS, defaulting to allow", "entity_id", entityID)
		return risk.DefaultAllow(), nil

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, c.decisionFailure(&ServiceError{
			Op:     "decision",
			Status: resp.StatusCode,
			Body:   string(body),
		})
	}
}

// decisionFailure records a failed decision lookup and returns err.
func (c *Client) decisionFailure(err *ServiceError) error {
	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
	metrics.DecisionRequestsTotal.WithLabelValues("error").Inc()
	return err
}

func actionResult(a risk.Action) string {
	switch a {
	case risk.ActionAllow:
		return "allow"
	case risk.ActionChallengeMFA:
		return "challenge_mfa"
	case risk.ActionBlock:
		return "block"
	default:
		return "unknown"
	}
}
