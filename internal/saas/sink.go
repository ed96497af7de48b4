package saas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/humifortis/keycloak-connector/internal/event"
	"github.com/humifortis/keycloak-connector/internal/metrics"
	"github.com/humifortis/keycloak-connector/internal/risk"
	"github.com/humifortis/keycloak-connector/internal/traces"
)

// SendEventAsync delivers a canonical event to the SaaS on a detached
// goroutine. The caller never waits and never observes the outcome: delivery
// is attempted exactly once and failures are logged at warning level. After
// Close, events are dropped immediately.
func (c *Client) SendEventAsync(ev *event.Event) {
	if c.closed.Load() {
		c.logger.Debug("client closed, dropping event", "event_type", ev.EventType)
		c.observeSend(ev.EventType, fmt.Errorf("saas: client closed"))
		return
	}

	go func() {
		err := c.postEvent(context.Background(), ev)
		if err != nil {
			metrics.EventDeliveriesTotal.WithLabelValues("error").Inc()
			c.logger.Warn("failed to send event",
				"event_type", ev.EventType,
				"entity_id", ev.EntityID,
				"error", err,
			)
		} else {
			metrics.EventDeliveriesTotal.WithLabelValues("ok").Inc()
			c.logger.Debug("event sent", "event_type", ev.EventType, "entity_id", ev.EntityID)
		}
		c.observeSend(ev.EventType, err)
	}()
}

// SendBlockEventAsync emits the auth_login_blocked telemetry event for a
// blocked login, carrying the decision's reason and risk score when present.
// Fire-and-forget like any other event.
func (c *Client) SendBlockEventAsync(entityID string, d *risk.Decision) {
	md := event.NewMetadata()
	md.SetString("reason", d.Reason)
	if score, ok := d.RiskScore(); ok {
		md.SetInt("risk_score", int64(score))
	}

	c.SendEventAsync(&event.Event{
		EntityID:   entityID,
		EntityType: event.EntityTypeUser,
		EventType:  "auth_login_blocked",
		Source:     event.Source,
		Timestamp:  event.FormatTimestamp(time.Now()),
		Metadata:   md,
	})
}

// Close stops the client from accepting new event sends. Decision lookups
// are unaffected; the gateway stops routing to them separately.
func (c *Client) Close() {
	c.closed.Store(true)
}

// postEvent performs one delivery attempt. Any non-2xx status is a failure.
func (c *Client) postEvent(ctx context.Context, ev *event.Event) error {
	ctx, span := traces.StartSpan(ctx, "saas.SendEvent",
		traces.EntityID(ev.EntityID), traces.EventType(ev.EventType))
	defer span.End()

	payload, err := json.Marshal(struct {
		Event *event.Event `json:"event"`
	}{Event: ev})
	if err != nil {
		return &ServiceError{Op: "event", Err: fmt.Errorf("marshal event: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/events", bytes.NewReader(payload))
	if err != nil {
		return &ServiceError{Op: "event", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Connector-Type", ConnectorType)
	req.Header.Set("X-Connector-Version", ConnectorVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return &ServiceError{Op: "event", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ServiceError{Op: "event", Status: resp.StatusCode, Body: string(body)}
	}
	return nil
}

func (c *Client) observeSend(eventType string, err error) {
	if c.sendObserver != nil {
		c.sendObserver(eventType, err)
	}
}
