// Package forwarder bridges the identity provider's event stream to the
// SaaS telemetry sink. Nothing in this package may disturb the event bus:
// translation failures are logged and the event is dropped.
package forwarder

import (
	"log/slog"

	"github.com/humifortis/keycloak-connector/internal/event"
	"github.com/humifortis/keycloak-connector/internal/keycloak"
	"github.com/humifortis/keycloak-connector/internal/metrics"
)

// Sink accepts canonical events for fire-and-forget delivery.
type Sink interface {
	SendEventAsync(ev *event.Event)
}

// monitoredEvents is the allow-list of user event kinds forwarded for
// security monitoring. Everything else is dropped before translation.
var monitoredEvents = map[keycloak.EventType]struct{}{
	keycloak.EventLogin:              {},
	keycloak.EventLoginError:         {},
	keycloak.EventLogout:             {},
	keycloak.EventRegister:           {},
	keycloak.EventUpdatePassword:     {},
	keycloak.EventUpdateEmail:        {},
	keycloak.EventResetPassword:      {},
	keycloak.EventResetPasswordError: {},
	keycloak.EventCodeToTokenError:   {},
	keycloak.EventRefreshTokenError:  {},
	keycloak.EventRemoveTOTP:         {},
	keycloak.EventUpdateTOTP:         {},
}

// Forwarder filters, translates, and hands identity events to the sink.
type Forwarder struct {
	sink   Sink
	logger *slog.Logger
}

// New creates a forwarder writing to sink.
func New(sink Sink, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{sink: sink, logger: logger}
}

// OnEvent handles one end-user event from the bus.
func (f *Forwarder) OnEvent(ev *keycloak.Event) {
	f.logger.Debug("event received",
		"type", ev.Type,
		"realm", ev.RealmID,
		"user_id", ev.UserID,
		"client_id", ev.ClientID,
	)

	if _, ok := monitoredEvents[ev.Type]; !ok {
		metrics.EventsFilteredTotal.Inc()
		f.logger.Debug("event type not monitored, skipping", "type", ev.Type)
		return
	}

	ce, err := keycloak.FromEvent(ev)
	if err != nil {
		metrics.EventsDroppedTotal.Inc()
		f.logger.Error("failed to translate event, dropping", "type", ev.Type, "error", err)
		return
	}

	f.sink.SendEventAsync(ce)
	f.logger.Debug("event queued for sending", "type", ev.Type, "user_id", ev.UserID)
}

// OnAdminEvent handles one administrative event. Admin events are always
// forwarded; there is no filter. includeRepresentation mirrors the provider
// flag and is unused: resource representations are never forwarded.
func (f *Forwarder) OnAdminEvent(ae *keycloak.AdminEvent, includeRepresentation bool) {
	ce, err := keycloak.FromAdminEvent(ae)
	if err != nil {
		metrics.EventsDroppedTotal.Inc()
		f.logger.Error("failed to translate admin event, dropping", "operation", ae.OperationType, "error", err)
		return
	}

	f.sink.SendEventAsync(ce)
	f.logger.Debug("admin event queued for sending", "operation", ae.OperationType)
}
