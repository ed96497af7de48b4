// Package event defines the canonical event schema shared by decision
// requests and telemetry sent to the Humifortis SaaS.
//
// Events are value objects: whoever builds one owns it until it is handed to
// the sink, after which it is immutable and discarded once the delivery
// attempt finishes. There is no retry queue and no persistence.
package event

import (
	"fmt"
	"time"
)

const (
	// EntityTypeUser is the only entity type this connector produces.
	EntityTypeUser = "user"

	// Source identifies this connector on the wire.
	Source = "keycloak"

	// Provider is the identity-provider segment of entity ids.
	Provider = "keycloak"
)

// Event is the normalized representation of an identity event, independent of
// Keycloak's native event shape.
type Event struct {
	EntityID   string    `json:"entity_id"`
	EntityType string    `json:"entity_type"`
	EventType  string    `json:"event_type"`
	Source     string    `json:"source"`
	Timestamp  string    `json:"timestamp"`
	Metadata   *Metadata `json:"metadata,omitempty"`
}

// EntityID builds the canonical subject key for a user within a realm.
// Format: user:<provider>:<realm>:<identifier>. Deterministic: the same
// (realm, identifier) pair always yields the same id.
func EntityID(realm, identifier string) string {
	return fmt.Sprintf("user:%s:%s:%s", Provider, realm, identifier)
}

// FormatTimestamp renders t as an ISO-8601 UTC instant with millisecond
// precision, matching what the SaaS expects.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
