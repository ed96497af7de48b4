// Package risk defines the decision contract returned by the Humifortis risk
// API. The connector never computes risk itself; it only parses and enforces
// what the SaaS decides.
package risk

import "encoding/json"

// Action is the SaaS verdict on a login attempt.
type Action string

const (
	ActionAllow        Action = "ALLOW"
	ActionChallengeMFA Action = "CHALLENGE_MFA"
	ActionBlock        Action = "BLOCK"
)

// Valid reports whether a is one of the three known verdicts. A decision
// parsed off the wire with any other action is a protocol error, not a
// decision.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionChallengeMFA, ActionBlock:
		return true
	}
	return false
}

// DefaultAllowReason is attached when the SaaS has no record of an entity.
// Absence of history is not risk.
const DefaultAllowReason = "New entity, default allow"

// Decision is a risk verdict for one entity. TTLSeconds is advisory only;
// the connector does not cache decisions.
type Decision struct {
	EntityID      string         `json:"entity_id,omitempty"`
	Action        Action         `json:"action"`
	Reason        string         `json:"reason,omitempty"`
	MessageToUser string         `json:"message_to_user,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	TTLSeconds    *int           `json:"ttl_seconds,omitempty"`
	Timestamp     string         `json:"timestamp,omitempty"`
}

// DefaultAllow is the decision used when the SaaS returns 404 for an entity.
func DefaultAllow() *Decision {
	return &Decision{
		Action: ActionAllow,
		Reason: DefaultAllowReason,
	}
}

// RiskScore extracts the integer risk_score from the decision metadata, if
// the SaaS included one.
func (d *Decision) RiskScore() (int, bool) {
	if d.Metadata == nil {
		return 0, false
	}
	switch v := d.Metadata["risk_score"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), true
		}
	}
	return 0, false
}
