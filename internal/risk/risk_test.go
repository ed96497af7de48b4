package risk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionValid(t *testing.T) {
	assert.True(t, ActionAllow.Valid())
	assert.True(t, ActionChallengeMFA.Valid())
	assert.True(t, ActionBlock.Valid())
	assert.False(t, Action("").Valid())
	assert.False(t, Action("QUARANTINE").Valid())
}

func TestDefaultAllow(t *testing.T) {
	d := DefaultAllow()
	assert.Equal(t, ActionAllow, d.Action)
	assert.Equal(t, DefaultAllowReason, d.Reason)

	_, ok := d.RiskScore()
	assert.False(t, ok)
}

func TestDecisionParse(t *testing.T) {
	body := `{
		"entity_id": "user:keycloak:acme:alice",
		"action": "BLOCK",
		"reason": "credential stuffing",
		"message_to_user": "Contact your administrator.",
		"metadata": {"risk_score": 92, "model": "v3"},
		"ttl_seconds": 300
	}`

	var d Decision
	require.NoError(t, json.Unmarshal([]byte(body), &d))

	assert.Equal(t, ActionBlock, d.Action)
	assert.Equal(t, "credential stuffing", d.Reason)
	assert.Equal(t, "Contact your administrator.", d.MessageToUser)
	require.NotNil(t, d.TTLSeconds)
	assert.Equal(t, 300, *d.TTLSeconds)

	score, ok := d.RiskScore()
	require.True(t, ok)
	assert.Equal(t, 92, score)
}

func TestRiskScoreMissingOrMalformed(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]any
	}{
		{"nil metadata", nil},
		{"no key", map[string]any{"model": "v3"}},
		{"non-numeric", map[string]any{"risk_score": "high"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decision{Action: ActionAllow, Metadata: tt.meta}
			_, ok := d.RiskScore()
			assert.False(t, ok)
		})
	}
}
