package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityID(t *testing.T) {
	assert.Equal(t, "user:keycloak:acme:alice@example.com", EntityID("acme", "alice@example.com"))

	// Deterministic: same inputs, same id.
	assert.Equal(t, EntityID("acme", "alice@example.com"), EntityID("acme", "alice@example.com"))

	// Realm scoping: same user in different realms gets different ids.
	assert.NotEqual(t, EntityID("acme", "alice"), EntityID("globex", "alice"))
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	assert.Equal(t, "2025-03-14T09:26:53.589Z", FormatTimestamp(ts))

	// Non-UTC input is normalized to UTC.
	loc := time.FixedZone("UTC+2", 2*3600)
	local := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, loc)
	assert.Equal(t, "2025-03-14T07:26:53.589Z", FormatTimestamp(local))
}

func TestMetadataInsertionOrder(t *testing.T) {
	m := NewMetadata()
	m.SetString("realm", "acme")
	m.SetString("client_id", "web")
	m.SetInt("risk_score", 87)
	m.SetBool("remembered", true)

	assert.Equal(t, []string{"realm", "client_id", "risk_score", "remembered"}, m.Keys())

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"realm":"acme","client_id":"web","risk_score":87,"remembered":true}`, string(data))
}

func TestMetadataOverwriteKeepsPosition(t *testing.T) {
	m := NewMetadata()
	m.SetString("a", "1")
	m.SetString("b", "2")
	m.SetString("a", "3")

	assert.Equal(t, []string{"a", "b"}, m.Keys())
	v, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, "3", v.Str)
}

func TestMetadataRoundTrip(t *testing.T) {
	m := NewMetadata()
	m.SetString("realm", "acme")
	m.SetInt("count", -4)
	m.SetBool("ok", false)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var back Metadata
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m.Keys(), back.Keys())

	count, ok := back.Get("count")
	require.True(t, ok)
	assert.Equal(t, KindInt, count.Kind)
	assert.Equal(t, int64(-4), count.Int)

	flag, ok := back.Get("ok")
	require.True(t, ok)
	assert.Equal(t, KindBool, flag.Kind)
	assert.False(t, flag.Bool)
}

func TestValueRejectsFloats(t *testing.T) {
	var v Value
	err := json.Unmarshal([]byte(`1.5`), &v)
	assert.Error(t, err)
}

func TestEventMarshal(t *testing.T) {
	m := NewMetadata()
	m.SetString("realm", "acme")

	ev := Event{
		EntityID:   EntityID("acme", "u-123"),
		EntityType: EntityTypeUser,
		EventType:  "auth_login_success",
		Source:     Source,
		Timestamp:  "2025-03-14T09:26:53.589Z",
		Metadata:   m,
	}

	data, err := json.Marshal(&ev)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "entity_id")
	assert.Contains(t, decoded, "entity_type")
	assert.Contains(t, decoded, "event_type")
	assert.Contains(t, decoded, "source")
	assert.Contains(t, decoded, "timestamp")
	assert.Contains(t, decoded, "metadata")
}
