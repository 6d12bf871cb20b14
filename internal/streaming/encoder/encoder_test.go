package encoder

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auditstream/internal/streaming/models"
)

func testEvent() *models.AuditEvent {
	id := uuid.New()
	return &models.AuditEvent{
		ID:         &id,
		EntityType: "Project",
		EntityID:   "42",
		EntityPath: "acme/payments",
		Author:     "alice",
		IPAddress:  "203.0.113.7",
		Timestamp:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Details:    map[string]any{"change": "approval_rules"},
	}
}

func decode(t *testing.T, buf []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf, &m))
	return m
}

func TestEncodeInjectsEventTypeAndID(t *testing.T) {
	event := testEvent()

	buf, truncated, err := Encode(event, "update_approval_rules")
	require.NoError(t, err)
	assert.False(t, truncated)

	got := decode(t, buf)
	assert.Equal(t, "update_approval_rules", got["event_type"])
	assert.Equal(t, event.ID.String(), got["id"])
	assert.Equal(t, "Project", got["entity_type"])
	assert.Equal(t, "acme/payments", got["entity_path"])
	assert.Equal(t, "alice", got["author"])
	assert.NotContains(t, got, "truncated")
}

func TestEncodeSubstitutesFreshIDForStreamOnlyEvents(t *testing.T) {
	event := testEvent()
	event.ID = nil

	first, _, err := Encode(event, "login")
	require.NoError(t, err)
	second, _, err := Encode(event, "login")
	require.NoError(t, err)

	firstID, err := uuid.Parse(decode(t, first)["id"].(string))
	require.NoError(t, err)
	secondID, err := uuid.Parse(decode(t, second)["id"].(string))
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID, "each encode must carry a unique identifier")
}

func TestEncodeEnforcesSizeCeiling(t *testing.T) {
	event := testEvent()
	// A details map that serializes to roughly 40 MiB.
	event.Details = map[string]any{
		"dump":  strings.Repeat("x", 38<<20),
		"extra": strings.Repeat("y", 2<<20),
		"small": "kept",
	}

	buf, truncated, err := Encode(event, "huge")
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.LessOrEqual(t, len(buf), MaxPayloadBytes)

	got := decode(t, buf)
	assert.Equal(t, true, got["truncated"])
	details, ok := got["details"].(map[string]any)
	require.True(t, ok, "details should survive via string truncation")
	assert.Equal(t, "kept", details["small"])
	assert.LessOrEqual(t, len(details["dump"].(string)), maxStringLeaf+len(truncationSuffix))
}

func TestEncodeEnforcesCeilingOnEnvelopeFields(t *testing.T) {
	event := testEvent()
	event.Details = nil
	event.Author = strings.Repeat("a", 26<<20)

	buf, truncated, err := Encode(event, "huge_envelope")
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.LessOrEqual(t, len(buf), MaxPayloadBytes)

	got := decode(t, buf)
	assert.Equal(t, true, got["truncated"])
	author := got["author"].(string)
	assert.LessOrEqual(t, len(author), maxStringLeaf+len(truncationSuffix))
	assert.True(t, strings.HasSuffix(author, truncationSuffix))
}

func TestEncodeEnforcesCeilingWhenEnvelopeAndDetailsAreHuge(t *testing.T) {
	event := testEvent()
	event.EntityPath = strings.Repeat("p", 26<<20)
	event.Details = map[string]any{"bad": make(chan int)}

	buf, truncated, err := Encode(event, "huge_everything")
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.LessOrEqual(t, len(buf), MaxPayloadBytes)
	assert.NotContains(t, decode(t, buf), "details")
}

func TestEncodeDropsLargestKeysWhenTruncationIsNotEnough(t *testing.T) {
	event := testEvent()
	// Many moderately sized leaves: no single truncation pass can fix this,
	// so whole keys must be dropped largest-first.
	details := make(map[string]any, 16000)
	for i := 0; i < 16000; i++ {
		details[uuid.NewString()] = strings.Repeat("z", 2048)
	}
	details["tiny"] = "still here"
	event.Details = details

	buf, truncated, err := Encode(event, "bulky")
	require.NoError(t, err)
	assert.True(t, truncated)
	assert.LessOrEqual(t, len(buf), MaxPayloadBytes)
	assert.Equal(t, true, decode(t, buf)["truncated"])
}

func TestEncodeDropsUnserializableDetails(t *testing.T) {
	event := testEvent()
	event.Details = map[string]any{"bad": make(chan int)}

	buf, truncated, err := Encode(event, "weird")
	require.NoError(t, err)
	assert.True(t, truncated)

	got := decode(t, buf)
	assert.Equal(t, true, got["truncated"])
	assert.NotContains(t, got, "details")
}

func TestEncodeDoesNotMutateTheEvent(t *testing.T) {
	event := testEvent()
	big := strings.Repeat("a", 30<<20)
	event.Details = map[string]any{
		"nested": map[string]any{"blob": big},
	}

	_, _, err := Encode(event, "update")
	require.NoError(t, err)

	nested := event.Details["nested"].(map[string]any)
	assert.Len(t, nested["blob"], len(big), "shared event must stay untouched")
}
