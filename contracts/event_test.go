package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainEvent(t *testing.T) {
	t.Run("assigns id and timestamp at construction", func(t *testing.T) {
		before := time.Now().UTC()
		evt := NewDomainEvent("IntakeCompleted", "form-123", map[string]any{"formId": "form-123"})
		after := time.Now().UTC()

		assert.NotEmpty(t, evt.ID())
		assert.Equal(t, "IntakeCompleted", evt.Type())
		assert.Equal(t, "form-123", evt.AggregateID())
		assert.False(t, evt.OccurredOn().Before(before))
		assert.False(t, evt.OccurredOn().After(after))
	})

	t.Run("generates unique ids", func(t *testing.T) {
		a := NewDomainEvent("FormCreated", "f1", nil)
		b := NewDomainEvent("FormCreated", "f1", nil)
		assert.NotEqual(t, a.ID(), b.ID())
	})

	t.Run("payload is copied from the caller", func(t *testing.T) {
		payload := map[string]any{"score": 42}
		evt := NewDomainEvent("FormCreated", "f1", payload)

		payload["score"] = 0
		v, ok := evt.PayloadValue("score")
		require.True(t, ok)
		assert.Equal(t, 42, v)
	})

	t.Run("Payload returns a copy", func(t *testing.T) {
		evt := NewDomainEvent("FormCreated", "f1", map[string]any{"a": "b"})
		evt.Payload()["a"] = "mutated"

		v, _ := evt.PayloadValue("a")
		assert.Equal(t, "b", v)
	})

	t.Run("nil payload becomes empty map", func(t *testing.T) {
		evt := NewDomainEvent("FormCreated", "f1", nil)
		assert.NotNil(t, evt.Payload())
		assert.Empty(t, evt.Payload())
	})
}

func TestEncodeDecode(t *testing.T) {
	t.Run("round trip preserves fields", func(t *testing.T) {
		evt := NewDomainEvent("IntakeCompleted", "form-9", map[string]any{
			"formId":      "form-9",
			"submittedBy": "alice",
		})

		body, err := evt.Encode()
		require.NoError(t, err)

		decoded, err := Decode(body)
		require.NoError(t, err)

		assert.Equal(t, evt.ID(), decoded.ID())
		assert.Equal(t, evt.Type(), decoded.Type())
		assert.Equal(t, evt.AggregateID(), decoded.AggregateID())
		assert.WithinDuration(t, evt.OccurredOn(), decoded.OccurredOn(), time.Second)

		v, ok := decoded.PayloadValue("submittedBy")
		require.True(t, ok)
		assert.Equal(t, "alice", v)
	})

	t.Run("wire form uses canonical keys", func(t *testing.T) {
		evt := NewDomainEvent("FormCreated", "f1", map[string]any{"k": "v"})
		body, err := evt.Encode()
		require.NoError(t, err)

		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(body, &raw))
		for _, key := range []string{"eventId", "eventType", "occurredOn", "aggregateId", "payload"} {
			assert.Contains(t, raw, key)
		}
	})

	t.Run("decode rejects malformed body", func(t *testing.T) {
		_, err := Decode([]byte("not json"))
		assert.ErrorIs(t, err, ErrDecodeFailed)
	})

	t.Run("decode rejects missing eventType", func(t *testing.T) {
		_, err := Decode([]byte(`{"eventId":"x","aggregateId":"y","occurredOn":"2026-01-02T15:04:05Z","payload":{}}`))
		assert.ErrorIs(t, err, ErrDecodeFailed)
	})

	t.Run("decode rejects bad timestamp", func(t *testing.T) {
		_, err := Decode([]byte(`{"eventId":"x","eventType":"FormCreated","occurredOn":"yesterday","aggregateId":"y","payload":{}}`))
		assert.ErrorIs(t, err, ErrDecodeFailed)
	})
}

func TestIntakeCompleted(t *testing.T) {
	t.Run("wraps typed payload", func(t *testing.T) {
		evt := NewIntakeCompleted("form-1", IntakeCompletedPayload{
			FormID:      "form-1",
			SubmittedBy: "bob",
			Answers:     map[string]any{"q1": "yes"},
		})

		assert.Equal(t, EventTypeIntakeCompleted, evt.Type())
		assert.Equal(t, "form-1", evt.AggregateID())

		v, ok := evt.PayloadValue("submittedBy")
		require.True(t, ok)
		assert.Equal(t, "bob", v)
	})

	t.Run("typed view survives the wire", func(t *testing.T) {
		evt := NewIntakeCompleted("form-2", IntakeCompletedPayload{
			FormID:      "form-2",
			SubmittedBy: "carol",
			Answers:     map[string]any{"q1": "no"},
		})

		body, err := evt.Encode()
		require.NoError(t, err)
		decoded, err := Decode(body)
		require.NoError(t, err)

		p, err := IntakeCompletedFrom(decoded)
		require.NoError(t, err)
		assert.Equal(t, "form-2", p.FormID)
		assert.Equal(t, "carol", p.SubmittedBy)
		assert.Equal(t, "no", p.Answers["q1"])
	})

	t.Run("rejects other event types", func(t *testing.T) {
		evt := NewDomainEvent("FormCreated", "f1", nil)
		_, err := IntakeCompletedFrom(evt)
		assert.ErrorIs(t, err, ErrWrongEventType)
	})
}
