package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/intakehub/intake-go/contracts"
)

func TestIntakeCompletedDispatcher(t *testing.T) {
	newReady := func() (*IntakeCompletedDispatcher, *mockChannel) {
		ch := &mockChannel{}
		provider := &mockProvider{}
		provider.On("Channel", mock.Anything).Return(ch, nil)
		ch.On("IsClosed").Return(false).Maybe()
		ch.On("ExchangeDeclare", "intake_events", "topic", true, false, false, false, amqp.Table(nil)).Return(nil)
		return NewIntakeCompletedDispatcher(provider), ch
	}

	t.Run("dispatch publishes a typed event under intake.completed", func(t *testing.T) {
		d, ch := newReady()

		var published amqp.Publishing
		ch.On("PublishWithContext", mock.Anything, "intake_events", "intake.completed", false, false, mock.Anything).
			Run(func(args mock.Arguments) {
				published = args.Get(5).(amqp.Publishing)
			}).
			Return(nil).Once()

		err := d.Dispatch(context.Background(), "form-42", contracts.IntakeCompletedPayload{
			FormID:      "form-42",
			SubmittedBy: "clerk-7",
			Answers:     map[string]any{"consent": true},
		})
		require.NoError(t, err)

		assert.Equal(t, contracts.EventTypeIntakeCompleted, published.Type)

		var wire map[string]any
		require.NoError(t, json.Unmarshal(published.Body, &wire))
		assert.Equal(t, contracts.EventTypeIntakeCompleted, wire["eventType"])
		assert.Equal(t, "form-42", wire["aggregateId"])

		payload, ok := wire["payload"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "form-42", payload["formId"])
		assert.Equal(t, "clerk-7", payload["submittedBy"])

		ch.AssertExpectations(t)
	})

	t.Run("round trip back to the typed payload", func(t *testing.T) {
		d, ch := newReady()

		var body []byte
		ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, false, false, mock.Anything).
			Run(func(args mock.Arguments) {
				body = args.Get(5).(amqp.Publishing).Body
			}).
			Return(nil).Once()

		want := contracts.IntakeCompletedPayload{
			FormID:      "form-9",
			SubmittedBy: "clerk-1",
			Answers:     map[string]any{"age": "34"},
		}
		require.NoError(t, d.Dispatch(context.Background(), "form-9", want))

		evt, err := contracts.Decode(body)
		require.NoError(t, err)
		got, err := contracts.IntakeCompletedFrom(evt)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("batch preserves order and reports per item", func(t *testing.T) {
		d, ch := newReady()

		var keys []string
		publish := ch.On("PublishWithContext", mock.Anything, mock.Anything, mock.Anything, false, false, mock.Anything)
		publish.Run(func(args mock.Arguments) {
			keys = append(keys, args.Get(2).(string))
			if len(keys) == 2 {
				publish.ReturnArguments = mock.Arguments{errors.New("channel gone")}
			} else {
				publish.ReturnArguments = mock.Arguments{nil}
			}
		})

		results := d.DispatchBatch(context.Background(), []IntakeCompletion{
			{AggregateID: "form-1", Payload: contracts.IntakeCompletedPayload{FormID: "form-1"}},
			{AggregateID: "form-2", Payload: contracts.IntakeCompletedPayload{FormID: "form-2"}},
			{AggregateID: "form-3", Payload: contracts.IntakeCompletedPayload{FormID: "form-3"}},
		})

		require.Len(t, results, 3)
		assert.True(t, results[0].Ok())
		assert.False(t, results[1].Ok())
		assert.True(t, results[2].Ok())

		var pubErr *PublishError
		require.ErrorAs(t, results[1].Err, &pubErr)
		assert.Equal(t, contracts.EventTypeIntakeCompleted, pubErr.EventType)

		assert.Equal(t, []string{"intake.completed", "intake.completed", "intake.completed"}, keys)
	})

	t.Run("empty batch publishes nothing", func(t *testing.T) {
		d, _ := newReady()
		assert.Empty(t, d.DispatchBatch(context.Background(), nil))
	})

	t.Run("config exposes the underlying dispatcher settings", func(t *testing.T) {
		d := NewIntakeCompletedDispatcher(&mockProvider{}, WithDispatcherConfig(DispatcherConfig{
			Exchange:     "intake_events_v2",
			ExchangeType: "topic",
			Durable:      true,
		}))

		assert.Equal(t, "intake_events_v2", d.Config().Exchange)
	})

	t.Run("initialize delegates to the dispatcher", func(t *testing.T) {
		ch := &mockChannel{}
		provider := &mockProvider{}
		provider.On("Channel", mock.Anything).Return(ch, nil).Once()
		ch.On("ExchangeDeclare", "intake_events", "topic", true, false, false, false, amqp.Table(nil)).Return(nil).Once()

		d := NewIntakeCompletedDispatcher(provider)
		require.NoError(t, d.Initialize(context.Background()))
		ch.AssertExpectations(t)
	})
}
