package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/intakehub/intake-go/contracts"
)

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) Record(ctx context.Context, eventID, formID, submittedBy string) (bool, error) {
	args := m.Called(ctx, eventID, formID, submittedBy)
	return args.Bool(0), args.Error(1)
}

func TestReceiptHandler(t *testing.T) {
	newEvent := func() *contracts.DomainEvent {
		return contracts.NewIntakeCompleted("form-1", contracts.IntakeCompletedPayload{
			FormID:      "form-1",
			SubmittedBy: "clerk-7",
			Answers:     map[string]any{"consent": true},
		})
	}

	t.Run("records a receipt", func(t *testing.T) {
		evt := newEvent()
		recorder := &mockRecorder{}
		recorder.On("Record", mock.Anything, evt.ID(), "form-1", "clerk-7").Return(true, nil)

		err := NewReceiptHandler(recorder, nil).Handle(context.Background(), evt)
		require.NoError(t, err)
		recorder.AssertExpectations(t)
	})

	t.Run("duplicate delivery is not an error", func(t *testing.T) {
		evt := newEvent()
		recorder := &mockRecorder{}
		recorder.On("Record", mock.Anything, evt.ID(), "form-1", "clerk-7").Return(false, nil)

		assert.NoError(t, NewReceiptHandler(recorder, nil).Handle(context.Background(), evt))
	})

	t.Run("storage failure propagates for requeue", func(t *testing.T) {
		evt := newEvent()
		recorder := &mockRecorder{}
		recorder.On("Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(false, errors.New("connection reset"))

		err := NewReceiptHandler(recorder, nil).Handle(context.Background(), evt)
		assert.ErrorContains(t, err, "connection reset")
	})

	t.Run("wrong event type is rejected", func(t *testing.T) {
		evt := contracts.NewDomainEvent("FormCreated", "form-1", nil)

		err := NewReceiptHandler(&mockRecorder{}, nil).Handle(context.Background(), evt)
		assert.ErrorIs(t, err, contracts.ErrWrongEventType)
	})
}

func TestNotifyHandler(t *testing.T) {
	t.Run("accepts a completion event", func(t *testing.T) {
		evt := contracts.NewIntakeCompleted("form-1", contracts.IntakeCompletedPayload{
			FormID:      "form-1",
			SubmittedBy: "clerk-7",
		})

		assert.NoError(t, NewNotifyHandler(nil).Handle(context.Background(), evt))
	})

	t.Run("wrong event type is rejected", func(t *testing.T) {
		evt := contracts.NewDomainEvent("FormCreated", "form-1", nil)

		err := NewNotifyHandler(nil).Handle(context.Background(), evt)
		assert.ErrorIs(t, err, contracts.ErrWrongEventType)
	})
}
