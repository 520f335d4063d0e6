package messaging

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
)

// mockChannel implements Channel for tests.
type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	callArgs := m.Called(name, kind, durable, autoDelete, internal, noWait, args)
	return callArgs.Error(0)
}

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	callArgs := m.Called(name, durable, autoDelete, exclusive, noWait, args)
	return callArgs.Get(0).(amqp.Queue), callArgs.Error(1)
}

func (m *mockChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	callArgs := m.Called(name, key, exchange, noWait, args)
	return callArgs.Error(0)
}

func (m *mockChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	callArgs := m.Called(prefetchCount, prefetchSize, global)
	return callArgs.Error(0)
}

func (m *mockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	callArgs := m.Called(ctx, exchange, key, mandatory, immediate, msg)
	return callArgs.Error(0)
}

func (m *mockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	callArgs := m.Called(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
	if callArgs.Get(0) == nil {
		return nil, callArgs.Error(1)
	}
	return callArgs.Get(0).(chan amqp.Delivery), callArgs.Error(1)
}

func (m *mockChannel) IsClosed() bool {
	callArgs := m.Called()
	return callArgs.Bool(0)
}

func (m *mockChannel) Close() error {
	callArgs := m.Called()
	return callArgs.Error(0)
}

// mockProvider implements ChannelProvider for tests.
type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Channel(ctx context.Context) (Channel, error) {
	callArgs := m.Called(ctx)
	if callArgs.Get(0) == nil {
		return nil, callArgs.Error(1)
	}
	return callArgs.Get(0).(Channel), callArgs.Error(1)
}

func (m *mockProvider) CreateChannel(ctx context.Context) (Channel, error) {
	callArgs := m.Called(ctx)
	if callArgs.Get(0) == nil {
		return nil, callArgs.Error(1)
	}
	return callArgs.Get(0).(Channel), callArgs.Error(1)
}

// mockAcknowledger implements amqp.Acknowledger for tests.
type mockAcknowledger struct {
	mock.Mock
}

func (m *mockAcknowledger) Ack(tag uint64, multiple bool) error {
	callArgs := m.Called(tag, multiple)
	return callArgs.Error(0)
}

func (m *mockAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	callArgs := m.Called(tag, multiple, requeue)
	return callArgs.Error(0)
}

func (m *mockAcknowledger) Reject(tag uint64, requeue bool) error {
	callArgs := m.Called(tag, requeue)
	return callArgs.Error(0)
}
