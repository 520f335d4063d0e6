package rabbitmq

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeDeclaration defines an exchange to be declared.
type ExchangeDeclaration struct {
	Name       string
	Type       string
	Durable    bool
	AutoDelete bool
	Arguments  amqp.Table
}

// QueueDeclaration defines a queue to be declared.
type QueueDeclaration struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	Arguments  amqp.Table
}

// Binding defines a queue-to-exchange binding.
type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
	Arguments  amqp.Table
}

// Topology is a set of broker-resident declarations. Declaration is
// idempotent as long as properties match what already exists.
type Topology struct {
	Exchanges []ExchangeDeclaration
	Queues    []QueueDeclaration
	Bindings  []Binding
}

// Declare applies the topology on the given channel, exchanges first.
func (t Topology) Declare(ch *amqp.Channel) error {
	for _, ex := range t.Exchanges {
		err := ch.ExchangeDeclare(ex.Name, ex.Type, ex.Durable, ex.AutoDelete, false, false, ex.Arguments)
		if err != nil {
			return &TopologyError{Component: "exchange", Name: ex.Name, Err: err, Timestamp: time.Now()}
		}
	}

	for _, q := range t.Queues {
		_, err := ch.QueueDeclare(q.Name, q.Durable, q.AutoDelete, q.Exclusive, false, q.Arguments)
		if err != nil {
			return &TopologyError{Component: "queue", Name: q.Name, Err: err, Timestamp: time.Now()}
		}
	}

	for _, b := range t.Bindings {
		if err := ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, b.Arguments); err != nil {
			return &TopologyError{Component: "binding", Name: b.Queue + "->" + b.Exchange, Err: err, Timestamp: time.Now()}
		}
	}

	return nil
}

// DeadLetterTopology builds the broker-side dead-letter setup for a consumer
// queue. The consumer itself never dead-letters: a permanently failing
// handler nacks with requeue forever, and this topology plus the queue
// arguments from DeadLetterArgs are the operator-level escape hatch.
func DeadLetterTopology(queueName string) Topology {
	dlx := queueName + ".dlx"
	dlq := queueName + ".dlq"
	return Topology{
		Exchanges: []ExchangeDeclaration{
			{Name: dlx, Type: "direct", Durable: true},
		},
		Queues: []QueueDeclaration{
			{Name: dlq, Durable: true},
		},
		Bindings: []Binding{
			{Queue: dlq, Exchange: dlx, RoutingKey: dlq},
		},
	}
}

// DeadLetterArgs returns the queue arguments that route rejected messages of
// the named queue into its dead-letter topology.
func DeadLetterArgs(queueName string) amqp.Table {
	return amqp.Table{
		"x-dead-letter-exchange":    queueName + ".dlx",
		"x-dead-letter-routing-key": queueName + ".dlq",
	}
}
