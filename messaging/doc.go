// Package messaging is the event publish/consume core of the intake service.
//
// EventDispatcher turns a contracts.DomainEvent into a published broker
// message on a topic exchange, deriving the routing key from the event type
// (IntakeCompleted -> intake.completed). EventConsumer binds a durable queue
// to the exchange, pulls messages under a prefetch bound, dispatches decoded
// events to registered handlers by event type, and acks or requeues based on
// the outcome. IntakeCompletedDispatcher is a construction convenience for
// the one concrete event type in the system.
//
// The consumer performs no backoff, retry cap, or dead-lettering of its own:
// a permanently failing handler causes redelivery until broker-side policy
// (see rabbitmq.DeadLetterTopology) or an operator intervenes.
package messaging
