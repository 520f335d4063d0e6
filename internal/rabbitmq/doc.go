// Package rabbitmq owns the process's connection to the broker.
//
// A single ConnectionManager is constructed at startup and shared by handle:
// the dispatcher publishes on the manager's shared channel, while every
// consumer asks for its own dedicated channel so a channel-level error in one
// consumer cannot take down the publisher or other consumers.
//
// Reconnection is on demand. When the broker reports an error or closes the
// connection, the cached handles are cleared and the next Channel or
// CreateChannel call dials a fresh connection.
package rabbitmq
