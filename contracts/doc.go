// Package contracts defines the domain event value that flows through the
// intake messaging system and its canonical wire form.
//
// A DomainEvent is an immutable record of a business fact: its identifier and
// timestamp are assigned at construction and never change. Events are encoded
// to JSON at dispatch time and decoded generically at consume time; typed
// payload views (IntakeCompletedPayload) project known shapes over the open
// payload map, with the map itself as the forward-compatible fallback for
// event types the reader does not know about.
package contracts
