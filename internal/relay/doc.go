// Package relay implements the connection registry and broadcast dispatch engine.
//
// Every admitted connection gets an unbounded Outbox registered under a unique
// identity, a dispatcher goroutine that reads frames and routes them through
// the Registry, and a forwarder goroutine that drains the Outbox onto the wire.
// Fan-out is global: a frame from one connection is queued for every other
// registered connection. Teardown runs once, from whichever goroutine stops first.
package relay
