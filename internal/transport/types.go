package transport

import (
	"context"
	"errors"
)

// ErrAuthFailure is returned by AwaitReady when the session cannot authenticate.
var ErrAuthFailure = errors.New("transport: authentication failed")

// Recipient is an opaque handle produced by Lookup and consumed by Send.
type Recipient struct {
	ID string
}

type EventKind string

const (
	EventQR           EventKind = "qr"
	EventAuthFailure  EventKind = "auth_failure"
	EventDisconnected EventKind = "disconnected"
)

// Event is an out-of-band notification. The dispatch loop never reads them;
// the app only logs them.
type Event struct {
	Kind   EventKind
	Detail string
}

// Transport is the chat capability the dispatcher consumes.
//
// Callers make one call at a time; implementations need not be safe for
// concurrent Lookup/Send.
type Transport interface {
	// AwaitReady blocks until the session can send messages.
	AwaitReady(ctx context.Context) error
	// Lookup resolves a digits-only number. ok is false when the number has no account.
	Lookup(ctx context.Context, number string) (to Recipient, ok bool, err error)
	Send(ctx context.Context, to Recipient, text string) error

	Events() <-chan Event
	Close(ctx context.Context) error
}
