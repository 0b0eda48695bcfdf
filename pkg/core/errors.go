package core

import "errors"

// Common errors.
var (
	// ErrSetup marks a failure to bring up the node or to create/join a document.
	ErrSetup = errors.New("setup failed")

	// ErrSubscription marks a failure to open a live event subscription.
	ErrSubscription = errors.New("subscription failed")

	// ErrStreamFault is reported by Subscription.Err when the provider aborted
	// an open stream.
	ErrStreamFault = errors.New("event stream fault")

	ErrNoActiveList  = errors.New("no active list")
	ErrNotFound      = errors.New("not found")
	ErrInvalidTicket = errors.New("invalid ticket")
	ErrClosed        = errors.New("closed")
)
