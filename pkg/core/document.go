package core

import "context"

// Subscription is a live, ordered stream of change events for one document.
type Subscription interface {
	// Events yields events in the order the provider emits them.
	// The channel is closed when the stream ends.
	Events() <-chan Event

	// Err reports why the stream ended. It returns nil while the stream is open
	// and after a clean close, and an error wrapping ErrStreamFault if the
	// provider aborted it.
	Err() error

	// Close releases the subscription. The Events channel is closed afterwards.
	Close() error
}

// Document is a handle on one replicated key/value document.
// Implementations must be safe for concurrent use.
type Document interface {
	// ID returns the stable document identifier.
	ID() string

	// Subscribe opens a live event subscription.
	Subscribe(ctx context.Context) (Subscription, error)

	// Set writes value under key, attributed to the local author.
	Set(ctx context.Context, key string, value []byte) (Entry, error)

	// Entries returns the latest entry for every key.
	Entries(ctx context.Context) ([]Entry, error)

	// Content returns the blob for hash, or ErrNotFound if it is not
	// available locally (yet).
	Content(ctx context.Context, hash Hash) ([]byte, error)

	// Share issues a ticket other peers can use to join the document.
	Share(ctx context.Context) (string, error)
}

// Sink delivers named notifications to the UI layer.
type Sink interface {
	Emit(name string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(name string)

// Emit calls f(name).
func (f SinkFunc) Emit(name string) { f(name) }
