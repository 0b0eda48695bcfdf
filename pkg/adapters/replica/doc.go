// Package replica is a small peer-to-peer replication provider for
// key/value documents.
//
// A Node owns a SQLite store under its data directory and an HTTP listener.
// Peers sync a document over a websocket at /docs/{id}/sync: each side sends
// its entries, missing blobs are requested with "want" frames, and later
// writes are pushed as they happen. Entries resolve by last-writer-wins on
// (timestamp, author).
//
// Every document exposes an ordered event stream through Subscribe. A
// subscriber that falls behind by more than the configured buffer has its
// stream aborted with core.ErrStreamFault instead of stalling the others.
package replica
