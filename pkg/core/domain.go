// Package core holds the domain types shared by the replication provider, the
// session manager and the front ends.
package core

import (
	"fmt"
	"time"
)

// NotifyUpdateAll is the single notification delivered to the UI layer.
// It carries no payload; receivers re-fetch the full state.
const NotifyUpdateAll = "update-all"

// Hash identifies a content blob (hex encoded SHA-256).
type Hash string

// Short returns an abbreviated form for logs.
func (h Hash) Short() string {
	if len(h) <= 10 {
		return string(h)
	}
	return string(h[:10])
}

// PeerID identifies a replica node on the network.
type PeerID string

// ContentStatus tells whether the blob behind an entry is available locally.
type ContentStatus int

const (
	ContentComplete ContentStatus = iota
	ContentIncomplete
	ContentMissing
)

func (s ContentStatus) String() string {
	switch s {
	case ContentComplete:
		return "complete"
	case ContentIncomplete:
		return "incomplete"
	case ContentMissing:
		return "missing"
	default:
		return fmt.Sprintf("content-status(%d)", int(s))
	}
}

// Entry is one key/value record of a replicated document.
// The value itself lives in the content store under Hash.
type Entry struct {
	Key       string `json:"key"`
	Author    string `json:"author"`
	Hash      Hash   `json:"hash"`
	Len       int64  `json:"len"`
	Timestamp int64  `json:"timestamp"` // Unix microseconds
}

// Newer reports whether e supersedes other under last-writer-wins.
func (e Entry) Newer(other Entry) bool {
	if e.Timestamp != other.Timestamp {
		return e.Timestamp > other.Timestamp
	}
	return e.Author > other.Author
}

// SyncOrigin tells which side started a sync round.
type SyncOrigin string

const (
	OriginConnect SyncOrigin = "connect"
	OriginAccept  SyncOrigin = "accept"
)

// Event is a change observed on a document's event stream.
//
// The set of variants is open: consumers must handle unknown variants with a
// default arm instead of assuming the switch is exhaustive.
type Event interface {
	fmt.Stringer
	isEvent()
}

// InsertRemote reports an entry written by a remote author.
type InsertRemote struct {
	From          PeerID
	Entry         Entry
	ContentStatus ContentStatus
}

// InsertLocal reports an entry written by this node.
type InsertLocal struct {
	Entry Entry
}

// ContentReady reports that the blob for Hash finished downloading.
type ContentReady struct {
	Hash Hash
}

// NeighborUp reports that a peer became reachable.
type NeighborUp struct {
	Peer PeerID
}

// NeighborDown reports that a peer became unreachable.
type NeighborDown struct {
	Peer PeerID
}

// SyncFinished reports the end of one sync round with a peer.
type SyncFinished struct {
	Peer     PeerID
	Origin   SyncOrigin
	Started  time.Time
	Finished time.Time
	Err      error
}

// PendingContentReady reports that every blob requested so far has been
// received or given up on.
type PendingContentReady struct{}

func (InsertRemote) isEvent()        {}
func (InsertLocal) isEvent()         {}
func (ContentReady) isEvent()        {}
func (NeighborUp) isEvent()          {}
func (NeighborDown) isEvent()        {}
func (SyncFinished) isEvent()        {}
func (PendingContentReady) isEvent() {}

func (e InsertRemote) String() string {
	return fmt.Sprintf("InsertRemote(%s from %s, %s)", e.Entry.Key, e.From, e.ContentStatus)
}
func (e InsertLocal) String() string  { return fmt.Sprintf("InsertLocal(%s)", e.Entry.Key) }
func (e ContentReady) String() string { return fmt.Sprintf("ContentReady(%s)", e.Hash.Short()) }
func (e NeighborUp) String() string   { return fmt.Sprintf("NeighborUp(%s)", e.Peer) }
func (e NeighborDown) String() string { return fmt.Sprintf("NeighborDown(%s)", e.Peer) }
func (e SyncFinished) String() string {
	if e.Err != nil {
		return fmt.Sprintf("SyncFinished(%s, %s, error: %v)", e.Peer, e.Origin, e.Err)
	}
	return fmt.Sprintf("SyncFinished(%s, %s)", e.Peer, e.Origin)
}
func (PendingContentReady) String() string { return "PendingContentReady" }
