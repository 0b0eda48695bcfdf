package replica

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/furrow/pkg/core"
)

const maxSetAttempts = 3

// Doc is a handle on one replicated document of a Node.
type Doc struct {
	id     string
	node   *Node
	logger *slog.Logger

	subMu  sync.Mutex
	subs   map[*subscription]struct{}
	closed bool

	peerMu   sync.Mutex
	peers    map[core.PeerID]*peerConn
	pending  map[core.Hash]struct{}
	released bool
}

var _ core.Document = (*Doc)(nil)

func newDoc(id string, n *Node) *Doc {
	return &Doc{
		id:      id,
		node:    n,
		logger:  n.logger.With("doc", id),
		subs:    make(map[*subscription]struct{}),
		peers:   make(map[core.PeerID]*peerConn),
		pending: make(map[core.Hash]struct{}),
	}
}

func hashOf(data []byte) core.Hash {
	sum := sha256.Sum256(data)
	return core.Hash(hex.EncodeToString(sum[:]))
}

// ID returns the document identifier.
func (d *Doc) ID() string { return d.id }

// Subscribe opens a live event subscription. Events emitted before the call
// are not replayed.
func (d *Doc) Subscribe(ctx context.Context) (core.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.subMu.Lock()
	defer d.subMu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("document %s: %w", d.id, core.ErrClosed)
	}
	s := &subscription{
		events: make(chan core.Event, d.node.config.EventBuffer),
		doc:    d,
	}
	d.subs[s] = struct{}{}
	return s, nil
}

func (d *Doc) unsubscribe(s *subscription) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	delete(d.subs, s)
	s.end(nil)
}

// emit delivers ev to every subscriber in call order. Subscribers whose buffer
// is full are dropped with a stream fault.
func (d *Doc) emit(ev core.Event) {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	for s := range d.subs {
		if s.deliver(ev) {
			continue
		}
		delete(d.subs, s)
		s.end(fmt.Errorf("%w: subscriber lagged behind by %d events", core.ErrStreamFault, cap(s.events)))
		d.logger.Warn("dropped lagging subscriber", "buffer", cap(s.events))
	}
}

// Set stores value under key as the local author and pushes it to peers.
func (d *Doc) Set(ctx context.Context, key string, value []byte) (core.Entry, error) {
	if key == "" {
		return core.Entry{}, fmt.Errorf("entry key cannot be empty")
	}
	hash := hashOf(value)
	if err := d.node.store.putBlob(ctx, hash, value); err != nil {
		return core.Entry{}, err
	}
	e := core.Entry{
		Key:    key,
		Author: d.node.author,
		Hash:   hash,
		Len:    int64(len(value)),
	}
	// A concurrent remote write can land between taking the timestamp and
	// storing; the clock has observed it by then, so a retry wins.
	for attempt := 0; ; attempt++ {
		e.Timestamp = d.node.now()
		applied, err := d.node.store.putEntry(ctx, d.id, e)
		if err != nil {
			return core.Entry{}, err
		}
		if applied {
			break
		}
		if attempt == maxSetAttempts {
			return core.Entry{}, fmt.Errorf("entry %s was superseded", key)
		}
	}
	d.emit(core.InsertLocal{Entry: e})
	d.broadcast("", frame{Type: frameEntries, Entries: []core.Entry{e}})
	return e, nil
}

// Entries returns the latest entry for every key, ordered by key.
func (d *Doc) Entries(ctx context.Context) ([]core.Entry, error) {
	return d.node.store.entries(ctx, d.id)
}

// Content returns the blob behind hash, or core.ErrNotFound while it is still missing.
func (d *Doc) Content(ctx context.Context, hash core.Hash) ([]byte, error) {
	return d.node.store.blob(ctx, hash)
}

// Share issues a ticket for this document pointing at the local node.
func (d *Doc) Share(ctx context.Context) (string, error) {
	t := Ticket{Doc: d.id, Node: string(d.node.id), Addrs: d.node.advertise()}
	return t.String(), nil
}

// Peers returns the currently connected peers.
func (d *Doc) Peers() []core.PeerID {
	d.peerMu.Lock()
	defer d.peerMu.Unlock()
	out := make([]core.PeerID, 0, len(d.peers))
	for id := range d.peers {
		out = append(out, id)
	}
	return out
}

// applyRemote stores entries received from a peer and requests missing blobs.
func (d *Doc) applyRemote(ctx context.Context, from *peerConn, entries []core.Entry) {
	var want []core.Hash
	var forward []core.Entry
	for _, e := range entries {
		d.node.observe(e.Timestamp)
		applied, err := d.node.store.putEntry(ctx, d.id, e)
		if err != nil {
			d.logger.Error("storing remote entry", "key", e.Key, "error", err)
			continue
		}
		has, err := d.node.store.hasBlob(ctx, e.Hash)
		if err != nil {
			d.logger.Error("checking blob", "hash", e.Hash.Short(), "error", err)
		}
		if !applied {
			// Already known, but a previous peer may have vanished before sending the blob.
			if !has {
				d.markPending(e.Hash)
				want = append(want, e.Hash)
			}
			continue
		}
		forward = append(forward, e)

		status := core.ContentComplete
		if !has {
			status = core.ContentMissing
			if d.markPending(e.Hash) {
				want = append(want, e.Hash)
			}
		}
		d.emit(core.InsertRemote{From: from.peer, Entry: e, ContentStatus: status})
	}
	if len(want) > 0 {
		from.enqueue(frame{Type: frameWant, Hashes: want})
	}
	if len(forward) > 0 {
		d.broadcast(from.peer, frame{Type: frameEntries, Entries: forward})
	}
}

// receiveBlob verifies and stores a blob sent by a peer.
func (d *Doc) receiveBlob(ctx context.Context, hash core.Hash, data []byte) {
	if hashOf(data) != hash {
		d.logger.Warn("discarding blob with mismatched hash", "hash", hash.Short())
		return
	}
	if err := d.node.store.putBlob(ctx, hash, data); err != nil {
		d.logger.Error("storing blob", "hash", hash.Short(), "error", err)
		return
	}

	d.peerMu.Lock()
	_, wanted := d.pending[hash]
	delete(d.pending, hash)
	drained := wanted && len(d.pending) == 0
	d.peerMu.Unlock()

	if !wanted {
		return
	}
	d.emit(core.ContentReady{Hash: hash})
	if drained {
		d.emit(core.PendingContentReady{})
	}
}

// serveWant answers a blob request from a peer with whatever is available.
func (d *Doc) serveWant(ctx context.Context, to *peerConn, hashes []core.Hash) {
	for _, h := range hashes {
		data, err := d.node.store.blob(ctx, h)
		if err != nil {
			d.logger.Debug("cannot serve blob", "hash", h.Short(), "error", err)
			continue
		}
		to.enqueue(frame{Type: frameBlob, Hash: h, Data: data})
	}
}

func (d *Doc) markPending(h core.Hash) bool {
	d.peerMu.Lock()
	defer d.peerMu.Unlock()
	if _, ok := d.pending[h]; ok {
		return false
	}
	d.pending[h] = struct{}{}
	return true
}

// broadcast sends f to every connected peer except skip.
func (d *Doc) broadcast(skip core.PeerID, f frame) {
	d.peerMu.Lock()
	targets := make([]*peerConn, 0, len(d.peers))
	for id, pc := range d.peers {
		if id != skip {
			targets = append(targets, pc)
		}
	}
	d.peerMu.Unlock()
	for _, pc := range targets {
		pc.enqueue(f)
	}
}

// Close ends every subscription cleanly, disconnects peers and releases the handle.
func (d *Doc) Close() error {
	d.shutdown()
	d.node.forget(d.id)
	return nil
}

func (d *Doc) shutdown() {
	d.subMu.Lock()
	d.closed = true
	for s := range d.subs {
		delete(d.subs, s)
		s.end(nil)
	}
	d.subMu.Unlock()

	d.peerMu.Lock()
	d.released = true
	conns := make([]*peerConn, 0, len(d.peers))
	for _, pc := range d.peers {
		conns = append(conns, pc)
	}
	d.peerMu.Unlock()
	for _, pc := range conns {
		pc.close()
	}
}
