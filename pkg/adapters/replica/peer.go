package replica

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/gorilla/websocket"

	"github.com/aretw0/furrow/pkg/core"
)

const (
	frameHello   = "hello"
	frameEntries = "entries"
	frameWant    = "want"
	frameBlob    = "blob"

	maxFrameBytes    = 16 << 20
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 10 * time.Second
	sendQueue        = 256
)

// frame is the JSON message exchanged between peers.
type frame struct {
	Type    string       `json:"type"`
	Doc     string       `json:"doc,omitempty"`
	Node    string       `json:"node,omitempty"`
	Addr    string       `json:"addr,omitempty"`
	Entries []core.Entry `json:"entries,omitempty"`
	Hashes  []core.Hash  `json:"hashes,omitempty"`
	Hash    core.Hash    `json:"hash,omitempty"`
	Data    []byte       `json:"data,omitempty"`
}

// peerConn is one live websocket to a peer for one document.
type peerConn struct {
	conn   *websocket.Conn
	peer   core.PeerID
	origin core.SyncOrigin
	logger *slog.Logger

	send      chan frame
	done      chan struct{}
	closeOnce sync.Once
}

// enqueue schedules f for sending. A peer that cannot keep up is disconnected.
func (pc *peerConn) enqueue(f frame) {
	select {
	case <-pc.done:
		return
	default:
	}
	select {
	case pc.send <- f:
	default:
		pc.logger.Warn("peer send queue full, disconnecting")
		pc.close()
	}
}

func (pc *peerConn) close() {
	pc.closeOnce.Do(func() {
		close(pc.done)
		_ = pc.conn.Close()
	})
}

func (pc *peerConn) writeLoop() {
	for {
		select {
		case <-pc.done:
			return
		case f := <-pc.send:
			_ = pc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := pc.conn.WriteJSON(f); err != nil {
				pc.logger.Debug("peer write failed", "error", err)
				pc.close()
				return
			}
		}
	}
}

// spawn runs fn as a tracked node task. It is a no-op once the node is closed.
func (n *Node) spawn(name string, fn func(ctx context.Context)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.wg.Add(1)
	lifecycle.Go(n.ctx, func(ctx context.Context) error {
		defer n.wg.Done()
		fn(ctx)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		n.logger.Error("peer task panic", "task", name, "error", err)
	}))
}

// connect dials a peer in the background and syncs with it until disconnect.
func (d *Doc) connect(addr string) {
	d.node.spawn("connect", func(ctx context.Context) {
		u := url.URL{Scheme: "ws", Host: addr, Path: "/docs/" + d.id + "/sync"}
		conn, _, err := d.node.dialer.DialContext(ctx, u.String(), nil)
		if err != nil {
			d.logger.Warn("cannot reach peer", "addr", addr, "error", err)
			return
		}
		d.runPeer(ctx, conn, core.OriginConnect)
	})
}

// runPeer performs the handshake and serves one peer connection until it drops.
func (d *Doc) runPeer(ctx context.Context, conn *websocket.Conn, origin core.SyncOrigin) {
	conn.SetReadLimit(maxFrameBytes)

	hello, err := d.handshake(conn)
	if err != nil {
		d.logger.Warn("peer handshake failed", "origin", origin, "error", err)
		_ = conn.Close()
		return
	}

	pc := &peerConn{
		conn:   conn,
		peer:   core.PeerID(hello.Node),
		origin: origin,
		logger: d.logger.With("peer", hello.Node),
		send:   make(chan frame, sendQueue),
		done:   make(chan struct{}),
	}
	if !d.addPeer(pc) {
		pc.logger.Debug("already connected, dropping duplicate connection")
		pc.close()
		return
	}
	if hello.Addr != "" && origin == core.OriginAccept {
		if err := d.node.store.addPeer(ctx, d.id, hello.Addr); err != nil {
			pc.logger.Warn("recording peer address", "error", err)
		}
	}

	started := time.Now()
	d.emit(core.NeighborUp{Peer: pc.peer})

	go pc.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			pc.close()
		case <-pc.done:
		}
	}()

	entries, err := d.Entries(ctx)
	if err != nil {
		pc.logger.Error("listing entries for peer", "error", err)
	}
	pc.enqueue(frame{Type: frameEntries, Entries: entries})

	synced := false
	var readErr error
	for {
		var f frame
		if readErr = conn.ReadJSON(&f); readErr != nil {
			break
		}
		switch f.Type {
		case frameEntries:
			d.applyRemote(ctx, pc, f.Entries)
			if !synced {
				synced = true
				d.emit(core.SyncFinished{Peer: pc.peer, Origin: origin, Started: started, Finished: time.Now()})
			}
		case frameWant:
			d.serveWant(ctx, pc, f.Hashes)
		case frameBlob:
			d.receiveBlob(ctx, f.Hash, f.Data)
		default:
			pc.logger.Debug("ignoring unknown frame", "type", f.Type)
		}
	}

	pc.close()
	d.removePeer(pc)
	if !synced {
		d.emit(core.SyncFinished{
			Peer:     pc.peer,
			Origin:   origin,
			Started:  started,
			Finished: time.Now(),
			Err:      fmt.Errorf("connection closed before sync: %w", readErr),
		})
	}
	d.emit(core.NeighborDown{Peer: pc.peer})
	pc.logger.Info("peer disconnected")
}

// handshake exchanges hello frames. It writes before reading, so both sides
// can run it concurrently.
func (d *Doc) handshake(conn *websocket.Conn) (frame, error) {
	deadline := time.Now().Add(handshakeTimeout)
	_ = conn.SetWriteDeadline(deadline)
	ours := frame{Type: frameHello, Doc: d.id, Node: string(d.node.id)}
	if addrs := d.node.advertise(); len(addrs) > 0 {
		ours.Addr = addrs[0]
	}
	if err := conn.WriteJSON(ours); err != nil {
		return frame{}, fmt.Errorf("sending hello: %w", err)
	}

	_ = conn.SetReadDeadline(deadline)
	var theirs frame
	if err := conn.ReadJSON(&theirs); err != nil {
		return frame{}, fmt.Errorf("reading hello: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	switch {
	case theirs.Type != frameHello:
		return frame{}, fmt.Errorf("expected hello, got %q", theirs.Type)
	case theirs.Doc != d.id:
		return frame{}, fmt.Errorf("peer is syncing document %s", theirs.Doc)
	case theirs.Node == "":
		return frame{}, fmt.Errorf("peer sent no node id")
	case theirs.Node == string(d.node.id):
		return frame{}, fmt.Errorf("refusing to sync with self")
	}
	return theirs, nil
}

func (d *Doc) addPeer(pc *peerConn) bool {
	d.peerMu.Lock()
	defer d.peerMu.Unlock()
	if d.released {
		return false
	}
	if _, ok := d.peers[pc.peer]; ok {
		return false
	}
	d.peers[pc.peer] = pc
	return true
}

func (d *Doc) removePeer(pc *peerConn) {
	d.peerMu.Lock()
	defer d.peerMu.Unlock()
	if d.peers[pc.peer] == pc {
		delete(d.peers, pc.peer)
	}
}
