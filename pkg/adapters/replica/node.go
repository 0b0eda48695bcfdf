package replica

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/aretw0/furrow/pkg/core"
)

const (
	metaNodeID = "node_id"
	metaAuthor = "author_id"
)

// Node is a local replica: a store, a listener for peers and the set of open documents.
type Node struct {
	id     core.PeerID
	author string
	config Config
	logger *slog.Logger
	store  *store

	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer

	mu     sync.Mutex
	docs   map[string]*Doc
	lastTS int64
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open brings up a node rooted at cfg.DataDir and starts accepting peers.
func Open(ctx context.Context, cfg Config) (*Node, error) {
	cfg = cfg.withDefaults()
	if cfg.DataDir == "" {
		return nil, errors.New("replica: data directory is required")
	}

	st, err := openStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	nodeID, err := loadOrCreateID(ctx, st, metaNodeID)
	if err != nil {
		st.Close()
		return nil, err
	}
	author, err := loadOrCreateID(ctx, st, metaAuthor)
	if err != nil {
		st.Close()
		return nil, err
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("listening on %s: %w", cfg.ListenAddr, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	n := &Node{
		id:       core.PeerID(nodeID),
		author:   author,
		config:   cfg,
		logger:   cfg.Logger.With("node", nodeID[:8]),
		store:    st,
		listener: ln,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		docs:     make(map[string]*Doc),
		ctx:      runCtx,
		cancel:   cancel,
	}
	n.server = &http.Server{Handler: n.router(), ReadHeaderTimeout: 10 * time.Second}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("peer listener failed", "error", err)
		}
	}()

	n.logger.Info("node started", "addr", n.Addr(), "data_dir", cfg.DataDir)
	return n, nil
}

func loadOrCreateID(ctx context.Context, st *store, key string) (string, error) {
	id, ok, err := st.meta(ctx, key)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}
	id = uuid.NewString()
	if err := st.setMeta(ctx, key, id); err != nil {
		return "", err
	}
	return id, nil
}

func (n *Node) router() http.Handler {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			n.logger.Debug("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Methods(http.MethodGet).Path("/docs/{id}/sync").HandlerFunc(n.handleSync)
	r.Methods(http.MethodGet).Path("/status").HandlerFunc(n.handleStatus)
	return r
}

// ID returns the node's network identity.
func (n *Node) ID() core.PeerID { return n.id }

// Author returns the author id attached to local writes.
func (n *Node) Author() string { return n.author }

// Addr returns the address the node accepts peers on.
func (n *Node) Addr() string { return n.listener.Addr().String() }

func (n *Node) advertise() []string {
	if len(n.config.Advertise) > 0 {
		return append([]string(nil), n.config.Advertise...)
	}
	return []string{n.Addr()}
}

// now returns a strictly increasing timestamp in Unix microseconds.
func (n *Node) now() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	ts := time.Now().UnixMicro()
	if ts <= n.lastTS {
		ts = n.lastTS + 1
	}
	n.lastTS = ts
	return ts
}

// observe moves the clock past a timestamp seen on a remote entry, so the
// next local write wins over it.
func (n *Node) observe(ts int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if ts > n.lastTS {
		n.lastTS = ts
	}
}

// CreateDocument creates a new, empty document.
func (n *Node) CreateDocument(ctx context.Context) (*Doc, error) {
	id := uuid.NewString()
	if err := n.store.createDocument(ctx, id); err != nil {
		return nil, err
	}
	n.logger.Info("created document", "doc", id)
	d, _, err := n.doc(id)
	return d, err
}

// OpenDocument returns a handle on a document already known to this node.
// When the handle is not already open, the peers recorded for the document
// are dialed again in the background.
func (n *Node) OpenDocument(ctx context.Context, id string) (*Doc, error) {
	d, fresh, err := n.open(ctx, id)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return d, nil
	}
	addrs, err := n.store.peers(ctx, id)
	if err != nil {
		return nil, err
	}
	dialed := 0
	for _, addr := range addrs {
		if addr == n.Addr() {
			continue
		}
		d.connect(addr)
		dialed++
	}
	n.logger.Info("opened document", "doc", id, "peers", dialed)
	return d, nil
}

// open returns the handle for a stored document and whether it was created by this call.
func (n *Node) open(ctx context.Context, id string) (*Doc, bool, error) {
	ok, err := n.store.hasDocument(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return n.doc(id)
}

// JoinDocument imports the document named by t and starts syncing with the
// peers it lists. Connections are made in the background.
func (n *Node) JoinDocument(ctx context.Context, t Ticket) (*Doc, error) {
	if err := n.store.createDocument(ctx, t.Doc); err != nil {
		return nil, err
	}
	d, _, err := n.doc(t.Doc)
	if err != nil {
		return nil, err
	}
	for _, addr := range t.Addrs {
		if addr == n.Addr() {
			continue
		}
		if err := n.store.addPeer(ctx, t.Doc, addr); err != nil {
			return nil, err
		}
		d.connect(addr)
	}
	n.logger.Info("joined document", "doc", t.Doc, "peers", len(t.Addrs))
	return d, nil
}

func (n *Node) doc(id string) (*Doc, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, false, fmt.Errorf("node: %w", core.ErrClosed)
	}
	if d, ok := n.docs[id]; ok {
		return d, false, nil
	}
	d := newDoc(id, n)
	n.docs[id] = d
	return d, true, nil
}

func (n *Node) forget(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.docs, id)
}

func (n *Node) handleSync(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, _, err := n.open(r.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		http.Error(w, "unknown document", http.StatusNotFound)
		return
	}
	if err != nil {
		n.logger.Error("sync request failed", "doc", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Warn("websocket upgrade failed", "doc", id, "error", err)
		return
	}
	n.spawn("accept", func(ctx context.Context) {
		d.runPeer(ctx, conn, core.OriginAccept)
	})
}

func (n *Node) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(n.State()); err != nil {
		n.logger.Warn("encoding status", "error", err)
	}
}

// Close disconnects all peers, ends every subscription and closes the store.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	docs := make([]*Doc, 0, len(n.docs))
	for _, d := range n.docs {
		docs = append(docs, d)
	}
	n.mu.Unlock()

	n.cancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.server.Shutdown(shutdownCtx); err != nil {
		n.logger.Warn("peer listener shutdown", "error", err)
	}

	for _, d := range docs {
		d.shutdown()
	}
	n.wg.Wait()

	n.logger.Info("node stopped")
	return n.store.Close()
}
