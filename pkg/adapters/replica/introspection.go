package replica

import (
	"sort"

	"github.com/aretw0/introspection"
)

// NodeState exposes internal state for observability.
type NodeState struct {
	ID        string     `json:"id"`
	Author    string     `json:"author"`
	Addr      string     `json:"addr"`
	DataDir   string     `json:"data_dir"`
	Closed    bool       `json:"closed"`
	Documents []DocState `json:"documents,omitempty"`
}

// DocState describes one open document.
type DocState struct {
	ID           string   `json:"id"`
	Subscribers  int      `json:"subscribers"`
	Peers        []string `json:"peers,omitempty"`
	PendingBlobs int      `json:"pending_blobs"`
}

// State implements introspection.Introspectable.
func (n *Node) State() any {
	n.mu.Lock()
	docs := make([]*Doc, 0, len(n.docs))
	for _, d := range n.docs {
		docs = append(docs, d)
	}
	st := NodeState{
		ID:      string(n.id),
		Author:  n.author,
		Addr:    n.Addr(),
		DataDir: n.config.DataDir,
		Closed:  n.closed,
	}
	n.mu.Unlock()

	for _, d := range docs {
		st.Documents = append(st.Documents, d.state())
	}
	sort.Slice(st.Documents, func(i, j int) bool { return st.Documents[i].ID < st.Documents[j].ID })
	return st
}

func (d *Doc) state() DocState {
	d.subMu.Lock()
	subs := len(d.subs)
	d.subMu.Unlock()

	d.peerMu.Lock()
	defer d.peerMu.Unlock()
	peers := make([]string, 0, len(d.peers))
	for id := range d.peers {
		peers = append(peers, string(id))
	}
	sort.Strings(peers)
	return DocState{ID: d.id, Subscribers: subs, Peers: peers, PendingBlobs: len(d.pending)}
}

// ComponentType implements introspection.Component.
func (n *Node) ComponentType() string {
	return "replica-node"
}

var _ introspection.Introspectable = (*Node)(nil)
var _ introspection.Component = (*Node)(nil)
