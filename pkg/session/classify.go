package session

import "github.com/aretw0/furrow/pkg/core"

// Classify reports whether ev should produce an update-all notification.
//
// Remote inserts only count once their content is complete; an incomplete one
// is followed by a ContentReady when the blob lands. Peer and sync events are
// informational. Unknown variants never notify.
func Classify(ev core.Event) bool {
	switch e := ev.(type) {
	case core.InsertRemote:
		return e.ContentStatus == core.ContentComplete
	case core.InsertLocal:
		return true
	case core.ContentReady:
		return true
	case core.NeighborUp, core.NeighborDown, core.SyncFinished:
		return false
	default:
		return false
	}
}
