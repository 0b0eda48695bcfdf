package replica

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/pkg/core"
)

// TestStress_ConcurrentWritersTwoNodes writes from both sides of a sync pair at
// once. Both replicas must converge on the same latest entry per key.
func TestStress_ConcurrentWritersTwoNodes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping stress test in short mode")
	}

	ctx := context.Background()
	a := openTestNode(t, Config{EventBuffer: 1024})
	b := openTestNode(t, Config{EventBuffer: 1024})

	docA, err := a.CreateDocument(ctx)
	require.NoError(t, err)
	raw, err := docA.Share(ctx)
	require.NoError(t, err)
	ticket, err := ParseTicket(raw)
	require.NoError(t, err)
	docB, err := b.JoinDocument(ctx, ticket)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(docA.Peers()) == 1 && len(docB.Peers()) == 1
	}, 5*time.Second, 20*time.Millisecond)

	const writes = 50
	var wg sync.WaitGroup
	for side, doc := range []*Doc{docA, docB} {
		wg.Add(1)
		go func(side int, doc *Doc) {
			defer wg.Done()
			for i := range writes {
				key := fmt.Sprintf("todo/%d", i%10)
				_, err := doc.Set(ctx, key, []byte(fmt.Sprintf("side %d write %d", side, i)))
				assert.NoError(t, err)
			}
		}(side, doc)
	}
	wg.Wait()

	latest := func(d *Doc) map[string]core.Entry {
		entries, err := d.Entries(ctx)
		require.NoError(t, err)
		out := make(map[string]core.Entry, len(entries))
		for _, e := range entries {
			out[e.Key] = e
		}
		return out
	}

	require.Eventually(t, func() bool {
		ea, eb := latest(docA), latest(docB)
		if len(ea) != 10 || len(eb) != 10 {
			return false
		}
		for k, e := range ea {
			if eb[k].Hash != e.Hash {
				return false
			}
			if _, err := docA.Content(ctx, e.Hash); err != nil {
				return false
			}
			if _, err := docB.Content(ctx, e.Hash); err != nil {
				return false
			}
		}
		return true
	}, 10*time.Second, 50*time.Millisecond)
}
