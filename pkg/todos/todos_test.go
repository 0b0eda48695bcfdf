package todos_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/furrow/pkg/core"
	"github.com/aretw0/furrow/pkg/todos"
)

// memDoc is an in-memory core.Document without events.
type memDoc struct {
	mu      sync.Mutex
	entries map[string]core.Entry
	blobs   map[core.Hash][]byte
	ts      int64
}

func newMemDoc() *memDoc {
	return &memDoc{entries: map[string]core.Entry{}, blobs: map[core.Hash][]byte{}}
}

func (d *memDoc) ID() string { return "mem" }
func (d *memDoc) Subscribe(ctx context.Context) (core.Subscription, error) {
	return nil, core.ErrSubscription
}
func (d *memDoc) Share(ctx context.Context) (string, error) { return "ticket", nil }

func (d *memDoc) Set(ctx context.Context, key string, value []byte) (core.Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sum := sha256.Sum256(value)
	h := core.Hash(hex.EncodeToString(sum[:]))
	d.ts++
	e := core.Entry{Key: key, Author: "me", Hash: h, Len: int64(len(value)), Timestamp: d.ts}
	d.entries[key] = e
	d.blobs[h] = append([]byte(nil), value...)
	return e, nil
}

func (d *memDoc) Entries(ctx context.Context) ([]core.Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]core.Entry, 0, len(d.entries))
	for _, e := range d.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (d *memDoc) Content(ctx context.Context, hash core.Hash) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, ok := d.blobs[hash]
	if !ok {
		return nil, core.ErrNotFound
	}
	return data, nil
}

func TestList_Lifecycle(t *testing.T) {
	ctx := context.Background()
	list := todos.New(newMemDoc())

	milk, err := list.Add(ctx, "", "  buy milk ")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", milk.Label)
	assert.NotEmpty(t, milk.ID)

	_, err = list.Add(ctx, "fixed-id", "water plants")
	require.NoError(t, err)

	all, err := list.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	toggled, err := list.Toggle(ctx, milk.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Done)

	updated, err := list.Update(ctx, "fixed-id", "water the plants")
	require.NoError(t, err)
	assert.Equal(t, "water the plants", updated.Label)

	require.NoError(t, list.Delete(ctx, milk.ID))
	_, err = list.Get(ctx, milk.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	all, err = list.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "water the plants", all[0].Label)
	assert.False(t, all[0].Done)
}

func TestList_Validation(t *testing.T) {
	ctx := context.Background()
	list := todos.New(newMemDoc())

	_, err := list.Add(ctx, "", "   ")
	assert.Error(t, err)
	_, err = list.Add(ctx, "a/b", "nested")
	assert.Error(t, err)
	_, err = list.Toggle(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, list.Delete(ctx, "missing"), core.ErrNotFound)
}

func TestList_AllSkipsForeignKeysAndMissingContent(t *testing.T) {
	ctx := context.Background()
	doc := newMemDoc()
	list := todos.New(doc)

	_, err := list.Add(ctx, "one", "first")
	require.NoError(t, err)
	_, err = doc.Set(ctx, "settings/theme", []byte(`"dark"`))
	require.NoError(t, err)

	// An entry replicated without its blob yet.
	doc.mu.Lock()
	doc.entries["todo/pending"] = core.Entry{Key: "todo/pending", Hash: "not-here", Timestamp: 99}
	doc.mu.Unlock()

	all, err := list.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "one", all[0].ID)
}
