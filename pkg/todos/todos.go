// Package todos stores a to-do list in a replicated document.
//
// Each item lives under its own key ("todo/<uuid>") as a JSON value. Deletion
// writes a tombstone so it replicates like any other change.
package todos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/aretw0/furrow/pkg/core"
)

const (
	keyPrefix  = "todo/"
	keyPattern = "todo/*"
)

// Todo is one item of the list.
type Todo struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Done     bool   `json:"done"`
	IsDelete bool   `json:"is_delete"`
	Created  int64  `json:"created"`
}

// List is a to-do list backed by a document.
type List struct {
	doc core.Document
}

// New wraps doc.
func New(doc core.Document) *List {
	return &List{doc: doc}
}

// Document returns the underlying document.
func (l *List) Document() core.Document { return l.doc }

// ID returns the document id.
func (l *List) ID() string { return l.doc.ID() }

// Ticket issues a join ticket for the list.
func (l *List) Ticket(ctx context.Context) (string, error) {
	return l.doc.Share(ctx)
}

// Subscribe opens an event stream on the underlying document.
func (l *List) Subscribe(ctx context.Context) (core.Subscription, error) {
	return l.doc.Subscribe(ctx)
}

// Add creates a new item. The id is generated when empty.
func (l *List) Add(ctx context.Context, id, label string) (Todo, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Todo{}, errors.New("todo label cannot be empty")
	}
	if id == "" {
		id = uuid.NewString()
	}
	if strings.Contains(id, "/") {
		return Todo{}, fmt.Errorf("todo id %q cannot contain '/'", id)
	}
	t := Todo{ID: id, Label: label, Created: time.Now().UnixMilli()}
	if err := l.put(ctx, t); err != nil {
		return Todo{}, err
	}
	return t, nil
}

// Toggle flips the done flag of an item.
func (l *List) Toggle(ctx context.Context, id string) (Todo, error) {
	t, err := l.Get(ctx, id)
	if err != nil {
		return Todo{}, err
	}
	t.Done = !t.Done
	return t, l.put(ctx, t)
}

// Update replaces the label of an item.
func (l *List) Update(ctx context.Context, id, label string) (Todo, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Todo{}, errors.New("todo label cannot be empty")
	}
	t, err := l.Get(ctx, id)
	if err != nil {
		return Todo{}, err
	}
	t.Label = label
	return t, l.put(ctx, t)
}

// Delete tombstones an item.
func (l *List) Delete(ctx context.Context, id string) error {
	t, err := l.Get(ctx, id)
	if err != nil {
		return err
	}
	t.IsDelete = true
	return l.put(ctx, t)
}

// Get returns a live item by id.
func (l *List) Get(ctx context.Context, id string) (Todo, error) {
	entries, err := l.doc.Entries(ctx)
	if err != nil {
		return Todo{}, err
	}
	key := keyPrefix + id
	for _, e := range entries {
		if e.Key != key {
			continue
		}
		t, err := l.decode(ctx, e)
		if err != nil {
			return Todo{}, err
		}
		if t.IsDelete {
			break
		}
		return t, nil
	}
	return Todo{}, fmt.Errorf("todo %s: %w", id, core.ErrNotFound)
}

// All returns the live items, oldest first. Items whose content has not
// arrived yet are skipped; they show up after the next ContentReady.
func (l *List) All(ctx context.Context) ([]Todo, error) {
	entries, err := l.doc.Entries(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Todo, 0, len(entries))
	for _, e := range entries {
		if ok, _ := doublestar.Match(keyPattern, e.Key); !ok {
			continue
		}
		t, err := l.decode(ctx, e)
		if errors.Is(err, core.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if t.IsDelete {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Created != out[j].Created {
			return out[i].Created < out[j].Created
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (l *List) decode(ctx context.Context, e core.Entry) (Todo, error) {
	data, err := l.doc.Content(ctx, e.Hash)
	if err != nil {
		return Todo{}, err
	}
	var t Todo
	if err := json.Unmarshal(data, &t); err != nil {
		return Todo{}, fmt.Errorf("decoding %s: %w", e.Key, err)
	}
	return t, nil
}

func (l *List) put(ctx context.Context, t Todo) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = l.doc.Set(ctx, keyPrefix+t.ID, data)
	return err
}
