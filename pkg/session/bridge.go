package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/aretw0/furrow/pkg/core"
)

// Outcome is the state of a bridge worker. Every value but OutcomeRunning is terminal.
type Outcome int

const (
	OutcomeRunning Outcome = iota
	OutcomeEnded
	OutcomeFault
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRunning:
		return "running"
	case OutcomeEnded:
		return "ended"
	case OutcomeFault:
		return "fault"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// bridgeWorker drains one document subscription and turns qualifying events
// into update-all notifications. It never resubscribes.
type bridgeWorker struct {
	*worker.BaseWorker
	docID  string
	sub    core.Subscription
	sink   core.Sink
	logger *slog.Logger
	cancel context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once

	mu       sync.Mutex
	outcome  Outcome
	notified int
	err      error
}

var _ worker.Worker = (*bridgeWorker)(nil)

func newBridgeWorker(docID string, sub core.Subscription, sink core.Sink, logger *slog.Logger) *bridgeWorker {
	return &bridgeWorker{
		BaseWorker: worker.NewBaseWorker("live-events"),
		docID:      docID,
		sub:        sub,
		sink:       sink,
		logger:     logger.With("doc", docID),
		done:       make(chan struct{}),
	}
}

func (w *bridgeWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("bridge already started (status: %s)", status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	if err := w.StartFunc(runCtx, w.run); err != nil {
		cancel()
		return err
	}
	return nil
}

// retire requests cancellation and returns immediately.
func (w *bridgeWorker) retire() {
	if w.cancel == nil {
		return
	}
	// BaseWorker.Stop records the intent under its own lock; an expired
	// context keeps it from waiting.
	expired, cancel := context.WithCancel(context.Background())
	cancel()
	_ = w.BaseWorker.Stop(expired)
	w.cancel()
}

func (w *bridgeWorker) Stop(ctx context.Context) error {
	w.retire()
	return w.BaseWorker.Stop(ctx)
}

func (w *bridgeWorker) State() worker.State {
	outcome, notified := w.snapshot()
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"document":          w.docID,
			"outcome":           outcome.String(),
			"notifications":     fmt.Sprint(notified),
		}
	})
}

func (w *bridgeWorker) snapshot() (Outcome, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outcome, w.notified
}

func (w *bridgeWorker) finish(outcome Outcome, err error) {
	w.doneOnce.Do(func() {
		w.mu.Lock()
		w.outcome = outcome
		w.err = err
		w.mu.Unlock()
		close(w.done)
	})
}

// run is the worker body. The subscription is released on every exit path.
func (w *bridgeWorker) run(ctx context.Context) (err error) {
	outcome := OutcomeFault
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("bridge panic: %v", recovered)
			if w.logger.Enabled(ctx, slog.LevelDebug) {
				w.logger.Error("bridge panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.logger.Error("bridge panic", "error", err)
			}
		}
		_ = w.sub.Close()
		w.finish(outcome, err)
	}()

	w.logger.Info("starting live event processing loop")
	outcome, err = w.loop(ctx)
	return err
}

func (w *bridgeWorker) loop(ctx context.Context) (Outcome, error) {
	events := w.sub.Events()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("live event processing cancelled")
			return OutcomeCancelled, nil

		case ev, ok := <-events:
			if !ok {
				if err := w.sub.Err(); err != nil {
					w.logger.Error("error in live event stream", "error", err)
					return OutcomeFault, err
				}
				w.logger.Info("live event stream ended")
				return OutcomeEnded, nil
			}
			// select picks randomly among ready cases; cancellation wins.
			if ctx.Err() != nil {
				w.logger.Info("live event processing cancelled")
				return OutcomeCancelled, nil
			}
			w.handle(ev)
		}
	}
}

func (w *bridgeWorker) handle(ev core.Event) {
	w.logger.Debug("received live event", "event", ev.String())

	switch e := ev.(type) {
	case core.InsertRemote:
		w.logger.Info("event: InsertRemote", "author", e.Entry.Author, "key", e.Entry.Key, "status", e.ContentStatus.String())
	case core.InsertLocal:
		w.logger.Info("event: InsertLocal", "author", e.Entry.Author, "key", e.Entry.Key)
	case core.ContentReady:
		w.logger.Info("event: ContentReady", "hash", e.Hash.Short())
	case core.NeighborUp:
		w.logger.Info("event: NeighborUp", "peer", e.Peer)
	case core.NeighborDown:
		w.logger.Info("event: NeighborDown", "peer", e.Peer)
	case core.SyncFinished:
		w.logger.Info("event: SyncFinished", "peer", e.Peer, "origin", e.Origin, "duration", e.Finished.Sub(e.Started), "error", e.Err)
	default:
		w.logger.Debug("unhandled live event", "event", ev.String())
	}

	if !Classify(ev) {
		return
	}
	w.mu.Lock()
	w.notified++
	w.mu.Unlock()
	w.sink.Emit(core.NotifyUpdateAll)
}
