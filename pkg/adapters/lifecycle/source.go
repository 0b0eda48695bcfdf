// Package lifecycle exposes document change streams as lifecycle sources.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/furrow/pkg/core"
)

type docSource struct {
	sub core.Subscription
	out chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits the events of sub.
// The source owns sub and closes it when its context ends or the stream does.
func NewSource(sub core.Subscription) lifecycle.Source {
	return &docSource{
		sub: sub,
		out: make(chan lifecycle.Event),
	}
}

func (s *docSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *docSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		defer s.sub.Close()
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.sub.Events():
				if !ok {
					return s.sub.Err()
				}
				// core.Event is a fmt.Stringer, which is all lifecycle.Event asks for
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
