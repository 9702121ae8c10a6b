// Package parallel fans a sequence out to a bounded set of workers and fans
// the results back in as a sequence. Results complete out of admission
// order, callers must not assume otherwise.
package parallel

import (
	"context"
	"iter"

	"golang.org/x/sync/errgroup"
)

type result[D any] struct {
	d D
	e error
}

// Map runs mapFunc over the input sequence with at most limit concurrent
// invocations. It is context aware, a canceled context stops intake and
// refuses elements not yet started; elements already running finish and
// their results are still delivered. The typical usage is
//
//	for result, err := range pmap.Iter(input) {}
type Map[E, D any] struct {
	parentCtx    context.Context
	cancelParent context.CancelFunc
	g            *errgroup.Group
	gctx         context.Context
	mapped       chan result[D]
	mapFunc      func(context.Context, E) (D, error)
	admitFunc    func(context.Context) error
}

func NewMap[E, D any](parentCtx context.Context, limit int, mapFunc func(context.Context, E) (D, error)) *Map[E, D] {
	parentCtx, cancelParent := context.WithCancel(parentCtx)
	g, gctx := errgroup.WithContext(parentCtx)
	g.SetLimit(limit + 1)

	return &Map[E, D]{
		parentCtx:    parentCtx,
		cancelParent: cancelParent,
		g:            g,
		gctx:         gctx,
		mapped:       make(chan result[D], limit),
		mapFunc:      mapFunc,
	}
}

// WithAdmit installs a gate called before each element is dispatched. A
// returned error stops intake, elements already dispatched still finish.
// Used for rate limiting admissions.
func (s *Map[E, D]) WithAdmit(admit func(context.Context) error) *Map[E, D] {
	s.admitFunc = admit
	return s
}

func (s *Map[E, D]) goWorkers(seq iter.Seq2[E, error]) {
	s.g.Go(func() error {
		// the sequence is always consumed to its end: producers account for
		// refused elements as they are pulled
		refused := false
		for entry, nerr := range seq {
			if nerr != nil {
				continue
			}
			if refused || s.gctx.Err() != nil {
				refused = true
				continue
			}
			if s.admitFunc != nil {
				if err := s.admitFunc(s.gctx); err != nil {
					// stops intake only, the error must not poison the
					// group: dispatched elements still finish
					refused = true
					continue
				}
			}
			s.g.Go(func() error {
				if err := s.gctx.Err(); err != nil {
					return err
				}
				d, mapErr := s.mapFunc(s.gctx, entry)
				s.mapped <- result[D]{d: d, e: mapErr}
				return nil
			})
		}
		return nil
	})
}

// Iter drains every dispatched result even after the consumer stops taking
// them, a worker never blocks on the send. The sequence ends once all
// workers have returned.
func (s *Map[E, D]) Iter(seq iter.Seq2[E, error]) iter.Seq2[D, error] {
	return func(yield func(D, error) bool) {
		defer s.cancelParent()
		s.goWorkers(seq)

		go func() {
			_ = s.g.Wait()
			close(s.mapped)
		}()

		stopped := false
		for r := range s.mapped {
			if stopped {
				continue
			}
			if !yield(r.d, r.e) {
				stopped = true
				s.cancelParent()
			}
		}
	}
}
