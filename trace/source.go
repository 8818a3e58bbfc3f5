package trace

import (
	"context"
	"io"
	"sync"
)

// Source is an ordered asynchronous sequence of events consumed in a single
// forward pass.
//
// Next blocks until the next event is available and returns io.EOF once the
// sequence is exhausted. Any other error is a producer failure. Close stops the
// underlying producer; it is safe to call more than once and after exhaustion.
type Source interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

// sliceSource replays a fixed set of events.
type sliceSource struct {
	mu     sync.Mutex
	events []Event
	pos    int
	closed bool
}

// FromSlice returns a Source yielding the given events in order.
func FromSlice(events ...Event) Source {
	return &sliceSource{events: events}
}

func (s *sliceSource) Next(ctx context.Context) (Event, error) {
	if err := ctx.Err(); err != nil {
		return Event{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pos >= len(s.events) {
		return Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func (s *sliceSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// chanSource adapts a producer goroutine writing to channels.
type chanSource struct {
	events  <-chan Event
	errs    <-chan error
	stop    func()
	once    sync.Once
	pending error
}

// FromChannel adapts an event channel plus a terminal error channel into a
// Source, following the (<-chan T, <-chan error) convention used by models.
// The producer closes events when done; an error received on errs is reported
// as a producer failure after any events already buffered. stop, if non-nil,
// is invoked by Close to cancel the producer.
func FromChannel(events <-chan Event, errs <-chan error, stop func()) Source {
	return &chanSource{events: events, errs: errs, stop: stop}
}

func (s *chanSource) Next(ctx context.Context) (Event, error) {
	for {
		if s.pending != nil {
			if s.events != nil {
				select {
				case ev, ok := <-s.events:
					if ok {
						return ev, nil
					}
					s.events = nil
				default:
				}
			}
			return Event{}, s.pending
		}
		if s.events == nil && s.errs == nil {
			return Event{}, io.EOF
		}
		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case ev, ok := <-s.events:
			if ok {
				return ev, nil
			}
			s.events = nil
		case err, ok := <-s.errs:
			if !ok {
				s.errs = nil
				continue
			}
			if err != nil {
				s.pending = err
				s.errs = nil
			}
		}
	}
}

func (s *chanSource) Close() error {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
	return nil
}
