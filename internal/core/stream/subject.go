// Package stream provides a replaying value holder: observers receive the
// current value on subscription, then every later publication, in order.
package stream

import (
	"context"
	"sync"
)

// Stream is a read-only view of a value that changes over time.
type Stream[T any] interface {
	// Observe registers fn. fn is called once with the current value before
	// Observe returns, then on every publication. Calls never overlap.
	// fn must not call Publish or Observe on the same stream.
	Observe(fn func(T)) (cancel func())
	// Latest returns the current value. While the value is pending it
	// blocks until the next publication or until ctx is done.
	Latest(ctx context.Context) (T, error)
}

type observer[T any] struct {
	id uint64
	fn func(T)
}

// Subject is the writable Stream. The zero value is not usable; use NewSubject.
type Subject[T any] struct {
	deliverMu sync.Mutex

	mu        sync.Mutex
	value     T
	pending   bool
	settled   chan struct{}
	observers []observer[T]
	nextID    uint64
}

// NewSubject returns a Subject holding initial.
func NewSubject[T any](initial T) *Subject[T] {
	return &Subject[T]{value: initial}
}

// Publish replaces the value, settles any pending state and notifies observers.
func (s *Subject[T]) Publish(v T) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.value = v
	if s.pending {
		s.pending = false
		close(s.settled)
	}
	obs := make([]observer[T], len(s.observers))
	copy(obs, s.observers)
	s.mu.Unlock()

	for _, o := range obs {
		o.fn(v)
	}
}

// MarkPending flags the held value as stale. Latest callers wait for the
// next Publish instead of reading it. Observers are not notified.
func (s *Subject[T]) MarkPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending {
		s.pending = true
		s.settled = make(chan struct{})
	}
}

// Pending reports whether a publication is awaited.
func (s *Subject[T]) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Value returns the held value without waiting, pending or not.
func (s *Subject[T]) Value() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *Subject[T]) Observe(fn func(T)) func() {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer[T]{id: id, fn: fn})
	current := s.value
	s.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *Subject[T]) remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, o := range s.observers {
		if o.id == id {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

func (s *Subject[T]) Latest(ctx context.Context) (T, error) {
	for {
		s.mu.Lock()
		if !s.pending {
			v := s.value
			s.mu.Unlock()
			return v, nil
		}
		settled := s.settled
		s.mu.Unlock()

		select {
		case <-settled:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Map projects src through fn. The projection holds no state of its own.
func Map[S, T any](src Stream[S], fn func(S) T) Stream[T] {
	return &mapped[S, T]{src: src, fn: fn}
}

type mapped[S, T any] struct {
	src Stream[S]
	fn  func(S) T
}

func (m *mapped[S, T]) Observe(fn func(T)) func() {
	return m.src.Observe(func(v S) { fn(m.fn(v)) })
}

func (m *mapped[S, T]) Latest(ctx context.Context) (T, error) {
	v, err := m.src.Latest(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return m.fn(v), nil
}
