// Package eventbus implements a bounded multi-consumer broadcast channel.
//
// Every subscriber sees every event in publication order. Publishing never
// blocks: the bus keeps the last capacity events in a ring and a subscriber that
// falls further behind is told how many events it missed, then resumes from the
// oldest event still retained.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 512

// ErrClosed is returned once the bus is closed and a subscriber has drained it.
var ErrClosed = errors.New("eventbus: closed")

// LagError reports events overwritten before the subscriber read them.
type LagError struct {
	Missed uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("eventbus: subscriber lagged, %d events skipped", e.Missed)
}

// IsLagged returns the number of missed events when err is a *LagError.
func IsLagged(err error) (uint64, bool) {
	var lag *LagError
	if errors.As(err, &lag) {
		return lag.Missed, true
	}
	return 0, false
}

// Bus is a broadcast ring buffer of T.
type Bus[T any] struct {
	mu     sync.Mutex
	ring   []T
	tail   uint64 // sequence number of the next published event
	closed bool
	signal chan struct{}
}

// New creates a bus retaining capacity events. Non-positive values use DefaultCapacity.
func New[T any](capacity int) *Bus[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus[T]{
		ring:   make([]T, capacity),
		signal: make(chan struct{}),
	}
}

// Capacity returns the ring size.
func (b *Bus[T]) Capacity() int {
	return len(b.ring)
}

// Publish appends v, overwriting the oldest event when the ring is full.
func (b *Bus[T]) Publish(v T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	b.ring[b.tail%uint64(len(b.ring))] = v
	b.tail++
	b.wakeLocked()
	return nil
}

// Close stops publication. Subscribers drain what is retained, then get ErrClosed.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.wakeLocked()
}

// Subscribe returns a cursor positioned after the latest published event.
func (b *Bus[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Subscription[T]{bus: b, next: b.tail}
}

func (b *Bus[T]) wakeLocked() {
	close(b.signal)
	b.signal = make(chan struct{})
}

func (b *Bus[T]) oldestLocked() uint64 {
	if n := uint64(len(b.ring)); b.tail > n {
		return b.tail - n
	}
	return 0
}

// Subscription is one consumer's read position. It is not safe for concurrent Recv.
type Subscription[T any] struct {
	bus      *Bus[T]
	next     uint64
	detached bool
}

// Recv blocks until the next event is available, the subscriber lagged, the bus
// closed or ctx is done.
func (s *Subscription[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	b := s.bus

	for {
		b.mu.Lock()
		if s.detached {
			b.mu.Unlock()
			return zero, ErrClosed
		}

		if oldest := b.oldestLocked(); s.next < oldest {
			missed := oldest - s.next
			s.next = oldest
			b.mu.Unlock()
			return zero, &LagError{Missed: missed}
		}

		if s.next < b.tail {
			v := b.ring[s.next%uint64(len(b.ring))]
			s.next++
			b.mu.Unlock()
			return v, nil
		}

		if b.closed {
			b.mu.Unlock()
			return zero, ErrClosed
		}

		wait := b.signal
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-wait:
		}
	}
}

// Pending reports how many retained events the subscriber has not read yet.
func (s *Subscription[T]) Pending() int {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	next := s.next
	if oldest := b.oldestLocked(); next < oldest {
		next = oldest
	}
	return int(b.tail - next)
}

// Close detaches the subscription; further Recv calls return ErrClosed.
func (s *Subscription[T]) Close() {
	s.bus.mu.Lock()
	s.detached = true
	s.bus.mu.Unlock()
}
