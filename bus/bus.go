// Package bus implements the ordered, bounded, multi-producer/multi-consumer
// event bus connecting the clock, agents, alert engine, coordinator and
// metrics aggregator.
//
// Delivery contract:
//   - Every subscriber whose filter matches an event receives it exactly once.
//   - Events from one producer arrive at each subscriber in publish order
//     (per-producer FIFO); no total order across producers is guaranteed.
//   - Queues are bounded. When one subscriber's queue is full, Publish blocks
//     the calling producer until space frees or the bus closes; other
//     producers and other subscribers are unaffected.
//   - Close releases every blocked Publish and Next with core.ErrBusClosed
//     after buffered events drain, letting each unit exit its loop cleanly.
package bus

import (
	"context"
	"sync"

	"github.com/careloop/icumesh/core"
)

// DefaultQueueCapacity bounds each subscriber's inbound queue when the
// subscriber does not request its own capacity.
const DefaultQueueCapacity = 256

// Bus fan-outs published events to filtered subscriber queues.
type Bus struct {
	mu       sync.RWMutex
	subs     []*Subscription
	closed   bool
	done     chan struct{}
	capacity int
}

// New constructs a Bus. capacity <= 0 falls back to DefaultQueueCapacity.
func New(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Bus{done: make(chan struct{}), capacity: capacity}
}

// Subscribe registers a named subscriber receiving every event the filter
// matches. A nil filter matches everything. The returned Subscription is
// owned by a single consuming goroutine.
func (b *Bus) Subscribe(name string, filter Filter) *Subscription {
	if filter == nil {
		filter = MatchAll()
	}
	sub := &Subscription{
		name:   name,
		filter: filter,
		ch:     make(chan core.Event, b.capacity),
		done:   b.done,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.subs = append(b.subs, sub)
	}
	return sub
}

// Publish delivers the event to every matching subscriber, blocking on each
// full queue until space frees. Returns core.ErrBusClosed once the bus shuts
// down; publishers treat that as the signal to stop, not as a failure.
func (b *Bus) Publish(ev core.Event) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return core.ErrBusClosed
	}
	subs := make([]*Subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, sub := range subs {
		if !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		case <-b.done:
			return core.ErrBusClosed
		}
	}
	return nil
}

// Close shuts the bus down exactly once. Blocked publishers return
// core.ErrBusClosed immediately; subscribers drain whatever is already queued
// and then observe closure. Close is idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}

// Closed reports whether Close has been called.
func (b *Bus) Closed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// Backlog returns the total number of queued, undelivered events across all
// subscribers. The clock polls this for its soft tick barrier.
func (b *Bus) Backlog() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, sub := range b.subs {
		total += len(sub.ch)
	}
	return total
}

// Subscription is one subscriber's ordered, lazy view of matching events.
type Subscription struct {
	name   string
	filter Filter
	ch     chan core.Event
	done   <-chan struct{}
}

// Name returns the subscriber name (used in logs).
func (s *Subscription) Name() string { return s.name }

// Pending returns the current queue depth.
func (s *Subscription) Pending() int { return len(s.ch) }

// Next blocks until the next matching event, context cancellation, or bus
// closure. After Close, queued events are still delivered in order; only
// when the queue is empty does Next return core.ErrBusClosed.
func (s *Subscription) Next(ctx context.Context) (core.Event, error) {
	// Drain queued events before honoring closure so nothing already
	// delivered to this subscriber is lost at shutdown.
	select {
	case ev := <-s.ch:
		return ev, nil
	default:
	}

	select {
	case ev := <-s.ch:
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		select {
		case ev := <-s.ch:
			return ev, nil
		default:
			return nil, core.ErrBusClosed
		}
	}
}
