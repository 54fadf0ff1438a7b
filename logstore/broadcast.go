package logstore

import (
	"context"
	"sync"
)

// Broadcaster fans appended entries out to live subscribers (the
// websocket log stream). Slow subscribers lose entries rather than block
// the writer.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[int]chan Entry
	next int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Entry)}
}

// Subscribe returns a channel of future entries and a cancel function.
func (b *Broadcaster) Subscribe() (<-chan Entry, func()) {
	ch := make(chan Entry, 64)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers e to every subscriber without blocking.
func (b *Broadcaster) Publish(e Entry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// broadcastStore tees successful appends into a broadcaster.
type broadcastStore struct {
	inner Store
	b     *Broadcaster
}

// WithBroadcast wraps a store so every stored entry is also published.
func WithBroadcast(inner Store, b *Broadcaster) Store {
	return &broadcastStore{inner: inner, b: b}
}

func (s *broadcastStore) Append(ctx context.Context, e Entry) error {
	e = stamp(e)
	if err := s.inner.Append(ctx, e); err != nil {
		return err
	}
	s.b.Publish(e)
	return nil
}

func (s *broadcastStore) Entries(ctx context.Context, limit, offset int) ([]Entry, error) {
	return s.inner.Entries(ctx, limit, offset)
}
