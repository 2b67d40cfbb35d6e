package event

import "sync"

type subscriber[T any] struct {
	fn      func(T)
	removed bool
}

// Broadcaster fans values out to listeners in publish order. Listeners run
// on the broadcaster's own goroutine, one value at a time.
type Broadcaster[T any] struct {
	exec *Serial

	mu   sync.Mutex
	subs []*subscriber[T]
}

// NewBroadcaster starts a broadcaster.
func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{exec: NewSerial()}
}

// Subscribe registers fn and returns a function that removes it. Once the
// returned function has been called fn receives no further values, even if
// a dispatch to other listeners is in progress.
func (b *Broadcaster[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s := &subscriber[T]{fn: fn}

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			s.removed = true
			for i, other := range b.subs {
				if other == s {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish queues v for delivery to every current listener.
func (b *Broadcaster[T]) Publish(v T) {
	b.exec.Go(func() {
		b.mu.Lock()
		subs := make([]*subscriber[T], len(b.subs))
		copy(subs, b.subs)
		b.mu.Unlock()

		for _, s := range subs {
			b.mu.Lock()
			removed := s.removed
			b.mu.Unlock()
			if removed {
				continue
			}
			s.fn(v)
		}
	})
}

// Len returns the number of registered listeners.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close delivers pending values and stops the broadcaster.
func (b *Broadcaster[T]) Close() {
	b.exec.Close()
}
