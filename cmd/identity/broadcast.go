package identity

import (
	"log/slog"
	"sync"
)

const defaultEventQueue = 16

// Broadcaster fans provider events out to subscriptions.
//
// Each subscription has a bounded queue. Publish never blocks: an event that
// does not fit is dropped for that subscriber and logged. Channels are closed
// only by Cancel/Close, under the same lock Publish holds, so a send can never
// hit a closed channel.
type Broadcaster struct {
	log   *slog.Logger
	queue int

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

// NewBroadcaster constructs a Broadcaster with the given per-subscriber queue size.
func NewBroadcaster(log *slog.Logger, queue int) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	if queue <= 0 {
		queue = defaultEventQueue
	}
	return &Broadcaster{
		log:   log,
		queue: queue,
		subs:  make(map[*subscription]struct{}),
	}
}

// Subscribe registers a new subscription. After Close it returns an already-closed one.
func (b *Broadcaster) Subscribe() Subscription {
	s := &subscription{b: b, ch: make(chan Event, b.queue)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		s.once.Do(func() { close(s.ch) })
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every open subscription.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			b.log.Warn("identity.event.dropped", "kind", string(ev.Kind), "queue", b.queue)
		}
	}
}

// Len returns the number of open subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close cancels every subscription. Idempotent.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		s.once.Do(func() { close(s.ch) })
	}
}

type subscription struct {
	b    *Broadcaster
	ch   chan Event
	once sync.Once
}

func (s *subscription) Events() <-chan Event { return s.ch }

func (s *subscription) Cancel() {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()

	delete(s.b.subs, s)
	s.once.Do(func() { close(s.ch) })
}
