package core

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatr/internal/utils"
)

// Feed is the single outward display stream. Publishing is serialized, so every
// subscriber observes events in the same order and a single event is never split.
type Feed struct {
	mu   sync.Mutex
	subs map[string]*Subscription
	log  zerolog.Logger
}

// Subscription is one consumer of a Feed.
type Subscription struct {
	ID     string
	Events <-chan *Event

	events   chan *Event
	lossless bool
	closing  chan struct{}
	feed     *Feed
	once     sync.Once
}

// NewFeed creates a feed with no subscribers.
func NewFeed(logger *zerolog.Logger) *Feed {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "feed").Logger()
	}
	return &Feed{
		subs: make(map[string]*Subscription),
		log:  l,
	}
}

// Subscribe registers a consumer with the given buffer size. Events that do not
// fit in the buffer are dropped for this consumer.
func (f *Feed) Subscribe(buffer int) *Subscription {
	return f.subscribe(buffer, false)
}

// SubscribeLossless registers a consumer that never misses an event: once its
// buffer is full, Publish waits until the consumer reads or closes. The consumer
// must keep draining Events until Close.
func (f *Feed) SubscribeLossless(buffer int) *Subscription {
	return f.subscribe(buffer, true)
}

func (f *Feed) subscribe(buffer int, lossless bool) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan *Event, buffer)
	sub := &Subscription{
		ID:       utils.NewID(),
		Events:   ch,
		events:   ch,
		lossless: lossless,
		closing:  make(chan struct{}),
		feed:     f,
	}

	f.mu.Lock()
	f.subs[sub.ID] = sub
	f.mu.Unlock()
	return sub
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		// releases a Publish waiting on this subscriber before taking the lock
		close(s.closing)
		s.feed.mu.Lock()
		delete(s.feed.subs, s.ID)
		close(s.events)
		s.feed.mu.Unlock()
	})
}

// Publish hands ev to every subscriber. A lossy subscriber whose buffer is full
// loses the event rather than stalling a receive loop; a lossless one is waited for.
func (f *Feed) Publish(ev *Event) {
	if ev == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, sub := range f.subs {
		if sub.lossless {
			select {
			case sub.events <- ev:
			case <-sub.closing:
			}
			continue
		}
		select {
		case sub.events <- ev:
		default:
			f.log.Warn().Str("subscriber", id).Str("channel", ev.Channel).Msg("subscriber too slow, display event dropped")
		}
	}
}

// Subscribers returns the number of registered consumers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
