package event

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"timeline-service/internal/shared/logx"
)

// Handler receives events. It runs on the publisher's goroutine.
type Handler func(Event)

type subscriber struct {
	kinds  map[Kind]struct{}
	handle Handler
}

func (s *subscriber) wants(k Kind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

// Bus fans events out to live subscribers. A single Publish call delivers to
// every matching subscriber before returning, so one producer's events reach
// each subscriber in emission order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*subscriber
	log    *zap.Logger
}

func NewBus(log *zap.Logger) *Bus {
	log = logx.OrNop(log)
	return &Bus{subs: make(map[uint64]*subscriber), log: log}
}

// Subscription is the handle returned by Subscribe. Unsubscribe is safe to
// call more than once.
type Subscription struct {
	bus     *Bus
	id      uint64
	once    sync.Once
	release func()
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mu.Unlock()
		if s.release != nil {
			s.release()
		}
	})
}

// Subscribe registers h for the given kinds, or for every kind when none are
// passed.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) *Subscription {
	s := &subscriber{handle: h}
	if len(kinds) > 0 {
		s.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = struct{}{}
		}
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = s
	b.mu.Unlock()
	return &Subscription{bus: b, id: id}
}

// Publish delivers ev to every subscriber that wants its kind, in
// subscription order.
func (b *Bus) Publish(ev Event) {
	if ev == nil {
		return
	}
	k := ev.Kind()

	b.mu.RLock()
	ids := make([]uint64, 0, len(b.subs))
	for id, s := range b.subs {
		if s.wants(k) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[id].handle)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.call(h, ev)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) call(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", zap.String("kind", string(ev.Kind())), zap.Any("panic", r))
		}
	}()
	h(ev)
}
