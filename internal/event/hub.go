package event

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"timeline-service/internal/shared/logx"
)

// Everyone addresses an event to every viewer.
const Everyone = ""

// Tap observes events published locally through a Hub, together with the
// viewer they were addressed to.
type Tap func(viewer string, ev Event)

// Hub keeps one Bus per viewer. Flags such as liked or following are relative
// to a viewer, so their events must only reach that viewer's screens; deletes
// and comment counts are addressed to Everyone.
type Hub struct {
	mu      sync.Mutex
	buses   map[string]*Bus
	taps    map[uint64]Tap
	nextTap uint64
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	log = logx.OrNop(log)
	return &Hub{
		buses: make(map[string]*Bus),
		taps:  make(map[uint64]Tap),
		log:   log,
	}
}

// Subscribe registers h on viewer's bus. The bus is dropped once its last
// subscription is gone.
func (h *Hub) Subscribe(viewer string, fn Handler, kinds ...Kind) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.buses[viewer]
	if !ok {
		b = NewBus(h.log.With(zap.String("viewer", viewer)))
		h.buses[viewer] = b
	}
	sub := b.Subscribe(fn, kinds...)
	sub.release = func() { h.release(viewer, b) }
	return sub
}

func (h *Hub) release(viewer string, b *Bus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.buses[viewer] == b && b.Len() == 0 {
		delete(h.buses, viewer)
	}
}

// For binds the hub to a single viewer.
func (h *Hub) For(viewer string) Subscriber {
	return viewerBus{hub: h, viewer: viewer}
}

// Publish delivers an event produced in this process and hands it to every
// tap.
func (h *Hub) Publish(viewer string, ev Event) {
	if ev == nil {
		return
	}
	h.Deliver(viewer, ev)

	h.mu.Lock()
	ids := make([]uint64, 0, len(h.taps))
	for id := range h.taps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	taps := make([]Tap, 0, len(ids))
	for _, id := range ids {
		taps = append(taps, h.taps[id])
	}
	h.mu.Unlock()

	for _, tap := range taps {
		h.call(tap, viewer, ev)
	}
}

// Deliver hands ev to local subscribers only. Bridges use it for events that
// came from another process so they are never sent back out.
func (h *Hub) Deliver(viewer string, ev Event) {
	if ev == nil {
		return
	}
	h.mu.Lock()
	var targets []*Bus
	if viewer == Everyone {
		targets = make([]*Bus, 0, len(h.buses))
		for _, b := range h.buses {
			targets = append(targets, b)
		}
	} else if b, ok := h.buses[viewer]; ok {
		targets = append(targets, b)
	}
	h.mu.Unlock()

	for _, b := range targets {
		b.Publish(ev)
	}
}

// Tap registers fn for locally published events. The returned func removes it.
func (h *Hub) Tap(fn Tap) func() {
	h.mu.Lock()
	h.nextTap++
	id := h.nextTap
	h.taps[id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.taps, id)
			h.mu.Unlock()
		})
	}
}

// Viewers returns the number of viewers with a live bus.
func (h *Hub) Viewers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.buses)
}

func (h *Hub) call(tap Tap, viewer string, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("event tap panicked", zap.String("kind", string(ev.Kind())), zap.Any("panic", r))
		}
	}()
	tap(viewer, ev)
}

// Subscriber is the subscribe side of a bus.
type Subscriber interface {
	Subscribe(fn Handler, kinds ...Kind) *Subscription
}

type viewerBus struct {
	hub    *Hub
	viewer string
}

func (v viewerBus) Subscribe(fn Handler, kinds ...Kind) *Subscription {
	return v.hub.Subscribe(v.viewer, fn, kinds...)
}
