package event

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"timeline-service/internal/shared/logx"
)

const DefaultDedupeTTL = 10 * time.Minute

// Deduper reports whether key is being stored for the first time.
type Deduper interface {
	PutNX(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Relay moves events between a Hub and other processes. Brokers deliver at
// least once, so inbound envelopes are deduplicated when a Deduper is set.
// Every instance receives every envelope, so the dedupe key is scoped to the
// receiving instance. Envelopes from this process are dropped.
type Relay struct {
	source string
	hub    *Hub
	dedupe Deduper
	ttl    time.Duration
	log    *zap.Logger
}

func NewRelay(source string, hub *Hub, dedupe Deduper, log *zap.Logger) *Relay {
	log = logx.OrNop(log)
	return &Relay{source: source, hub: hub, dedupe: dedupe, ttl: DefaultDedupeTTL, log: log}
}

func (r *Relay) Source() string { return r.source }

func (r *Relay) dedupeKey(env Envelope) string { return r.source + ":" + env.ID }

// Outbound hands every locally published event to send as an envelope. The
// returned func stops it.
func (r *Relay) Outbound(send func(Envelope)) func() {
	return r.hub.Tap(func(viewer string, ev Event) {
		env, err := Wrap(r.source, viewer, ev)
		if err != nil {
			r.log.Warn("wrap event", zap.String("kind", string(ev.Kind())), zap.Error(err))
			return
		}
		send(env)
	})
}

// Inbound decodes raw and delivers it to local subscribers. It reports
// whether the event was delivered.
func (r *Relay) Inbound(ctx context.Context, raw []byte) (bool, error) {
	env, err := Unmarshal(raw)
	if err != nil {
		return false, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Source == r.source {
		return false, nil
	}
	ev, err := env.Decode()
	if err != nil {
		return false, err
	}
	if r.dedupe != nil {
		first, err := r.dedupe.PutNX(ctx, r.dedupeKey(env), r.ttl)
		if err != nil {
			return false, fmt.Errorf("dedupe %s: %w", env.ID, err)
		}
		if !first {
			r.log.Debug("duplicate envelope", zap.String("id", env.ID))
			return false, nil
		}
	}
	r.hub.Deliver(env.Viewer, ev)
	return true, nil
}
