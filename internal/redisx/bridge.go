package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"timeline-service/internal/event"
	"timeline-service/internal/metrics"
	"timeline-service/internal/shared/logx"
)

const outboxSize = 256

// Bridge mirrors hub events over a redis pub/sub channel.
type Bridge struct {
	r       *redis.Client
	channel string
	relay   *event.Relay
	log     *zap.Logger
}

func NewBridge(r *redis.Client, channel string, relay *event.Relay, log *zap.Logger) *Bridge {
	log = logx.OrNop(log)
	return &Bridge{r: r, channel: channel, relay: relay, log: log.With(zap.String("bridge", "redis"))}
}

// Run forwards local events and delivers remote ones until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	outbox := make(chan event.Envelope, outboxSize)
	stop := b.relay.Outbound(func(env event.Envelope) {
		select {
		case outbox <- env:
		default:
			metrics.RecordBridge("redis", "out", "dropped")
			b.log.Warn("outbox full, dropping event", zap.String("id", env.ID))
		}
	})
	defer stop()

	sub := b.r.Subscribe(ctx, b.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	b.log.Info("bridge started", zap.String("channel", b.channel))
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			b.log.Info("bridge stopped")
			return nil
		case env := <-outbox:
			b.send(ctx, env)
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			b.receive(ctx, []byte(msg.Payload))
		}
	}
}

func (b *Bridge) send(ctx context.Context, env event.Envelope) {
	raw, err := event.Marshal(env)
	if err != nil {
		metrics.RecordBridge("redis", "out", "error")
		b.log.Warn("marshal envelope", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := b.r.Publish(ctx, b.channel, raw).Err(); err != nil {
		metrics.RecordBridge("redis", "out", "error")
		b.log.Warn("publish", zap.String("id", env.ID), zap.Error(err))
		return
	}
	metrics.RecordBridge("redis", "out", "ok")
}

func (b *Bridge) receive(ctx context.Context, raw []byte) {
	delivered, err := b.relay.Inbound(ctx, raw)
	switch {
	case err != nil:
		metrics.RecordBridge("redis", "in", "error")
		b.log.Warn("inbound message", zap.Error(err))
	case delivered:
		metrics.RecordBridge("redis", "in", "ok")
	default:
		metrics.RecordBridge("redis", "in", "skipped")
	}
}
