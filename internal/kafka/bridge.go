package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"timeline-service/internal/event"
	"timeline-service/internal/metrics"
	"timeline-service/internal/shared/logx"
)

const outboxSize = 256

// Forwarder writes every locally published event to the events topic.
type Forwarder struct {
	w     Writer
	relay *event.Relay
	log   *zap.Logger
}

func NewForwarder(w Writer, relay *event.Relay, log *zap.Logger) *Forwarder {
	log = logx.OrNop(log)
	return &Forwarder{w: w, relay: relay, log: log.With(zap.String("bridge", "kafka"))}
}

// Run forwards events until ctx is done, then closes the writer.
func (f *Forwarder) Run(ctx context.Context) error {
	outbox := make(chan event.Envelope, outboxSize)
	stop := f.relay.Outbound(func(env event.Envelope) {
		select {
		case outbox <- env:
		default:
			metrics.RecordBridge("kafka", "out", "dropped")
			f.log.Warn("outbox full, dropping event", zap.String("id", env.ID))
		}
	})
	defer stop()
	defer func() {
		if err := f.w.Close(); err != nil {
			f.log.Warn("close writer", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-outbox:
			f.send(ctx, env)
		}
	}
}

func (f *Forwarder) send(ctx context.Context, env event.Envelope) {
	raw, err := event.Marshal(env)
	if err != nil {
		metrics.RecordBridge("kafka", "out", "error")
		f.log.Warn("marshal envelope", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := f.w.WriteMessage(ctx, []byte(env.Viewer), raw); err != nil {
		metrics.RecordBridge("kafka", "out", "error")
		f.log.Warn("write", zap.String("id", env.ID), zap.Error(err))
		return
	}
	metrics.RecordBridge("kafka", "out", "ok")
}

// Inbound returns a consumer Handler that delivers remote events through relay.
func Inbound(relay *event.Relay) Handler {
	return func(ctx context.Context, _ string, _, value []byte) error {
		delivered, err := relay.Inbound(ctx, value)
		switch {
		case err != nil:
			metrics.RecordBridge("kafka", "in", "error")
			return err
		case delivered:
			metrics.RecordBridge("kafka", "in", "ok")
		default:
			metrics.RecordBridge("kafka", "in", "skipped")
		}
		return nil
	}
}
