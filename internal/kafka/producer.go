package kafka

import (
	"context"
	"strings"
	"time"

	kgo "github.com/segmentio/kafka-go"
)

type Writer interface {
	WriteMessage(ctx context.Context, key, value []byte) error
	Close() error
}

type writer struct {
	w *kgo.Writer
}

// NewWriter creates a Kafka writer. acks is "none", "one" or "all" (default
// "one"). Messages are partitioned by key so one viewer's events stay ordered.
func NewWriter(bootstrapServers, topic, acks string, async bool) Writer {
	addr := strings.TrimSpace(bootstrapServers)
	if addr == "" {
		addr = "kafka:9092"
	}

	var requiredAcks kgo.RequiredAcks
	switch strings.ToLower(strings.TrimSpace(acks)) {
	case "none":
		requiredAcks = kgo.RequireNone
	case "all":
		requiredAcks = kgo.RequireAll
	default:
		requiredAcks = kgo.RequireOne
	}

	return &writer{w: &kgo.Writer{
		Addr:         kgo.TCP(strings.Split(addr, ",")...),
		Topic:        topic,
		Balancer:     &kgo.Hash{},
		RequiredAcks: requiredAcks,
		Async:        async,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (wr *writer) WriteMessage(ctx context.Context, key, value []byte) error {
	return wr.w.WriteMessages(ctx, kgo.Message{Key: key, Value: value, Time: time.Now()})
}

func (wr *writer) Close() error { return wr.w.Close() }
