package kafka

import (
	"context"
	"strings"
	"time"

	kgo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"timeline-service/internal/shared/logx"
)

type Handler func(ctx context.Context, topic string, key, value []byte) error

type Consumer struct {
	reader *kgo.Reader
	handle Handler
	log    *zap.Logger
}

func NewConsumer(brokers, groupID, topic string, h Handler, log *zap.Logger) *Consumer {
	log = logx.OrNop(log)
	return &Consumer{
		reader: kgo.NewReader(kgo.ReaderConfig{
			Brokers:        strings.Split(brokers, ","),
			GroupID:        groupID,
			Topic:          topic,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        500 * time.Millisecond,
			CommitInterval: time.Second,
		}),
		handle: h,
		log:    log.With(zap.String("bridge", "kafka")),
	}
}

// Run fetches, handles and commits messages until ctx is done. Handler errors
// are logged and the message is committed anyway.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		_ = c.reader.Close()
	}()

	cfg := c.reader.Config()
	c.log.Info("consumer started",
		zap.String("group", cfg.GroupID),
		zap.String("topic", cfg.Topic),
		zap.Strings("brokers", cfg.Brokers),
	)

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Info("consumer shutting down")
				return nil
			}
			c.log.Warn("fetch", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		if c.handle != nil {
			if err := c.handle(ctx, m.Topic, m.Key, m.Value); err != nil {
				c.log.Warn("handler", zap.Int64("offset", m.Offset), zap.Error(err))
			}
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.log.Warn("commit", zap.Error(err))
		}
	}
}
