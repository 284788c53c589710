package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"callpipe/internal/config"
)

// Reader wraps a consumer-group reader with explicit fetch/commit so the
// relay controls acknowledgment: an uncommitted message is redelivered after
// a rebalance or restart (at-least-once).
type Reader struct {
	r *kafka.Reader
}

func NewReader(cfg config.KafkaConfig) *Reader {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:         cfg.Brokers,
		GroupID:         cfg.GroupID,
		Topic:           cfg.Topic,
		StartOffset:     kafka.FirstOffset,
		CommitInterval:  0, // synchronous commits; the relay decides when
		MinBytes:        1,
		MaxBytes:        10e6,
		MaxWait:         time.Second,
		ReadLagInterval: -1,
	})
	return &Reader{r: r}
}

func (r *Reader) Fetch(ctx context.Context) (kafka.Message, error) {
	return r.r.FetchMessage(ctx)
}

func (r *Reader) Commit(ctx context.Context, msg kafka.Message) error {
	if err := r.r.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
	}
	return nil
}

func (r *Reader) Close() error {
	return r.r.Close()
}
