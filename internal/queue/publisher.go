package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"callpipe/internal/config"
)

// Publisher is the proxy-side handle to the durable queue. Writes are
// synchronous with full acks: the ingress answers 200 to the provider only
// after the broker has accepted the event, so a publish failure surfaces as a
// 500 and the provider retries.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

type kafkaPublisher struct {
	w *kafka.Writer
}

func NewPublisher(cfg config.KafkaConfig) Publisher {
	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},

		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
	}
	return &kafkaPublisher{w: w}
}

func (p *kafkaPublisher) Publish(ctx context.Context, key, value []byte) error {
	err := p.w.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.w.Topic, err)
	}
	return nil
}

func (p *kafkaPublisher) Close() error {
	return p.w.Close()
}

// NewDLQPublisher returns a publisher for the dead-letter topic.
func NewDLQPublisher(cfg config.KafkaConfig) Publisher {
	dlq := cfg
	dlq.Topic = cfg.DLQTopic
	return NewPublisher(dlq)
}
