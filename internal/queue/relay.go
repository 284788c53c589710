package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"

	"callpipe/internal/webhook"
)

// Fetcher is the consumer surface the relay needs; *Reader satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msg kafka.Message) error
}

// Relay drives push delivery: it fetches queued messages, wraps each in the
// push envelope and POSTs it to the processor's webhook endpoint.
//
// Acknowledgment policy:
//   - 2xx: the processor accepted the message; commit the offset.
//   - 400: the processor rejected the payload as malformed; it will never
//     parse on redelivery, so the raw message goes to the DLQ topic and the
//     offset is committed.
//   - anything else (5xx, transport error, timeout): leave the offset
//     uncommitted and let the queue redeliver.
type Relay struct {
	Reader       Fetcher
	DLQ          Publisher
	ProcessorURL string
	Client       *http.Client
	Log          *slog.Logger

	// Backoff between fetch errors so a broker outage doesn't spin.
	RetryDelay time.Duration
}

// Run consumes until ctx is canceled.
func (rl *Relay) Run(ctx context.Context) error {
	if rl.Client == nil {
		rl.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if rl.RetryDelay <= 0 {
		rl.RetryDelay = 2 * time.Second
	}
	log := rl.Log
	if log == nil {
		log = slog.Default()
	}

	for {
		msg, err := rl.Reader.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error("fetch failed", "err", err)
			select {
			case <-time.After(rl.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		messageID := MessageID(msg)
		status, err := rl.deliver(ctx, msg.Value, messageID)
		if err != nil {
			log.Error("push delivery failed", "message_id", messageID, "err", err)
			continue // uncommitted: redeliver
		}

		switch {
		case status >= 200 && status < 300:
			// accepted
		case status == http.StatusBadRequest:
			log.Warn("processor rejected message as malformed, dead-lettering", "message_id", messageID)
			if err := rl.DLQ.Publish(ctx, msg.Key, msg.Value); err != nil {
				log.Error("dead-letter publish failed", "message_id", messageID, "err", err)
				continue // keep the message; retry the whole cycle
			}
		default:
			log.Error("processor returned retryable status", "message_id", messageID, "status", status)
			continue // uncommitted: redeliver
		}

		if err := rl.Reader.Commit(ctx, msg); err != nil {
			// Delivery succeeded but the ack did not; the processor's dedup
			// absorbs the resulting duplicate.
			log.Error("commit failed", "message_id", messageID, "err", err)
		}
	}
}

func (rl *Relay) deliver(ctx context.Context, raw []byte, messageID string) (int, error) {
	body := pushBody(raw, messageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rl.ProcessorURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := rl.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("push to processor: %w", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

// MessageID derives a stable per-delivery identifier from the message's
// position. Stable across redeliveries of the same message, which is what the
// processor's dedup keys on.
func MessageID(msg kafka.Message) string {
	return fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset)
}

func pushBody(raw []byte, messageID string) []byte {
	b, _ := json.Marshal(webhook.NewPushMessage(raw, messageID))
	return b
}
