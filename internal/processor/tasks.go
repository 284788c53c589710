package processor

import (
	"context"
	"log/slog"
	"sync"

	"callpipe/internal/webhook"
)

// Tasks is the explicit detachment point between the push endpoint and the
// pipeline: the HTTP handler acknowledges the queue, then hands the envelope
// to a bounded worker pool instead of processing on the request goroutine.
type Tasks struct {
	pipeline *Pipeline
	jobs     chan task
	wg       sync.WaitGroup
	log      *slog.Logger

	// base context for detached work; pipeline runs must not die with the
	// originating HTTP request.
	ctx    context.Context
	cancel context.CancelFunc
}

type task struct {
	env       webhook.Envelope
	messageID string
}

// NewTasks starts workers goroutines consuming dispatched envelopes.
func NewTasks(pipeline *Pipeline, workers, buffer int, log *slog.Logger) *Tasks {
	if workers <= 0 {
		workers = 2
	}
	if buffer <= 0 {
		buffer = 64
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &Tasks{
		pipeline: pipeline,
		jobs:     make(chan task, buffer),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	for i := 0; i < workers; i++ {
		t.wg.Add(1)
		go t.worker()
	}
	return t
}

func (t *Tasks) worker() {
	defer t.wg.Done()
	for {
		select {
		case job, ok := <-t.jobs:
			if !ok {
				return
			}
			t.pipeline.ProcessEnvelope(t.ctx, job.env, job.messageID)
			t.log.Debug("task finished", "message_id", job.messageID)
		case <-t.ctx.Done():
			return
		}
	}
}

// Dispatch enqueues an envelope for processing. It blocks briefly when the
// buffer is full rather than dropping; the caller has already acknowledged
// the message, so losing it here would be silent data loss.
func (t *Tasks) Dispatch(env webhook.Envelope, messageID string) {
	select {
	case t.jobs <- task{env: env, messageID: messageID}:
	case <-t.ctx.Done():
		t.log.Error("dispatch after shutdown, envelope dropped", "message_id", messageID)
	}
}

// Shutdown stops accepting work and waits for in-flight tasks, up to ctx.
func (t *Tasks) Shutdown(ctx context.Context) error {
	close(t.jobs)
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	t.cancel()
	return ctx.Err()
}
