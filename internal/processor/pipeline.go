package processor

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"callpipe/internal/classify"
	"callpipe/internal/media"
	"callpipe/internal/store"
	"callpipe/internal/transcribe"
	"callpipe/internal/webhook"
)

// maxConcurrentRecordings bounds the per-envelope fan-out; each recording
// holds an in-flight download plus a model call.
const maxConcurrentRecordings = 4

// TokenSource mints per-recording download tokens; *zoomapi.Client satisfies it.
type TokenSource interface {
	DownloadToken(ctx context.Context, recordingID string) (string, error)
}

// MediaFetcher downloads and stores recording audio; *media.Fetcher satisfies it.
type MediaFetcher interface {
	Fetch(ctx context.Context, downloadURL, callID, ext, bearer string) (media.StoredMedia, []byte, error)
}

// CallClassifier labels a transcript; *classify.Classifier satisfies it.
type CallClassifier interface {
	Classify(ctx context.Context, transcript string, durationSeconds int) classify.Result
}

// RecordingStore persists per-call pipeline progress; *store.Repository
// satisfies it.
type RecordingStore interface {
	BeginProcessing(ctx context.Context, rec store.CallRecording) error
	SaveMedia(ctx context.Context, callID, path string, size int64, estimatedDuration int) error
	SaveTranscript(ctx context.Context, callID, transcript string) error
	SaveClassification(ctx context.Context, callID, status string, confidence float64, reason string) error
	MarkFailed(ctx context.Context, callID string) error
}

// FailureSink receives per-recording stage failures. The default logs; a
// deployment can wire dead-lettering or re-queueing behind it instead.
type FailureSink func(messageID, callID, stage string, err error)

// Pipeline runs the per-event processing: fetch media, transcribe, classify,
// persist. One instance serves all envelopes; it holds no per-envelope state.
type Pipeline struct {
	Tokens      TokenSource
	Fetcher     MediaFetcher
	Transcriber transcribe.Transcriber
	Classifier  CallClassifier
	Repo        RecordingStore
	Dedup       Deduper
	Log         *slog.Logger
	OnFailure   FailureSink
}

func (p *Pipeline) log() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

func (p *Pipeline) fail(messageID, callID, stage string, err error) {
	p.log().Error("pipeline stage failed",
		"message_id", messageID, "call_id", callID, "stage", stage, "err", err)
	if p.OnFailure != nil {
		p.OnFailure(messageID, callID, stage, err)
	}
}

// ProcessEnvelope runs the pipeline for every recording in the envelope.
// Recordings are processed concurrently and independently: a failure in one
// never aborts its siblings, and the error is reported through the failure
// sink rather than returned. Duplicate deliveries of the same messageID are
// skipped via the deduper.
func (p *Pipeline) ProcessEnvelope(ctx context.Context, env webhook.Envelope, messageID string) {
	log := p.log().With("message_id", messageID, "event", env.Event)

	switch env.Event {
	case webhook.EventRecordingCompleted, webhook.EventPhoneRecording:
	default:
		log.Debug("ignoring event type")
		return
	}

	if p.Dedup != nil {
		claimed, err := p.Dedup.Claim(ctx, messageID)
		if err != nil {
			// Dedup is an optimization; on redis trouble we process anyway
			// and rely on idempotent persistence.
			log.Warn("dedup claim failed, processing anyway", "err", err)
		} else if !claimed {
			log.Info("duplicate delivery skipped")
			return
		}
	}

	recs := env.Payload.Object.Recordings
	if len(recs) == 0 {
		log.Info("envelope carried no recordings")
		return
	}
	log.Info("processing envelope", "recordings", len(recs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRecordings)
	for _, rec := range recs {
		rec := rec
		g.Go(func() error {
			p.processRecording(ctx, env.Payload.AccountID, rec, messageID)
			return nil
		})
	}
	_ = g.Wait()
}

// processRecording is the per-recording unit of work. Every stage failure is
// terminal for this recording only; whatever completed stays persisted
// (partial completion is a valid, recoverable state).
func (p *Pipeline) processRecording(ctx context.Context, accountID string, rec webhook.Recording, messageID string) {
	log := p.log().With("message_id", messageID, "call_id", rec.CallID)

	if rec.CallID == "" || rec.DownloadURL == "" {
		p.fail(messageID, rec.CallID, "validate", fmt.Errorf("recording missing call_id or download_url"))
		return
	}

	if err := p.Repo.BeginProcessing(ctx, store.CallRecording{
		CallID:       rec.CallID,
		RecordingID:  rec.RecordingID,
		AccountID:    accountID,
		Direction:    rec.Direction,
		Duration:     rec.Duration,
		CallerNumber: rec.CallerNumber,
		CallerName:   rec.CallerName,
		CalleeNumber: rec.CalleeNumber,
		CalleeName:   rec.CalleeName,
	}); err != nil {
		p.fail(messageID, rec.CallID, "begin", err)
		return
	}

	token, err := p.Tokens.DownloadToken(ctx, rec.RecordingID)
	if err != nil {
		p.fail(messageID, rec.CallID, "download_token", err)
		p.markFailed(ctx, rec.CallID)
		return
	}

	ext := rec.FileExtension()
	stored, audio, err := p.Fetcher.Fetch(ctx, rec.DownloadURL, rec.CallID, ext, token)
	if err != nil {
		p.fail(messageID, rec.CallID, "fetch_media", err)
		p.markFailed(ctx, rec.CallID)
		return
	}
	if err := p.Repo.SaveMedia(ctx, rec.CallID, stored.Path, stored.Size, stored.EstimatedDuration); err != nil {
		p.fail(messageID, rec.CallID, "save_media", err)
		p.markFailed(ctx, rec.CallID)
		return
	}
	log.Info("media stored", "path", stored.Path, "size", stored.Size)

	tr, err := p.Transcriber.Transcribe(ctx, fmt.Sprintf("%s.%s", rec.CallID, ext), audio)
	if err != nil {
		p.fail(messageID, rec.CallID, "transcribe", err)
		p.markFailed(ctx, rec.CallID)
		return
	}
	if err := p.Repo.SaveTranscript(ctx, rec.CallID, tr.Transcript); err != nil {
		p.fail(messageID, rec.CallID, "save_transcript", err)
		p.markFailed(ctx, rec.CallID)
		return
	}

	// Classification never fails: model trouble degrades to the duration rule.
	result := p.Classifier.Classify(ctx, tr.Transcript, rec.Duration)
	if err := p.Repo.SaveClassification(ctx, rec.CallID, string(result.Status), result.Confidence, result.Reason); err != nil {
		p.fail(messageID, rec.CallID, "save_classification", err)
		p.markFailed(ctx, rec.CallID)
		return
	}

	log.Info("recording processed",
		"status", result.Status, "confidence", result.Confidence, "duration", rec.Duration)
}

func (p *Pipeline) markFailed(ctx context.Context, callID string) {
	if err := p.Repo.MarkFailed(ctx, callID); err != nil {
		p.log().Error("mark failed did not persist", "call_id", callID, "err", err)
	}
}
