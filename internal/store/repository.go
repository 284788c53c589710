package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// NOTE: This repository assumes the following table exists:
//
// CREATE TABLE call_recordings (
//   call_id            text PRIMARY KEY,
//   recording_id       text NOT NULL,
//   account_id         text NOT NULL,
//   direction          text NOT NULL DEFAULT '',
//   duration           integer NOT NULL DEFAULT 0,
//   caller_number      text NOT NULL DEFAULT '',
//   caller_name        text NOT NULL DEFAULT '',
//   callee_number      text NOT NULL DEFAULT '',
//   callee_name        text NOT NULL DEFAULT '',
//   media_path         text,
//   media_size         bigint,
//   estimated_duration integer,
//   transcript         text,
//   call_status        text,
//   confidence         double precision,
//   reason             text,
//   processing_status  text NOT NULL,
//   created_at         timestamptz NOT NULL,
//   updated_at         timestamptz NOT NULL
// );
//
// The call_id primary key is what makes duplicate queue deliveries safe:
// every write is an upsert keyed on it.

var ErrNotFound = errors.New("call recording not found")

var ErrInvalidArgument = errors.New("invalid argument")

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// BeginProcessing registers the recording as seen, before any pipeline stage
// runs. Idempotent: a redelivered message re-runs this without effect beyond
// bumping updated_at.
func (r *Repository) BeginProcessing(ctx context.Context, rec CallRecording) error {
	if rec.CallID == "" || rec.RecordingID == "" {
		return ErrInvalidArgument
	}
	now := time.Now().UTC()
	const q = `
INSERT INTO call_recordings (
  call_id, recording_id, account_id, direction, duration,
  caller_number, caller_name, callee_number, callee_name,
  processing_status, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
ON CONFLICT (call_id)
DO UPDATE SET processing_status = EXCLUDED.processing_status,
              updated_at = EXCLUDED.updated_at
`
	_, err := r.db.ExecContext(ctx, q,
		rec.CallID,
		rec.RecordingID,
		rec.AccountID,
		rec.Direction,
		rec.Duration,
		rec.CallerNumber,
		rec.CallerName,
		rec.CalleeNumber,
		rec.CalleeName,
		ProcessingStatusProcessing,
		now,
	)
	if err != nil {
		return fmt.Errorf("begin processing for call %s: %w", rec.CallID, err)
	}
	return nil
}

// SaveMedia records the stored media artifact for a call.
func (r *Repository) SaveMedia(ctx context.Context, callID, path string, size int64, estimatedDuration int) error {
	if callID == "" || path == "" {
		return ErrInvalidArgument
	}
	const q = `
UPDATE call_recordings
SET media_path = $2, media_size = $3, estimated_duration = $4, updated_at = $5
WHERE call_id = $1
`
	res, err := r.db.ExecContext(ctx, q, callID, path, size, estimatedDuration, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save media for call %s: %w", callID, err)
	}
	return requireRow(res, callID)
}

// SaveTranscript records the transcription output for a call.
func (r *Repository) SaveTranscript(ctx context.Context, callID, transcript string) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	const q = `
UPDATE call_recordings
SET transcript = $2, updated_at = $3
WHERE call_id = $1
`
	res, err := r.db.ExecContext(ctx, q, callID, transcript, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save transcript for call %s: %w", callID, err)
	}
	return requireRow(res, callID)
}

// SaveClassification records the classification outcome and marks the run
// completed.
func (r *Repository) SaveClassification(ctx context.Context, callID, status string, confidence float64, reason string) error {
	if callID == "" || status == "" {
		return ErrInvalidArgument
	}
	const q = `
UPDATE call_recordings
SET call_status = $2, confidence = $3, reason = $4,
    processing_status = $5, updated_at = $6
WHERE call_id = $1
`
	res, err := r.db.ExecContext(ctx, q, callID, status, confidence, reason, ProcessingStatusCompleted, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save classification for call %s: %w", callID, err)
	}
	return requireRow(res, callID)
}

// MarkFailed records that the pipeline gave up on this call. The row keeps
// whatever stages completed (media, transcript) for later inspection.
func (r *Repository) MarkFailed(ctx context.Context, callID string) error {
	if callID == "" {
		return ErrInvalidArgument
	}
	const q = `
UPDATE call_recordings
SET processing_status = $2, updated_at = $3
WHERE call_id = $1
`
	res, err := r.db.ExecContext(ctx, q, callID, ProcessingStatusFailed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark failed for call %s: %w", callID, err)
	}
	return requireRow(res, callID)
}

// GetByCallID loads one processing record.
func (r *Repository) GetByCallID(ctx context.Context, callID string) (CallRecording, error) {
	if callID == "" {
		return CallRecording{}, ErrInvalidArgument
	}
	const q = `
SELECT call_id, recording_id, account_id, direction, duration,
       caller_number, caller_name, callee_number, callee_name,
       media_path, media_size, estimated_duration, transcript,
       call_status, confidence, reason,
       processing_status, created_at, updated_at
FROM call_recordings
WHERE call_id = $1
`
	var rec CallRecording
	err := r.db.QueryRowContext(ctx, q, callID).Scan(
		&rec.CallID,
		&rec.RecordingID,
		&rec.AccountID,
		&rec.Direction,
		&rec.Duration,
		&rec.CallerNumber,
		&rec.CallerName,
		&rec.CalleeNumber,
		&rec.CalleeName,
		&rec.MediaPath,
		&rec.MediaSize,
		&rec.EstimatedDuration,
		&rec.Transcript,
		&rec.CallStatus,
		&rec.Confidence,
		&rec.Reason,
		&rec.ProcessingStatus,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallRecording{}, ErrNotFound
		}
		return CallRecording{}, fmt.Errorf("get call %s: %w", callID, err)
	}
	return rec, nil
}

func requireRow(res sql.Result, callID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil // driver cannot report; assume the update applied
	}
	if n == 0 {
		return fmt.Errorf("call %s: %w", callID, ErrNotFound)
	}
	return nil
}
