package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
)

// These are unit tests for argument validation only. The write paths are
// Postgres-specific (ON CONFLICT upserts), so end-to-end behavior, notably
// that processing the same message twice leaves exactly one row per call id,
// is covered by integration tests against Postgres.

func TestRepository_RejectsInvalidArgs(t *testing.T) {
	r := NewRepository((*sql.DB)(nil))
	ctx := context.Background()

	if err := r.BeginProcessing(ctx, CallRecording{}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := r.BeginProcessing(ctx, CallRecording{CallID: "c1"}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing recording id, got %v", err)
	}
	if err := r.SaveMedia(ctx, "", "p", 1, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := r.SaveMedia(ctx, "c1", "", 1, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty path, got %v", err)
	}
	if err := r.SaveTranscript(ctx, "", "text"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := r.SaveClassification(ctx, "c1", "", 0.5, "r"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty status, got %v", err)
	}
	if err := r.MarkFailed(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if _, err := r.GetByCallID(ctx, ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
