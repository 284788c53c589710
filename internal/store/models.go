package store

import (
	"database/sql"
	"time"
)

// Processing lifecycle of a call recording row.
const (
	ProcessingStatusProcessing = "processing"
	ProcessingStatusCompleted  = "completed"
	ProcessingStatusFailed     = "failed"
)

// CallRecording is the persisted processing record for one call: the stored
// media artifact plus the classification outcome. A row with media fields set
// but no classification is a valid intermediate state (the pipeline failed
// between stages); it is recoverable, not fatal.
type CallRecording struct {
	CallID      string
	RecordingID string
	AccountID   string
	Direction   string
	Duration    int

	CallerNumber string
	CallerName   string
	CalleeNumber string
	CalleeName   string

	MediaPath         sql.NullString
	MediaSize         sql.NullInt64
	EstimatedDuration sql.NullInt64

	Transcript sql.NullString

	CallStatus sql.NullString
	Confidence sql.NullFloat64
	Reason     sql.NullString

	ProcessingStatus string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
