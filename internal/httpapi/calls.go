package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"callpipe/internal/store"
	"callpipe/pkg/logger"
)

// CallReader loads one processed call record; *store.Repository satisfies it.
type CallReader interface {
	GetByCallID(ctx context.Context, callID string) (store.CallRecording, error)
}

// URLSigner mints a fresh read URL for a stored object; *media.Store
// satisfies it.
type URLSigner interface {
	SignedURL(ctx context.Context, path string) (string, error)
}

// Calls exposes read access to processed recordings. Keep it thin: parse
// input, call internal services, return JSON.
type Calls struct {
	Repo   CallReader
	Signer URLSigner
}

type callResponse struct {
	CallID           string   `json:"call_id"`
	RecordingID      string   `json:"recording_id,omitempty"`
	Duration         int      `json:"duration"`
	ProcessingStatus string   `json:"processing_status"`
	CallStatus       string   `json:"call_status,omitempty"`
	Confidence       *float64 `json:"confidence,omitempty"`
	Reason           string   `json:"reason,omitempty"`
	Transcript       string   `json:"transcript,omitempty"`
	MediaURL         string   `json:"media_url,omitempty"`
}

// GetCall returns one call's processing record. The media URL is signed fresh
// on every read; stored paths never leave the service.
func (h Calls) GetCall(c *gin.Context) {
	log := logger.FromGin(c)

	callID := c.Param("call_id")
	if callID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
		return
	}

	rec, err := h.Repo.GetByCallID(c.Request.Context(), callID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
		log.Error("call lookup failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	resp := callResponse{
		CallID:           rec.CallID,
		RecordingID:      rec.RecordingID,
		Duration:         rec.Duration,
		ProcessingStatus: rec.ProcessingStatus,
		CallStatus:       rec.CallStatus.String,
		Reason:           rec.Reason.String,
		Transcript:       rec.Transcript.String,
	}
	if rec.Confidence.Valid {
		conf := rec.Confidence.Float64
		resp.Confidence = &conf
	}
	if rec.MediaPath.Valid && h.Signer != nil {
		url, err := h.Signer.SignedURL(c.Request.Context(), rec.MediaPath.String)
		if err != nil {
			// The record is still useful without a playback link.
			log.Warn("media url signing failed", "call_id", callID, "err", err)
		} else {
			resp.MediaURL = url
		}
	}

	c.JSON(http.StatusOK, resp)
}
