package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"callpipe/internal/webhook"
	"callpipe/pkg/logger"
)

// Provider webhook headers carrying the signature scheme inputs.
const (
	headerSignature = "x-zm-signature"
	headerTimestamp = "x-zm-request-timestamp"
)

// maxBodyBytes bounds inbound webhook bodies; envelopes are small JSON.
const maxBodyBytes = 1 << 20

// Publisher is the queue surface the ingress needs.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
}

// Handler is the webhook ingress: verify (or answer the ownership challenge)
// and re-publish. It never runs the processing pipeline; responding fast here
// keeps the provider's retry clock decoupled from pipeline latency.
type Handler struct {
	Secret    string
	Publisher Publisher
}

// HandleWebhook processes one inbound provider webhook.
//
// Per-request flow: the validation challenge is checked first on every
// request (it carries no signature); then signature verification when the
// headers are present; then publish. The 200 goes out only after the queue
// acknowledged the write, so the provider retries on publish failure.
func (h Handler) HandleWebhook(c *gin.Context) {
	log := logger.FromGin(c)

	rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var env webhook.Envelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	if env.Event == webhook.EventURLValidation {
		h.handleChallenge(c, env)
		return
	}

	sig := c.GetHeader(headerSignature)
	ts := c.GetHeader(headerTimestamp)
	if sig == "" && ts == "" {
		// Tolerant ingestion: events from senders configured without
		// signing are accepted but flagged.
		log.Warn("webhook accepted without signature headers", "event", env.Event)
	} else {
		ok, err := webhook.Verify(rawBody, sig, ts, h.Secret)
		if err != nil {
			// Missing secret is our misconfiguration, not the sender's fault.
			log.Error("webhook verification unavailable", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "verification unavailable"})
			return
		}
		if !ok {
			log.Warn("webhook signature mismatch", "event", env.Event)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
	}

	if err := h.Publisher.Publish(c.Request.Context(), []byte(env.Payload.AccountID), rawBody); err != nil {
		log.Error("queue publish failed", "event", env.Event, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "publish failed"})
		return
	}

	log.Info("webhook published", "event", env.Event, "account_id", env.Payload.AccountID)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h Handler) handleChallenge(c *gin.Context, env webhook.Envelope) {
	log := logger.FromGin(c)

	if env.Payload.PlainToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "plainToken required"})
		return
	}
	resp, err := webhook.Challenge(env.Payload.PlainToken, h.Secret)
	if err != nil {
		if errors.Is(err, webhook.ErrNoSecret) {
			log.Error("endpoint validation requested but webhook secret is not configured")
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "validation unavailable"})
		return
	}
	log.Info("endpoint validation challenge answered")
	c.JSON(http.StatusOK, resp)
}
