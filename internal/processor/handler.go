package processor

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"callpipe/internal/webhook"
	"callpipe/pkg/logger"
)

// Dispatcher is the detachment surface the handler needs; *Tasks satisfies it.
type Dispatcher interface {
	Dispatch(env webhook.Envelope, messageID string)
}

// Handler is the push-delivery endpoint. It validates the envelope, answers
// immediately, and hands the work to the dispatcher; pipeline failures are
// never surfaced to the queue. Only transport-level failures drive
// redelivery.
type Handler struct {
	Tasks Dispatcher
}

// HandlePush accepts one push-delivered queue message.
//
// A malformed body or undecodable envelope answers 400 without dispatching:
// such a message can never parse on redelivery, so rejecting it permanently
// (the relay dead-letters on 400) beats a retry loop.
func (h Handler) HandlePush(c *gin.Context) {
	log := logger.FromGin(c)

	var msg webhook.PushMessage
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid push message"})
		return
	}
	if msg.Message.Data == "" || msg.Message.MessageID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "message.data and message.messageId required"})
		return
	}

	env, err := msg.DecodeEnvelope()
	if err != nil {
		log.Warn("undecodable push message", "message_id", msg.Message.MessageID, "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid envelope"})
		return
	}

	// Acknowledge first; the pipeline runs detached.
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
	h.Tasks.Dispatch(env, msg.Message.MessageID)
}
