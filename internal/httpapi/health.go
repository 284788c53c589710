package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health returns a liveness handler. No auth; used by the orchestrator's
// probes against every service.
func Health(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": service})
	}
}
