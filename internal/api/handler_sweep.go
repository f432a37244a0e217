package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PostSweep handles POST /api/attendance/sweep: an on-demand run of the
// end-of-day reconciliation, intended for a cron caller. The configured
// bearer key gates it.
func (h *Handler) PostSweep(c *gin.Context) {
	if h.cfg.Server.SweepAPIKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sweep api key is not configured"})
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+h.cfg.Server.SweepAPIKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.sweepJob.RunOnce(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}
