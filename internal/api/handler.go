package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"attendance-backend/config"
	"attendance-backend/internal/attendance"
	"attendance-backend/internal/store"
	"attendance-backend/internal/sweep"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	cfg       *config.Config
	store     store.Store
	lifecycle *attendance.Service
	sweepJob  *sweep.Job
	webpush   *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(cfg *config.Config, s store.Store, lifecycle *attendance.Service, sweepJob *sweep.Job, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		cfg:       cfg,
		store:     s,
		lifecycle: lifecycle,
		sweepJob:  sweepJob,
		webpush:   webpushOptions,
	}
}

// userID pulls the caller's identity from the X-User-ID header. Auth
// mechanics live in front of this service; by the time a request gets here
// the header is trusted.
func userID(c *gin.Context) (string, bool) {
	id := c.GetHeader("X-User-ID")
	return id, id != ""
}
