package api

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"attendance-backend/internal/attendance"
	"attendance-backend/internal/geofence"
	"attendance-backend/internal/store"
)

type checkInRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

// PostCheckIn handles POST /api/attendance/checkin.
func (h *Handler) PostCheckIn(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id is required"})
		return
	}

	var req checkInRequest
	var pos *geofence.Position
	if err := c.ShouldBindJSON(&req); err == nil {
		pos = &geofence.Position{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	record, err := h.lifecycle.CheckIn(c.Request.Context(), uid, pos, time.Now().UTC())
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// PostCheckOut handles POST /api/attendance/checkout.
func (h *Handler) PostCheckOut(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id is required"})
		return
	}

	record, err := h.lifecycle.CheckOut(c.Request.Context(), uid, time.Now().UTC(), store.SourceManual)
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// PostHeartbeat handles POST /api/attendance/heartbeat. It always succeeds;
// the inactive case is a normal answer, not an error.
func (h *Handler) PostHeartbeat(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id is required"})
		return
	}

	result, err := h.lifecycle.Heartbeat(c.Request.Context(), uid, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "heartbeat failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetStatus handles GET /api/attendance/status.
func (h *Handler) GetStatus(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id is required"})
		return
	}

	result, err := h.lifecycle.Status(c.Request.Context(), uid, time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status query failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

type disconnectRequest struct {
	Reason string `json:"reason"`
}

// PostDisconnect handles POST /api/attendance/disconnect, the fire-and-forget
// teardown beacon. It answers 202 whether or not anything was open.
func (h *Handler) PostDisconnect(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user id is required"})
		return
	}

	var req disconnectRequest
	_ = c.ShouldBindJSON(&req) // body is optional
	if req.Reason == "" {
		req.Reason = "disconnect"
	}

	if err := h.lifecycle.Disconnect(c.Request.Context(), uid, req.Reason, time.Now().UTC()); err != nil {
		// The beacon is best-effort either way; the liveness monitor will
		// close the record if this failed.
		log.Printf("Disconnect handling failed for user %s: %v", uid, err)
	}
	c.Status(http.StatusAccepted)
}

// writeLifecycleError maps policy outcomes to HTTP statuses.
func (h *Handler) writeLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrMissingLocation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrSiteNotConfigured):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrOutOfRange):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrAlreadyCheckedIn),
		errors.Is(err, attendance.ErrAlreadyCheckedOut),
		errors.Is(err, attendance.ErrNoCheckIn):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("Attendance operation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
