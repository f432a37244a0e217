package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"attendance-backend/internal/model"
	"attendance-backend/internal/store"
)

type setSiteRequest struct {
	Latitude     *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
	RadiusMeters *float64 `json:"radiusMeters" binding:"omitempty,gte=10,lte=1000"`
}

// GetSite handles GET /api/site.
func (h *Handler) GetSite(c *gin.Context) {
	site, err := h.store.GetSite(c.Request.Context())
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "site location is not configured"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch site location"})
		return
	}
	c.JSON(http.StatusOK, site)
}

// PutSite handles PUT /api/site: a full replacement of the singleton. The old
// value is discarded atomically, so concurrent check-ins read either the old
// site or the new one, never a blend.
func (h *Handler) PutSite(c *gin.Context) {
	var req setSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	radius := 100.0
	if req.RadiusMeters != nil {
		radius = *req.RadiusMeters
	}

	site := model.SiteLocation{
		Latitude:     *req.Latitude,
		Longitude:    *req.Longitude,
		RadiusMeters: radius,
	}
	if err := h.store.ReplaceSite(c.Request.Context(), &site); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to replace site location"})
		return
	}
	c.JSON(http.StatusOK, site)
}
