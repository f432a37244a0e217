package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"attendance-backend/config"
	"attendance-backend/internal/attendance"
	"attendance-backend/internal/mw"
	"attendance-backend/internal/store"
	"attendance-backend/internal/sweep"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, lifecycle *attendance.Service, sweepJob *sweep.Job, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(cfg, s, lifecycle, sweepJob, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/attendance/checkin", handler.PostCheckIn)
		api.POST("/attendance/checkout", handler.PostCheckOut)
		api.POST("/attendance/heartbeat", handler.PostHeartbeat)
		api.GET("/attendance/status", handler.GetStatus)
		api.POST("/attendance/disconnect", handler.PostDisconnect)
		api.POST("/attendance/sweep", handler.PostSweep)

		// The site rarely changes; cache the read.
		api.GET("/site", caching, handler.GetSite)
		api.PUT("/site", handler.PutSite)

		api.GET("/subscriptions", handler.GetSubscriptions)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
