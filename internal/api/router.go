package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/guttosm/firdspulse/internal/middleware"
)

// Request deadlines. A trigger waits longer than a read, and hands back 202 once it expires.
var (
	readTimeout    = 10 * time.Second
	triggerTimeout = 60 * time.Second
)

// NewRouter creates a Gin engine with the API routes configured.
//
// Responsibilities:
//   - Registers global middlewares (RequestID, Logger, Recovery, ErrorHandler, RateLimiter).
//   - Bounds reads and triggers with separate request timeouts.
//   - Configures API v1 routes (/api/v1).
//
// Note:
//   - Health and readiness endpoints (/healthz, /readyz) are registered in app.InitializeApp().
//
// Parameters:
//   - handler (*Handler): The HTTP handler backed by the run service.
//
// Returns:
//   - *gin.Engine: Configured Gin router.
func NewRouter(handler *Handler) *gin.Engine {
	router := gin.New()

	// ─── Middlewares ───────────────────────────────
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RecoveryMiddleware(),
		middleware.ErrorHandler,
		middleware.RateLimiter(),
	)

	// ─── API v1 ───────────────────────────────────
	v1 := router.Group("/api/v1")
	{
		reads := v1.Group("", middleware.Timeout(readTimeout))
		reads.GET("/runs", handler.ListRuns)
		reads.GET("/runs/latest", handler.LatestRun)
		reads.GET("/runs/:id", handler.GetRun)

		v1.POST("/runs", middleware.Timeout(triggerTimeout), handler.TriggerRun)
	}

	return router
}
