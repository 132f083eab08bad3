package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/b3hniya/tenderd-fms-sub000/internal/auth"
)

// NewRouter wires the public surface: authenticated ingest routes, the
// vehicle snapshot query, the websocket live feed and the operational
// endpoints.
func NewRouter(h *Handlers, a *auth.Authenticator, feed *LiveFeed) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "X-API-Key"},
	}))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if feed != nil {
		router.GET("/ws/live", feed.Serve)
	}

	api := router.Group("/api")
	api.Use(APIKeyAuth(a))
	{
		api.POST("/vehicles/:id/telemetry", h.IngestTelemetry)
		api.POST("/vehicles/:id/telemetry/batch", h.IngestTelemetryBatch)
		api.GET("/vehicles/:id", h.GetVehicle)
	}

	return router
}
