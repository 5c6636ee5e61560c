package api

import (
	"strconv"
	"time"

	"github.com/File-Sharing-BondBridg/Publication-Images/internal/api/handlers"
	"github.com/File-Sharing-BondBridg/Publication-Images/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}
		c.Next()
	}
}

// metricsMiddleware records request counts and latency by route template, so
// ids in paths do not explode label cardinality.
func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func RegisterRoutes(r *gin.Engine, files *handlers.FileHandler, health *handlers.HealthHandler) {
	r.Use(corsMiddleware())
	r.Use(metricsMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", health.HealthCheck)

		// Selected files
		api.POST("/files", files.SelectFiles)
		api.GET("/files", files.ListFiles)
		api.GET("/files/:id", files.GetFile)
		api.DELETE("/files/:id", files.DeleteFile)
		api.POST("/files/:id/upload", files.UploadFile)
		api.GET("/files/:id/thumbnails/:size", files.GetThumbnail)

		// Pending queue
		api.GET("/queue", files.ListQueue)
		api.DELETE("/queue", files.ClearQueue)
		api.POST("/queue/upload", files.UploadQueue)
	}
}
