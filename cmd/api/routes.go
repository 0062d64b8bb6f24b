package main

import (
	"github.com/gin-gonic/gin"

	"autodialer-platform/internal/auth"
	"autodialer-platform/internal/httpapi"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	if h.Auth != nil {
		r.POST("/auth/token", h.IssueToken)
	}

	// protected when JWT_SECRET is set; open otherwise
	api := r.Group("/")
	api.Use(auth.RequireToken(h.Auth))
	{
		api.POST("/upload-numbers", h.UploadNumbers)
		api.POST("/upload-numbers-file", h.UploadNumbersFile)
		api.GET("/phone-numbers", h.ListNumbers)
		api.DELETE("/phone-numbers/:number", h.RemoveNumber)
		api.DELETE("/phone-numbers", h.ClearNumbers)

		api.POST("/call-all", h.CallAll)
		api.POST("/call-number/:number", h.CallNumber)

		api.POST("/ai-command", h.ExecuteCommand)

		api.GET("/call-logs", h.ListCallLogs)
		api.DELETE("/call-logs", h.PurgeCallLogs)
		api.GET("/call-statistics", h.GetStatistics)

		api.GET("/config/status", h.ConfigStatus)
	}
}
