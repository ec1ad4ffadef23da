package api

import (
	authdelivery "voicebox-backend/internal/auth/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")

	api.GET("/health", h.Health)
	api.Static("/voice", h.config.VoiceStorageDir)

	protected := api.Group("")
	protected.Use(authdelivery.AuthMiddleware(h.authUsecase))
	{
		protected.GET("/events", func(c *gin.Context) {
			h.sseManager.ServeHTTP(c, c.GetString("userID"))
		})

		protected.GET("/workers", h.ListWorkers)
		protected.GET("/workers/:name", h.GetWorker)
		protected.POST("/workers/:name/start", h.StartWorker)
		protected.POST("/workers/:name/stop", h.StopWorker)

		protected.POST("/queue", h.Enqueue)
		protected.GET("/queue", h.RecentQueueItems)

		protected.GET("/messages", h.ListProcessedMessages)
		protected.GET("/messages/:id/voice", h.GetVoiceResponse)

		protected.GET("/connections", h.ListConnections)

		protected.POST("/fcm/register", h.RegisterFCMToken)
		protected.DELETE("/fcm/:token", h.UnregisterFCMToken)
	}
}
