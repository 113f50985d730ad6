package api

import "github.com/gin-gonic/gin"

func RegisterRoutes(r *gin.Engine, h *Handlers) {
	api := r.Group("/api")
	{
		api.GET("/health", health)
		api.GET("/settings", h.settingsHandler)
		api.GET("/logos", listLogosHandler)
		api.GET("/logos/:id", h.logoHandler)

		upload := limitBody(h.cfg.MaxUploadBytes())
		api.POST("/composite", upload, h.compositeHandler)

		api.POST("/sessions", h.createSessionHandler)
		api.GET("/sessions/:id", h.sessionStatusHandler)
		api.PUT("/sessions/:id/image", upload, h.sessionImageHandler)
		api.GET("/sessions/:id/preview", h.sessionPreviewHandler)
		api.GET("/sessions/:id/download", h.sessionDownloadHandler)
		api.GET("/sessions/:id/qr", h.sessionQRHandler)
		api.DELETE("/sessions/:id", h.deleteSessionHandler)
	}
}
