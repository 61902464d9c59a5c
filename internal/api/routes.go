package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/youruser/thumbapp/internal/observability"
)

// NewRouter builds the gin engine with middleware and all routes.
func NewRouter(h *Handler, metrics http.Handler, corsOrigin string, logger *observability.Logger) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxUploadBytes
	r.Use(gin.Recovery(), requestID(), requestLogger(logger), cors(corsOrigin))
	RegisterRoutes(r, h)
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}
	return r
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	api := r.Group("/api")
	{
		api.GET("/health", h.health)
		api.POST("/generate", h.generate)
		api.GET("/thumbnails", h.listThumbnails)
		api.GET("/files/:filename", h.serveFile)
		api.GET("/qr", h.qrPreview)
	}
}
