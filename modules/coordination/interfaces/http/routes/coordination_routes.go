package routes

import (
	"teammate/server/modules/coordination/interfaces/http/handlers"

	"github.com/gin-gonic/gin"
)

type CoordinationRoutes struct {
	handlers *handlers.CoordinationHandlers
}

func NewCoordinationRoutes(h *handlers.CoordinationHandlers) *CoordinationRoutes {
	return &CoordinationRoutes{handlers: h}
}

// SetupRoutes wires the fan-in webhooks consumed by the Analysis
// Coordinator.
func (r *CoordinationRoutes) SetupRoutes(router *gin.RouterGroup) {
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/audio-conversion-done", r.handlers.AudioConversionDone)
		webhooks.POST("/transcription-done", r.handlers.TranscriptionDone)
	}
}
