package routes

import (
	"teammate/server/modules/filesession/interfaces/http/handlers"

	"github.com/gin-gonic/gin"
)

type DebugRoutes struct {
	handlers *handlers.DebugHandlers
}

func NewDebugRoutes(h *handlers.DebugHandlers) *DebugRoutes {
	return &DebugRoutes{handlers: h}
}

// SetupRoutes wires the operator debug endpoints for file sessions.
func (r *DebugRoutes) SetupRoutes(router *gin.RouterGroup) {
	debug := router.Group("/debug")
	{
		debug.GET("/file-sessions", r.handlers.GetFileSessions)
		debug.POST("/cleanup-session/:id", r.handlers.CleanupSession)
		debug.POST("/periodic-cleanup", r.handlers.PeriodicCleanup)
	}
}
