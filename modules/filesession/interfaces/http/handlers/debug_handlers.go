package handlers

import (
	"net/http"

	"teammate/server/modules/filesession/application/services"

	"github.com/gin-gonic/gin"
)

// DebugHandlers exposes operator-facing introspection and manual
// remediation endpoints over the File Session Manager.
type DebugHandlers struct {
	manager *services.FileSessionManager
}

func NewDebugHandlers(manager *services.FileSessionManager) *DebugHandlers {
	return &DebugHandlers{manager: manager}
}

// GetFileSessions returns every actively-tracked file session.
func (h *DebugHandlers) GetFileSessions(c *gin.Context) {
	sessions := h.manager.GetActiveSessions()

	out := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, gin.H{
			"session_id":           s.SessionID,
			"file_path":            s.FilePath,
			"created_at":           s.CreatedAt,
			"cleanup_timeout":      s.CleanupTimeout.String(),
			"pending_dependencies": s.PendingDependencies(),
			"cleanup_completed":    s.CleanupCompleted,
		})
	}

	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// CleanupSession forces cleanup of a single session by id.
func (h *DebugHandlers) CleanupSession(c *gin.Context) {
	sessionID := c.Param("id")
	accepted := h.manager.ForceCleanup(sessionID)
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "cleaned_up": accepted})
}

// PeriodicCleanup triggers an out-of-band sweep, normally driven by the
// background ticker started in cmd/server.
func (h *DebugHandlers) PeriodicCleanup(c *gin.Context) {
	count := h.manager.PeriodicCleanup()
	c.JSON(http.StatusOK, gin.H{"cleaned_up": count})
}
