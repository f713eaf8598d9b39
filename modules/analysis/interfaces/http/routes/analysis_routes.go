package routes

import (
	"teammate/server/modules/analysis/interfaces/http/handlers"

	"github.com/gin-gonic/gin"
)

type AnalysisRoutes struct {
	handlers *handlers.AnalysisHandlers
}

func NewAnalysisRoutes(h *handlers.AnalysisHandlers) *AnalysisRoutes {
	return &AnalysisRoutes{handlers: h}
}

// SetupRoutes wires the Analysis Orchestrator's fan-out trigger and its
// five stage-done observability endpoints, all served by the same
// StageDone handler family.
func (r *AnalysisRoutes) SetupRoutes(router *gin.RouterGroup) {
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/question-analysis-ready", r.handlers.QuestionAnalysisReady)
		webhooks.POST("/pronunciation-done", r.handlers.StageDone("pronunciation"))
		webhooks.POST("/grammar-done", r.handlers.StageDone("grammar"))
		webhooks.POST("/lexical-done", r.handlers.StageDone("lexical"))
		webhooks.POST("/vocabulary-done", r.handlers.StageDone("vocabulary"))
		webhooks.POST("/fluency-done", r.handlers.StageDone("fluency"))
	}
}
