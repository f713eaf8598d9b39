package routes

import (
	"teammate/server/modules/submission/interfaces/http/handlers"

	"github.com/gin-gonic/gin"
)

type SubmissionRoutes struct {
	submission *handlers.SubmissionHandlers
	results    *handlers.ResultsHandlers
}

func NewSubmissionRoutes(submission *handlers.SubmissionHandlers, results *handlers.ResultsHandlers) *SubmissionRoutes {
	return &SubmissionRoutes{submission: submission, results: results}
}

// SetupRoutes wires the submission ingest surface, the terminal webhook
// observability routes, and the Results Store's read/delete surface.
func (r *SubmissionRoutes) SetupRoutes(router *gin.RouterGroup) {
	router.POST("/submit", r.submission.Submit)

	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/student-submission", r.submission.StudentSubmission)
		webhooks.POST("/analysis-complete", r.submission.AnalysisComplete)
		webhooks.POST("/submission-analysis-complete", r.submission.SubmissionAnalysisComplete)
	}

	results := router.Group("/results")
	{
		results.GET("/submissions", r.results.ListSubmissions)
		results.GET("/submission/:key", r.results.GetTransformed)
		results.GET("/submission/:key/raw", r.results.GetRaw)
		results.DELETE("/submission/:key", r.results.DeleteSubmission)
	}
}
