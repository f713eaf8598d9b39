package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	analysisEntities "teammate/server/modules/analysis/domain/entities"
	"teammate/server/modules/submission/application/services"
	"teammate/server/seedwork/application/webhook"
	"teammate/server/seedwork/domain"
	"teammate/server/seedwork/infrastructure/events"

	"github.com/gin-gonic/gin"
)

// SubmissionHandlers implements the ingest (`/submit`,
// `/webhooks/student-submission`) and terminal (`/webhooks/analysis-complete`,
// `/webhooks/submission-analysis-complete`) webhook routes.
type SubmissionHandlers struct {
	ingest     *services.SubmissionIngestService
	aggregator *services.SubmissionAggregator
}

func NewSubmissionHandlers(ingest *services.SubmissionIngestService, aggregator *services.SubmissionAggregator) *SubmissionHandlers {
	return &SubmissionHandlers{ingest: ingest, aggregator: aggregator}
}

type submitRequest struct {
	SubmissionURL string   `json:"submission_url"`
	AudioURLs     []string `json:"audio_urls"`
}

// Submit accepts a new submission directly (not a broker event) and
// synchronously fans it out into one STUDENT_SUBMISSION per audio URL.
func (h *SubmissionHandlers) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.SubmissionURL == "" || len(req.AudioURLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "submission_url and audio_urls are required"})
		return
	}

	h.ingest.Submit(c.Request.Context(), req.SubmissionURL, req.AudioURLs)
	c.JSON(http.StatusOK, gin.H{"status": "accepted", "total_questions": len(req.AudioURLs)})
}

type studentSubmissionPayload struct {
	SubmissionURL  string `json:"submission_url"`
	QuestionNumber int    `json:"question_number"`
	TotalQuestions int    `json:"total_questions"`
	AudioURL       string `json:"audio_url"`
}

// StudentSubmission consumes STUDENT_SUBMISSION and runs audio-conversion
// and speech-to-text in parallel for one recording.
func (h *SubmissionHandlers) StudentSubmission(c *gin.Context) {
	_, env, ok := webhook.ReadEnvelope(c)
	if !ok {
		return
	}

	if err := events.RequireFields(env.Payload, "submission_url", "question_number", "audio_url"); err != nil {
		webhook.RespondDecodeError(c, err)
		return
	}

	var p studentSubmissionPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		webhook.RespondDecodeError(c, domain.NewDomainError(domain.CodeMalformedEnvelope, "invalid STUDENT_SUBMISSION payload", err))
		return
	}

	h.ingest.OnStudentSubmission(c.Request.Context(), p.SubmissionURL, p.QuestionNumber, p.TotalQuestions, p.AudioURL)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

type analysisCompletePayload struct {
	SubmissionURL  string                          `json:"submission_url"`
	QuestionNumber int                             `json:"question_number"`
	TotalQuestions int                             `json:"total_questions"`
	Result         analysisEntities.QuestionResult `json:"result"`
}

// AnalysisComplete feeds the Submission Aggregator.
func (h *SubmissionHandlers) AnalysisComplete(c *gin.Context) {
	_, env, ok := webhook.ReadEnvelope(c)
	if !ok {
		return
	}

	if err := events.RequireFields(env.Payload, "submission_url", "question_number", "result"); err != nil {
		webhook.RespondDecodeError(c, err)
		return
	}

	var p analysisCompletePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		webhook.RespondDecodeError(c, domain.NewDomainError(domain.CodeMalformedEnvelope, "invalid ANALYSIS_COMPLETE payload", err))
		return
	}

	h.aggregator.OnAnalysisComplete(c.Request.Context(), p.SubmissionURL, p.QuestionNumber, p.TotalQuestions, p.Result)
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// SubmissionAnalysisComplete is the terminal event; it may no-op
// beyond logging.
func (h *SubmissionHandlers) SubmissionAnalysisComplete(c *gin.Context) {
	_, env, ok := webhook.ReadEnvelope(c)
	if !ok {
		return
	}
	log.Printf("submission: observed SUBMISSION_ANALYSIS_COMPLETE: %s", string(env.Payload))
	c.JSON(http.StatusOK, gin.H{"status": "observed"})
}
