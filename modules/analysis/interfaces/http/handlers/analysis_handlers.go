package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"teammate/server/modules/analysis/application/services"
	analysisEntities "teammate/server/modules/analysis/domain/entities"
	"teammate/server/seedwork/application/webhook"
	"teammate/server/seedwork/domain"
	"teammate/server/seedwork/infrastructure/events"

	"github.com/gin-gonic/gin"
)

// AnalysisHandlers implements the webhook routes owned by the Analysis
// Orchestrator: the fan-out trigger and the five stage-done
// observability endpoints.
type AnalysisHandlers struct {
	orchestrator *services.AnalysisOrchestrator
}

func NewAnalysisHandlers(o *services.AnalysisOrchestrator) *AnalysisHandlers {
	return &AnalysisHandlers{orchestrator: o}
}

type questionAnalysisReadyPayload struct {
	SubmissionURL   string                        `json:"submission_url"`
	QuestionNumber  int                           `json:"question_number"`
	TotalQuestions  int                           `json:"total_questions"`
	SessionID       string                        `json:"session_id"`
	WavPath         string                        `json:"wav_path"`
	AudioURL        string                        `json:"audio_url"`
	AudioDuration   float64                       `json:"audio_duration"`
	AudioError      string                        `json:"audio_error,omitempty"`
	Transcript      string                        `json:"transcript"`
	WordDetails     []analysisEntities.WordDetail `json:"word_details"`
	TranscriptError string                        `json:"transcript_error,omitempty"`
}

// QuestionAnalysisReady feeds the Analysis Orchestrator's fan-out
// trigger. It dispatches synchronously: the handler's goroutine blocks
// on the full fan-out, which is acceptable since the broker's own
// request timeout is generous and each stage has its own hard deadline.
func (h *AnalysisHandlers) QuestionAnalysisReady(c *gin.Context) {
	_, env, ok := webhook.ReadEnvelope(c)
	if !ok {
		return
	}

	if err := events.RequireFields(env.Payload, "submission_url", "question_number"); err != nil {
		webhook.RespondDecodeError(c, err)
		return
	}

	var p questionAnalysisReadyPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		webhook.RespondDecodeError(c, domain.NewDomainError(domain.CodeMalformedEnvelope, "invalid QUESTION_ANALYSIS_READY payload", err))
		return
	}

	h.orchestrator.OnAnalysisReady(c.Request.Context(), services.QuestionReadyPayload{
		SubmissionKey:   p.SubmissionURL,
		QuestionNumber:  p.QuestionNumber,
		TotalQuestions:  p.TotalQuestions,
		SessionID:       p.SessionID,
		WavPath:         p.WavPath,
		AudioURL:        p.AudioURL,
		AudioDuration:   p.AudioDuration,
		AudioError:      p.AudioError,
		TranscriptText:  p.Transcript,
		WordDetails:     p.WordDetails,
		TranscriptError: p.TranscriptError,
	})
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

// StageDone is a shared observability sink for the five *_DONE webhooks
// (pronunciation/grammar/lexical/vocabulary/fluency): the orchestrator
// already emitted these itself, so an inbound delivery here only occurs
// when an external system re-publishes them; logging is sufficient.
func (h *AnalysisHandlers) StageDone(stage string) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, env, ok := webhook.ReadEnvelope(c)
		if !ok {
			return
		}
		log.Printf("analysis: observed %s done event: %s", stage, string(env.Payload))
		c.JSON(http.StatusOK, gin.H{"status": "observed"})
	}
}
