package handlers

import (
	"encoding/json"
	"net/http"

	"teammate/server/modules/coordination/application/services"
	"teammate/server/modules/coordination/domain/entities"
	"teammate/server/seedwork/application/webhook"
	"teammate/server/seedwork/domain"
	"teammate/server/seedwork/infrastructure/events"

	"github.com/gin-gonic/gin"
)

// CoordinationHandlers implements the webhook routes that feed the
// Analysis Coordinator: audio-conversion-done and
// transcription-done. Both mirror the same decode-then-dispatch shape,
// and always answer 200 once the envelope and its required fields were
// valid, so the broker does not redeliver a message the system already
// recorded.
type CoordinationHandlers struct {
	coordinator *services.AnalysisCoordinator
}

func NewCoordinationHandlers(coordinator *services.AnalysisCoordinator) *CoordinationHandlers {
	return &CoordinationHandlers{coordinator: coordinator}
}

type audioConversionDonePayload struct {
	SubmissionURL  string  `json:"submission_url"`
	QuestionNumber int     `json:"question_number"`
	TotalQuestions int     `json:"total_questions"`
	WavPath        string  `json:"wav_path"`
	SessionID      string  `json:"session_id"`
	AudioURL       string  `json:"audio_url"`
	AudioDuration  float64 `json:"audio_duration"`
	Error          string  `json:"error,omitempty"`
}

func (h *CoordinationHandlers) AudioConversionDone(c *gin.Context) {
	_, env, ok := webhook.ReadEnvelope(c)
	if !ok {
		return
	}

	if err := events.RequireFields(env.Payload, "submission_url", "question_number", "wav_path", "session_id", "audio_duration"); err != nil {
		webhook.RespondDecodeError(c, err)
		return
	}

	var p audioConversionDonePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		webhook.RespondDecodeError(c, domain.NewDomainError(domain.CodeMalformedEnvelope, "invalid AUDIO_CONVERSION_DONE payload", err))
		return
	}

	h.coordinator.OnAudioReady(p.SubmissionURL, p.QuestionNumber, p.TotalQuestions, entities.AudioReady{
		SessionID:     p.SessionID,
		WavPath:       p.WavPath,
		AudioURL:      p.AudioURL,
		AudioDuration: p.AudioDuration,
		Error:         p.Error,
	})
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}

type transcriptionDonePayload struct {
	SubmissionURL  string                `json:"submission_url"`
	QuestionNumber int                   `json:"question_number"`
	TotalQuestions int                   `json:"total_questions"`
	Transcript     string                `json:"transcript"`
	WordDetails    []entities.WordDetail `json:"word_details"`
	Error          string                `json:"error,omitempty"`
}

func (h *CoordinationHandlers) TranscriptionDone(c *gin.Context) {
	_, env, ok := webhook.ReadEnvelope(c)
	if !ok {
		return
	}

	if err := events.RequireFields(env.Payload, "submission_url", "question_number", "transcript", "word_details"); err != nil {
		webhook.RespondDecodeError(c, err)
		return
	}

	var p transcriptionDonePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		webhook.RespondDecodeError(c, domain.NewDomainError(domain.CodeMalformedEnvelope, "invalid TRANSCRIPTION_DONE payload", err))
		return
	}

	h.coordinator.OnTranscriptReady(p.SubmissionURL, p.QuestionNumber, p.TotalQuestions, entities.TranscriptReady{
		TranscriptText: p.Transcript,
		WordDetails:    p.WordDetails,
		Error:          p.Error,
	})
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
