package services

import (
	"sync"
	"time"

	"teammate/server/modules/coordination/domain/entities"
	"teammate/server/seedwork/infrastructure/events"
)

// keyedState pairs a CoordinationState with its per-QuestionKey lock,
// held only across state mutation,
// never across the outbound publish (no critical section spans a
// suspension point).
type keyedState struct {
	mu    sync.Mutex
	state *entities.CoordinationState
}

// AnalysisCoordinator fans in the independent audio-conversion and
// transcription completions for each question and emits
// QUESTION_ANALYSIS_READY exactly once per QuestionKey lifecycle.
type AnalysisCoordinator struct {
	publisher events.Publisher

	mu     sync.Mutex
	states map[entities.QuestionKey]*keyedState
}

func NewAnalysisCoordinator(publisher events.Publisher) *AnalysisCoordinator {
	return &AnalysisCoordinator{
		publisher: publisher,
		states:    make(map[entities.QuestionKey]*keyedState),
	}
}

func (c *AnalysisCoordinator) loadOrCreate(key entities.QuestionKey) *keyedState {
	c.mu.Lock()
	defer c.mu.Unlock()
	ks, ok := c.states[key]
	if !ok {
		ks = &keyedState{state: entities.NewCoordinationState(key)}
		c.states[key] = ks
	}
	return ks
}

// OnAudioReady records the audio-conversion completion for a question
// and, if the transcript side has already arrived, emits
// QUESTION_ANALYSIS_READY.
func (c *AnalysisCoordinator) OnAudioReady(submissionKey string, questionNumber, totalQuestions int, audio entities.AudioReady) {
	key := entities.QuestionKey{SubmissionKey: submissionKey, QuestionNumber: questionNumber}
	ks := c.loadOrCreate(key)

	var toEmit *entities.QuestionAnalysisReady

	ks.mu.Lock()
	ks.state.AudioArrived = true
	ks.state.Audio = audio
	if totalQuestions > 0 {
		ks.state.TotalQuestions = totalQuestions
	}
	if ks.state.Ready() && !ks.state.Emitted {
		ks.state.Emitted = true
		evt := ks.state.ToReadyEvent()
		toEmit = &evt
	}
	ks.mu.Unlock()

	if toEmit != nil {
		c.publisher.Publish(events.TopicQuestionAnalysisReady, *toEmit)
	}
}

// OnTranscriptReady records the transcription completion for a question
// and, if the audio side has already arrived, emits
// QUESTION_ANALYSIS_READY.
func (c *AnalysisCoordinator) OnTranscriptReady(submissionKey string, questionNumber, totalQuestions int, transcript entities.TranscriptReady) {
	key := entities.QuestionKey{SubmissionKey: submissionKey, QuestionNumber: questionNumber}
	ks := c.loadOrCreate(key)

	var toEmit *entities.QuestionAnalysisReady

	ks.mu.Lock()
	ks.state.TranscriptArrived = true
	ks.state.Transcript = transcript
	if totalQuestions > 0 {
		ks.state.TotalQuestions = totalQuestions
	}
	if ks.state.Ready() && !ks.state.Emitted {
		ks.state.Emitted = true
		evt := ks.state.ToReadyEvent()
		toEmit = &evt
	}
	ks.mu.Unlock()

	if toEmit != nil {
		c.publisher.Publish(events.TopicQuestionAnalysisReady, *toEmit)
	}
}

// PurgeOlderThan removes CoordinationState entries created before the
// cutoff; a later arrival for a purged key starts fresh and is allowed
// to re-emit ("redelivery with a re-emission is accepted").
func (c *AnalysisCoordinator) PurgeOlderThan(maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)

	c.mu.Lock()
	defer c.mu.Unlock()

	purged := 0
	for key, ks := range c.states {
		ks.mu.Lock()
		old := ks.state.CreatedAt.Before(cutoff)
		ks.mu.Unlock()
		if old {
			delete(c.states, key)
			purged++
		}
	}
	return purged
}

// Get returns a snapshot copy of the coordination state for a key, for
// tests and observability.
func (c *AnalysisCoordinator) Get(key entities.QuestionKey) (entities.CoordinationState, bool) {
	c.mu.Lock()
	ks, ok := c.states[key]
	c.mu.Unlock()
	if !ok {
		return entities.CoordinationState{}, false
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return *ks.state, true
}
