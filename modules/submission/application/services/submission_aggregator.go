package services

import (
	"context"
	"fmt"
	"log"
	"time"

	analysisEntities "teammate/server/modules/analysis/domain/entities"
	"teammate/server/modules/submission/domain/entities"
	"teammate/server/modules/submission/domain/repositories"
	"teammate/server/seedwork/infrastructure/events"
)

// SubmissionAggregator is the per-submission fan-in of all question
// completions: it writes each QuestionResult into the Results
// Store, and once every question has landed, computes duration feedback,
// persists the final payload with bounded retry, and emits
// SUBMISSION_ANALYSIS_COMPLETE exactly once.
type SubmissionAggregator struct {
	store     *ResultsStore
	repo      repositories.SubmissionRepository
	publisher events.Publisher
	retries   int
	baseDelay time.Duration
}

func NewSubmissionAggregator(store *ResultsStore, repo repositories.SubmissionRepository, publisher events.Publisher, retries int, baseDelay time.Duration) *SubmissionAggregator {
	if retries <= 0 {
		retries = 3
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	return &SubmissionAggregator{
		store:     store,
		repo:      repo,
		publisher: publisher,
		retries:   retries,
		baseDelay: baseDelay,
	}
}

// OnAnalysisComplete runs the aggregator's three steps: store, check
// completeness, and finalize under the per-submission mutex.
func (a *SubmissionAggregator) OnAnalysisComplete(ctx context.Context, submissionKey string, questionNumber, totalQuestions int, result analysisEntities.QuestionResult) {
	a.store.EnsureTotalQuestions(submissionKey, totalQuestions)
	a.store.Store(submissionKey, questionNumber, result)

	agg, err := a.store.GetRaw(submissionKey)
	if err != nil || !agg.Complete() {
		return
	}

	a.finalize(ctx, submissionKey)
}

// finalize runs the one-shot finalization. The Finalized flag is
// claimed optimistically under the submission's mutex, so a second
// caller racing in on a duplicate delivery sees it already set and
// returns; the time-limit lookups and the database write both happen
// outside the lock (no critical section spans an outbound call). On
// terminal persistence failure the claim is released so a manual retry
// can re-run the step.
func (a *SubmissionAggregator) finalize(ctx context.Context, submissionKey string) {
	var ordered []analysisEntities.QuestionResult
	var totalQuestions int
	claimed := false

	a.store.WithAggregate(submissionKey, func(agg *entities.SubmissionAggregate) {
		if agg.Finalized || !agg.Complete() {
			return
		}
		agg.Finalized = true
		totalQuestions = agg.TotalQuestions
		ordered = agg.Ordered()
		claimed = true
	})

	if !claimed {
		return
	}

	payload := make([]map[string]interface{}, 0, len(ordered))
	for _, r := range ordered {
		payload = append(payload, a.withDurationFeedback(ctx, submissionKey, r))
	}

	if err := a.persistWithRetry(ctx, submissionKey, totalQuestions, payload); err != nil {
		log.Printf("submission %s: finalization failed after retries: %v", submissionKey, err)
		a.store.WithAggregate(submissionKey, func(agg *entities.SubmissionAggregate) {
			agg.Finalized = false
		})
		a.publisher.Publish(events.TopicSubmissionFinalizationFailed, map[string]interface{}{
			"submission_key": submissionKey,
			"error":          err.Error(),
		})
		return
	}

	a.publisher.Publish(events.TopicSubmissionAnalysisComplete, map[string]interface{}{
		"submission_url":  submissionKey,
		"total_questions": totalQuestions,
		"results":         payload,
	})
}

// withDurationFeedback applies the three-branch rule against
// the database-resolved time limit, converting the QuestionResult to the
// map shape persisted in submission_results.
func (a *SubmissionAggregator) withDurationFeedback(ctx context.Context, submissionKey string, r analysisEntities.QuestionResult) map[string]interface{} {
	limit, ok := a.timeLimitMinutes(ctx, submissionKey, r.QuestionNumber)
	feedback := durationFeedback(r.AudioDuration, limit, ok)
	return map[string]interface{}{
		"submission_key":    r.SubmissionKey,
		"question_number":   r.QuestionNumber,
		"pronunciation":     r.Pronunciation,
		"grammar":           r.Grammar,
		"lexical":           r.Lexical,
		"vocabulary":        r.Vocabulary,
		"fluency":           r.Fluency,
		"transcript":        r.Transcript,
		"audio_duration":    r.AudioDuration,
		"duration_feedback": feedback,
	}
}

func (a *SubmissionAggregator) timeLimitMinutes(ctx context.Context, submissionKey string, questionNumber int) (float64, bool) {
	return a.repo.GetTimeLimit(ctx, submissionKey, questionNumber)
}

// durationFeedback implements the three-branch duration-feedback rule:
// r = d/(60t)*100; r<50 short, 50<=r<=100 longer, r>100 exceeded. An
// absent or non-positive t is an error shape.
func durationFeedback(audioDurationSeconds, timeLimitMinutes float64, hasLimit bool) map[string]interface{} {
	if !hasLimit || timeLimitMinutes <= 0 {
		return map[string]interface{}{"error": "no_time_limit"}
	}
	ratio := audioDurationSeconds / (60 * timeLimitMinutes) * 100
	switch {
	case ratio < 50:
		return map[string]interface{}{"message": "Did not speak that much."}
	case ratio <= 100:
		return map[string]interface{}{"message": "User spoke longer."}
	default:
		return map[string]interface{}{"message": "User exceeded the time limit."}
	}
}

// persistWithRetry retries SaveResult with bounded exponential backoff
// before giving up: each wait is four times the previous one, so the
// defaults (3 attempts, 100ms base) wait 100ms and then 400ms.
func (a *SubmissionAggregator) persistWithRetry(ctx context.Context, submissionKey string, totalQuestions int, payload []map[string]interface{}) error {
	delay := a.baseDelay
	var lastErr error
	for attempt := 1; attempt <= a.retries; attempt++ {
		if err := a.repo.SaveResult(ctx, submissionKey, totalQuestions, payload); err == nil {
			return nil
		} else {
			lastErr = err
		}
		if attempt < a.retries {
			time.Sleep(delay)
			delay *= 4
		}
	}
	return fmt.Errorf("persist submission_results for %s: %w", submissionKey, lastErr)
}
