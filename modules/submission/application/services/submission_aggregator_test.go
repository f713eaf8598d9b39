package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	analysisEntities "teammate/server/modules/analysis/domain/entities"
	"teammate/server/seedwork/infrastructure/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubmissionRepository struct {
	mu         sync.Mutex
	failCount  int
	saveCalls  int
	saved      []map[string]interface{}
	timeLimits map[int]float64
}

func (r *fakeSubmissionRepository) SaveResult(ctx context.Context, submissionKey string, totalQuestions int, results []map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveCalls++
	if r.saveCalls <= r.failCount {
		return errors.New("transient failure")
	}
	r.saved = results
	return nil
}

func (r *fakeSubmissionRepository) GetTimeLimit(ctx context.Context, submissionKey string, questionNumber int) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	limit, ok := r.timeLimits[questionNumber]
	return limit, ok
}

func completeResult(submissionKey string, questionNumber int, audioDuration float64) analysisEntities.QuestionResult {
	return analysisEntities.QuestionResult{
		SubmissionKey:  submissionKey,
		QuestionNumber: questionNumber,
		Pronunciation:  map[string]interface{}{"score": 80},
		Grammar:        map[string]interface{}{"score": 80},
		Lexical:        map[string]interface{}{"score": 80},
		Vocabulary:     map[string]interface{}{"score": 80},
		Fluency:        map[string]interface{}{"score": 80},
		Transcript:     "hello world",
		AudioDuration:  audioDuration,
	}
}

func TestDurationFeedback_Short(t *testing.T) {
	fb := durationFeedback(20, 1, true) // ratio = 20/60*100 = 33.3
	assert.Equal(t, "Did not speak that much.", fb["message"])
}

func TestDurationFeedback_Longer(t *testing.T) {
	fb := durationFeedback(45, 1, true) // ratio = 75
	assert.Equal(t, "User spoke longer.", fb["message"])
}

func TestDurationFeedback_Exceeded(t *testing.T) {
	fb := durationFeedback(90, 1, true) // ratio = 150
	assert.Equal(t, "User exceeded the time limit.", fb["message"])
}

func TestDurationFeedback_BoundaryAt50And100(t *testing.T) {
	assert.Equal(t, "User spoke longer.", durationFeedback(30, 1, true)["message"],
		"ratio==50 falls in the longer branch")
	assert.Equal(t, "User spoke longer.", durationFeedback(60, 1, true)["message"],
		"ratio==100 still falls in the longer branch")
}

func TestDurationFeedback_NoLimit(t *testing.T) {
	fb := durationFeedback(30, 0, false)
	assert.Equal(t, "no_time_limit", fb["error"])
}

func TestSubmissionAggregator_FinalizesOnceAllQuestionsComplete(t *testing.T) {
	store := NewResultsStore()
	repo := &fakeSubmissionRepository{timeLimits: map[int]float64{1: 2, 2: 2}}
	pub := events.NewMemoryPublisher(events.NewMemoryEventBus())
	agg := NewSubmissionAggregator(store, repo, pub, 3, time.Millisecond)

	ctx := context.Background()
	agg.OnAnalysisComplete(ctx, "sub-1", 1, 2, completeResult("sub-1", 1, 30))
	require.Equal(t, 0, repo.saveCalls, "no persistence before every question has reported in")

	agg.OnAnalysisComplete(ctx, "sub-1", 2, 2, completeResult("sub-1", 2, 40))
	require.Equal(t, 1, repo.saveCalls, "exactly 1 SaveResult call once complete")

	raw, err := store.GetRaw("sub-1")
	require.NoError(t, err)
	assert.True(t, raw.Finalized, "the aggregate should be marked Finalized")
}

func TestSubmissionAggregator_RetriesTransientPersistenceFailures(t *testing.T) {
	store := NewResultsStore()
	repo := &fakeSubmissionRepository{failCount: 2, timeLimits: map[int]float64{1: 2}}
	pub := events.NewMemoryPublisher(events.NewMemoryEventBus())
	agg := NewSubmissionAggregator(store, repo, pub, 3, time.Millisecond)

	agg.OnAnalysisComplete(context.Background(), "sub-1", 1, 1, completeResult("sub-1", 1, 30))

	require.Equal(t, 3, repo.saveCalls, "SaveResult should be retried up to 3 attempts")
	raw, err := store.GetRaw("sub-1")
	require.NoError(t, err)
	assert.True(t, raw.Finalized, "finalization should eventually succeed after retries")
}

func TestSubmissionAggregator_GivesUpAfterExhaustingRetries(t *testing.T) {
	store := NewResultsStore()
	repo := &fakeSubmissionRepository{failCount: 99, timeLimits: map[int]float64{1: 2}}
	pub := events.NewMemoryPublisher(events.NewMemoryEventBus())
	agg := NewSubmissionAggregator(store, repo, pub, 2, time.Millisecond)

	agg.OnAnalysisComplete(context.Background(), "sub-1", 1, 1, completeResult("sub-1", 1, 30))

	require.Equal(t, 2, repo.saveCalls, "exactly 2 attempts (retries=2)")
	raw, err := store.GetRaw("sub-1")
	require.NoError(t, err)
	assert.False(t, raw.Finalized, "Finalized should remain false when persistence never succeeds")
}

func TestSubmissionAggregator_DoesNotFinalizeTwice(t *testing.T) {
	store := NewResultsStore()
	repo := &fakeSubmissionRepository{timeLimits: map[int]float64{1: 2}}
	pub := events.NewMemoryPublisher(events.NewMemoryEventBus())
	agg := NewSubmissionAggregator(store, repo, pub, 3, time.Millisecond)

	ctx := context.Background()
	agg.OnAnalysisComplete(ctx, "sub-1", 1, 1, completeResult("sub-1", 1, 30))
	// A redelivered completion for the same (already finalized) submission
	// must not trigger a second SaveResult.
	agg.OnAnalysisComplete(ctx, "sub-1", 1, 1, completeResult("sub-1", 1, 30))

	assert.Equal(t, 1, repo.saveCalls, "exactly 1 SaveResult call across redelivery")
}
