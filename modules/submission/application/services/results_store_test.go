package services

import (
	"testing"

	analysisEntities "teammate/server/modules/analysis/domain/entities"
	"teammate/server/modules/submission/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okResult(questionNumber int) analysisEntities.QuestionResult {
	return analysisEntities.QuestionResult{
		QuestionNumber: questionNumber,
		Pronunciation:  map[string]interface{}{"score": 90},
	}
}

func errResult(questionNumber int) analysisEntities.QuestionResult {
	return analysisEntities.QuestionResult{
		QuestionNumber: questionNumber,
		Pronunciation:  map[string]interface{}{"error": "upstream unavailable"},
	}
}

func TestResultsStore_StoreFirstWriteWins(t *testing.T) {
	store := NewResultsStore()
	store.EnsureTotalQuestions("sub-1", 2)

	assert.True(t, store.Store("sub-1", 1, okResult(1)), "the first write should apply")
	assert.False(t, store.Store("sub-1", 1, okResult(1)), "a second successful write should be rejected")
}

func TestResultsStore_ErrorOverwrittenBySuccess(t *testing.T) {
	store := NewResultsStore()
	store.EnsureTotalQuestions("sub-1", 1)

	store.Store("sub-1", 1, errResult(1))
	assert.True(t, store.Store("sub-1", 1, okResult(1)), "a success should overwrite a prior error")

	agg, err := store.GetRaw("sub-1")
	require.NoError(t, err)
	assert.False(t, agg.Results[1].HasError(), "the stored result should no longer have an error")
}

func TestResultsStore_ErrorDoesNotOverwriteError(t *testing.T) {
	store := NewResultsStore()
	store.EnsureTotalQuestions("sub-1", 1)

	store.Store("sub-1", 1, errResult(1))
	assert.False(t, store.Store("sub-1", 1, errResult(1)),
		"a second error should be rejected, not replace the first")
}

func TestResultsStore_RejectsWritesAfterFinalized(t *testing.T) {
	store := NewResultsStore()
	store.EnsureTotalQuestions("sub-1", 1)
	store.WithAggregate("sub-1", func(agg *entities.SubmissionAggregate) {
		agg.Finalized = true
	})

	assert.False(t, store.Store("sub-1", 1, okResult(1)),
		"a write to a finalized submission should be rejected")
}

func TestResultsStore_EnsureTotalQuestionsSticky(t *testing.T) {
	store := NewResultsStore()
	store.EnsureTotalQuestions("sub-1", 5)
	store.EnsureTotalQuestions("sub-1", 9)

	agg, err := store.GetRaw("sub-1")
	require.NoError(t, err)
	assert.Equal(t, 5, agg.TotalQuestions, "TotalQuestions should stay at the first-observed value")
}

func TestResultsStore_GetTransformedOrdersAscending(t *testing.T) {
	store := NewResultsStore()
	store.EnsureTotalQuestions("sub-1", 3)
	store.Store("sub-1", 3, okResult(3))
	store.Store("sub-1", 1, okResult(1))
	store.Store("sub-1", 2, okResult(2))

	ordered, err := store.GetTransformed("sub-1")
	require.NoError(t, err)
	require.Len(t, ordered, 3)
	for i, r := range ordered {
		assert.Equal(t, i+1, r.QuestionNumber, "results should come back in ascending question order")
	}
}

func TestResultsStore_GetRawUnknownSubmission(t *testing.T) {
	store := NewResultsStore()
	_, err := store.GetRaw("missing")
	assert.Error(t, err, "an unknown submission should be a not-found error")
}

func TestResultsStore_HasAndClear(t *testing.T) {
	store := NewResultsStore()
	store.EnsureTotalQuestions("sub-1", 1)

	assert.True(t, store.Has("sub-1"))
	store.Clear("sub-1")
	assert.False(t, store.Has("sub-1"))
}
