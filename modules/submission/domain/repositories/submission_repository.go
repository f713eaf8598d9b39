package repositories

import "context"

// SubmissionRepository is the database collaborator the Submission
// Aggregator finalizes against: it persists the finalized submission
// result and resolves the per-question time limit used by the
// duration-feedback rule.
type SubmissionRepository interface {
	SaveResult(ctx context.Context, submissionKey string, totalQuestions int, results []map[string]interface{}) error
	// GetTimeLimit resolves the per-question time limit in minutes by
	// joining submissions -> assignments.questions[questionNumber-1].timeLimit.
	// ok=false when no limit could be resolved (absent assignment,
	// question index out of range, or a non-positive stored value).
	GetTimeLimit(ctx context.Context, submissionKey string, questionNumber int) (minutes float64, ok bool)
}
