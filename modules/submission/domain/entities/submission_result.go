package entities

import (
	"time"

	"teammate/server/seedwork/domain"
)

// SubmissionResult is the durable row written once a submission finalizes.
// Results is the ordered list of per-question results plus their
// duration feedback, stored as JSONB.
type SubmissionResult struct {
	domain.BaseEntity
	SubmissionKey      string                   `json:"submission_key" gorm:"column:submission_key;uniqueIndex;not null"`
	TotalQuestions     int                      `json:"total_questions" gorm:"column:total_questions;not null"`
	Results            []map[string]interface{} `json:"results" gorm:"column:results;type:jsonb;serializer:json;not null"`
	FinalizationFailed bool                     `json:"finalization_failed" gorm:"column:finalization_failed;default:false"`
	FinalizedAt        *time.Time               `json:"finalized_at,omitempty" gorm:"column:finalized_at"`
}

func (SubmissionResult) TableName() string {
	return "submission_results"
}

func NewSubmissionResult(submissionKey string, totalQuestions int, results []map[string]interface{}) *SubmissionResult {
	now := time.Now()
	r := &SubmissionResult{
		SubmissionKey:  submissionKey,
		TotalQuestions: totalQuestions,
		Results:        results,
		FinalizedAt:    &now,
	}
	r.SetID(domain.GenerateID())
	return r
}
