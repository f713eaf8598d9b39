package repositories

import (
	"context"

	"teammate/server/modules/submission/domain/entities"
	"teammate/server/seedwork/infrastructure/database"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// assignmentQuestion mirrors one element of assignments.questions (JSONB
// array) for the purposes of the time-limit lookup.
type assignmentQuestion struct {
	TimeLimit float64 `json:"timeLimit"`
}

// submissionRow is a read-only projection of the submissions table,
// joined to its parent assignment to resolve question time limits.
type submissionRow struct {
	SubmissionKey string `gorm:"column:submission_key"`
	AssignmentID  string `gorm:"column:assignment_id"`
}

type assignmentRow struct {
	ID        string               `gorm:"column:id"`
	Questions []assignmentQuestion `gorm:"column:questions;type:jsonb;serializer:json"`
}

// GormSubmissionRepository implements SubmissionRepository using GORM.
type GormSubmissionRepository struct {
	db *gorm.DB
}

func NewGormSubmissionRepository() *GormSubmissionRepository {
	return &GormSubmissionRepository{db: database.GetDB()}
}

// SaveResult upserts the finalized submission_results row, keyed by
// submission_key (Submission Aggregator finalizes at most once per
// submission, but an upsert keeps a manual re-run safe).
func (r *GormSubmissionRepository) SaveResult(ctx context.Context, submissionKey string, totalQuestions int, results []map[string]interface{}) error {
	row := entities.NewSubmissionResult(submissionKey, totalQuestions, results)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_questions", "results", "finalized_at", "updated_at"}),
	}).Create(row).Error
}

func (r *GormSubmissionRepository) GetTimeLimit(ctx context.Context, submissionKey string, questionNumber int) (float64, bool) {
	var sub submissionRow
	if err := r.db.WithContext(ctx).Table("submissions").
		Where("submission_key = ?", submissionKey).
		First(&sub).Error; err != nil {
		return 0, false
	}

	var assignment assignmentRow
	if err := r.db.WithContext(ctx).Table("assignments").
		Where("id = ?", sub.AssignmentID).
		First(&assignment).Error; err != nil {
		return 0, false
	}

	idx := questionNumber - 1
	if idx < 0 || idx >= len(assignment.Questions) {
		return 0, false
	}
	limit := assignment.Questions[idx].TimeLimit
	if limit <= 0 {
		return 0, false
	}
	return limit, true
}
