package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/divitutor/backend/internal/logger"
)

// AttemptRepo manages (user, question) attempt rows.
type AttemptRepo interface {
	// GetByUserQuestion returns the attempt row for the pair, or nil.
	GetByUserQuestion(ctx context.Context, userID string, questionID uuid.UUID) (*QuestionAttempt, error)

	// Upsert writes the row, inserting or replacing on (user_id, question_id).
	Upsert(ctx context.Context, row *QuestionAttempt) error

	// AttemptedSignatures returns the signatures of every question the
	// user has an attempt row for. Used by synthesis deduplication.
	AttemptedSignatures(ctx context.Context, userID string) (map[string]bool, error)

	// SetVideoRequested marks the attempt row's video flag.
	SetVideoRequested(ctx context.Context, userID string, questionID uuid.UUID) error
}

type attemptRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func (r *attemptRepo) GetByUserQuestion(ctx context.Context, userID string, questionID uuid.UUID) (*QuestionAttempt, error) {
	var row QuestionAttempt
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND question_id = ?", userID, questionID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *attemptRepo) Upsert(ctx context.Context, row *QuestionAttempt) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"attempts_made", "is_correct", "user_answer", "completed_at",
			}),
		}).
		Create(row).Error
}

func (r *attemptRepo) AttemptedSignatures(ctx context.Context, userID string) (map[string]bool, error) {
	var sigs []string
	err := r.db.WithContext(ctx).
		Model(&QuestionAttempt{}).
		Joins("JOIN questions ON questions.id = question_attempts.question_id").
		Where("question_attempts.user_id = ?", userID).
		Pluck("questions.signature", &sigs).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(sigs))
	for _, s := range sigs {
		out[s] = true
	}
	return out, nil
}

func (r *attemptRepo) SetVideoRequested(ctx context.Context, userID string, questionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&QuestionAttempt{}).
		Where("user_id = ? AND question_id = ?", userID, questionID).
		Update("video_requested", true).Error
}
