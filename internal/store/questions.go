package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/divitutor/backend/internal/logger"
)

// QuestionRepo manages the shared question pool.
type QuestionRepo interface {
	// Create inserts a question row.
	Create(ctx context.Context, q *Question) error

	// Get returns the question with the given id, or nil if absent.
	Get(ctx context.Context, id uuid.UUID) (*Question, error)

	// Unattempted returns pool questions at the given difficulty that the
	// user has no attempt row for, optionally restricted to topicIDs.
	Unattempted(ctx context.Context, userID string, difficulty int, topicIDs []string) ([]Question, error)

	// IncrementTimesServed bumps the global serve counter for a question.
	IncrementTimesServed(ctx context.Context, id uuid.UUID) error
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func (r *questionRepo) Create(ctx context.Context, q *Question) error {
	return r.db.WithContext(ctx).Create(q).Error
}

func (r *questionRepo) Get(ctx context.Context, id uuid.UUID) (*Question, error) {
	var row Question
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *questionRepo) Unattempted(ctx context.Context, userID string, difficulty int, topicIDs []string) ([]Question, error) {
	q := r.db.WithContext(ctx).
		Where("difficulty = ?", difficulty).
		Where("id NOT IN (?)",
			r.db.Model(&QuestionAttempt{}).Select("question_id").Where("user_id = ?", userID))
	if len(topicIDs) > 0 {
		q = q.Where("topic_id IN ?", topicIDs)
	}
	var rows []Question
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *questionRepo) IncrementTimesServed(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&Question{}).
		Where("id = ?", id).
		Update("times_served", gorm.Expr("times_served + 1")).Error
}
