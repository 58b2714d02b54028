package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/divitutor/backend/internal/logger"
)

// MasteryRepo manages per-user-per-topic mastery rows.
type MasteryRepo interface {
	// GetByUserTopic returns the mastery row for (user, topic), or nil.
	GetByUserTopic(ctx context.Context, userID, topicID string) (*TopicMastery, error)

	// ListByUser returns all mastery rows of the user.
	ListByUser(ctx context.Context, userID string) ([]TopicMastery, error)

	// Upsert writes the row, inserting or replacing on (user_id, topic_id).
	Upsert(ctx context.Context, row *TopicMastery) error
}

type masteryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func (r *masteryRepo) GetByUserTopic(ctx context.Context, userID, topicID string) (*TopicMastery, error) {
	var row TopicMastery
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND topic_id = ?", userID, topicID).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *masteryRepo) ListByUser(ctx context.Context, userID string) ([]TopicMastery, error) {
	var rows []TopicMastery
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("topic_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *masteryRepo) Upsert(ctx context.Context, row *TopicMastery) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "topic_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"questions_attempted", "questions_correct", "mastery_percentage",
				"needs_review", "last_attempted_at", "updated_at",
			}),
		}).
		Create(row).Error
}
