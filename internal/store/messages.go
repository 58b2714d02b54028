package store

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/divitutor/backend/internal/logger"
)

// MessageRepo manages chat messages.
type MessageRepo interface {
	// Append inserts a message row.
	Append(ctx context.Context, m *Message) error

	// ListBySession returns all messages of a session in creation order.
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Message, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func (r *messageRepo) Append(ctx context.Context, m *Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *messageRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]Message, error) {
	var rows []Message
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
