package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/divitutor/backend/internal/logger"
)

// SessionRepo manages tutoring sessions.
type SessionRepo interface {
	// Create inserts a session row.
	Create(ctx context.Context, s *Session) error

	// Get returns the session with the given id, or nil if absent.
	Get(ctx context.Context, id uuid.UUID) (*Session, error)

	// DeactivateForUser clears is_active on every session of the user.
	DeactivateForUser(ctx context.Context, userID string) error
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func (r *sessionRepo) Create(ctx context.Context, s *Session) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepo) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	var row Session
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *sessionRepo) DeactivateForUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Model(&Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false).Error
}
