package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/divitutor/backend/internal/logger"
)

// ProgressRepo manages the per-user progress aggregate.
type ProgressRepo interface {
	// GetByUser returns the user's progress row, or nil if none exists.
	GetByUser(ctx context.Context, userID string) (*Progress, error)

	// Create inserts a progress row.
	Create(ctx context.Context, p *Progress) error

	// Save writes back a previously loaded progress row.
	Save(ctx context.Context, p *Progress) error
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func (r *progressRepo) GetByUser(ctx context.Context, userID string) (*Progress, error) {
	var row Progress
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *progressRepo) Create(ctx context.Context, p *Progress) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *progressRepo) Save(ctx context.Context, p *Progress) error {
	return r.db.WithContext(ctx).Save(p).Error
}
