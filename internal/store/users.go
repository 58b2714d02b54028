package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/divitutor/backend/internal/logger"
)

// UserRepo manages synced user records.
type UserRepo interface {
	// Get returns the user with the given id, or nil if absent.
	Get(ctx context.Context, id string) (*User, error)

	// Create inserts a user row.
	Create(ctx context.Context, u *User) error

	// Update writes back a previously loaded user row.
	Update(ctx context.Context, u *User) error

	// MarkDeleted soft-deletes a user by flipping its subscription status.
	MarkDeleted(ctx context.Context, id string) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func (r *userRepo) Get(ctx context.Context, id string) (*User, error) {
	var row User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *userRepo) Create(ctx context.Context, u *User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepo) Update(ctx context.Context, u *User) error {
	return r.db.WithContext(ctx).Save(u).Error
}

func (r *userRepo) MarkDeleted(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"subscription_status": "deleted",
			"updated_at":          time.Now().UTC(),
		}).Error
}
