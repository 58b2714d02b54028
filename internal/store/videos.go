package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/divitutor/backend/internal/logger"
)

// VideoRepo manages video render jobs.
type VideoRepo interface {
	// Create inserts a video row.
	Create(ctx context.Context, v *Video) error

	// Get returns the video with the given id, or nil if absent.
	Get(ctx context.Context, id uuid.UUID) (*Video, error)

	// SetStatus transitions a video's status. videoURL and errText may be
	// nil when not applicable to the target state.
	SetStatus(ctx context.Context, id uuid.UUID, status string, videoURL, errText *string) error
}

type videoRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func (r *videoRepo) Create(ctx context.Context, v *Video) error {
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *videoRepo) Get(ctx context.Context, id uuid.UUID) (*Video, error) {
	var row Video
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *videoRepo) SetStatus(ctx context.Context, id uuid.UUID, status string, videoURL, errText *string) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if videoURL != nil {
		updates["video_url"] = *videoURL
	}
	if errText != nil {
		updates["error"] = *errText
	}
	return r.db.WithContext(ctx).
		Model(&Video{}).
		Where("id = ?", id).
		Updates(updates).Error
}
