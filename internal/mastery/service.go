// Package mastery tracks per-user-per-topic accuracy. Mastery is the
// all-time correct/attempted ratio, not a decayed or windowed average.
package mastery

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/divitutor/backend/internal/apperr"
	"github.com/divitutor/backend/internal/logger"
	"github.com/divitutor/backend/internal/store"
	"github.com/divitutor/backend/internal/topics"
)

// ReviewThreshold is the mastery percentage below which a topic is
// flagged as needing review.
const ReviewThreshold = 60.0

// Service is the topic mastery tracker.
type Service struct {
	repo    store.MasteryRepo
	catalog *topics.Catalog
	log     *logger.Logger
	now     func() time.Time
}

// NewService creates a mastery service.
func NewService(repo store.MasteryRepo, catalog *topics.Catalog, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		catalog: catalog,
		log:     log.With("service", "mastery"),
		now:     time.Now,
	}
}

// RecordAttempt upserts the (user, topic) mastery row with one more
// attempt and recomputes the running accuracy ratio.
func (s *Service) RecordAttempt(ctx context.Context, userID, topicID string, isCorrect bool) (*store.TopicMastery, error) {
	row, err := s.repo.GetByUserTopic(ctx, userID, topicID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "mastery.get", Err: err}
	}
	if row == nil {
		row = &store.TopicMastery{
			ID:      uuid.New(),
			UserID:  userID,
			TopicID: topicID,
		}
	}

	row.QuestionsAttempted++
	if isCorrect {
		row.QuestionsCorrect++
	}
	row.MasteryPercentage = ratio(row.QuestionsCorrect, row.QuestionsAttempted)
	row.NeedsReview = row.MasteryPercentage < ReviewThreshold
	row.LastAttemptedAt = s.now().UTC()

	if err := s.repo.Upsert(ctx, row); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "mastery.upsert", Err: err}
	}
	return row, nil
}

// Overview returns all mastery rows of the user.
func (s *Service) Overview(ctx context.Context, userID string) ([]store.TopicMastery, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "mastery.list", Err: err}
	}
	return rows, nil
}

// WeakTopics returns the user's mastery rows below the review threshold.
// When level > 0, only topics valid at that level are included.
func (s *Service) WeakTopics(ctx context.Context, userID string, level int) ([]store.TopicMastery, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "mastery.list", Err: err}
	}

	var out []store.TopicMastery
	for _, r := range rows {
		if r.MasteryPercentage >= ReviewThreshold {
			continue
		}
		if level > 0 {
			t := s.catalog.ByID(r.TopicID)
			if t == nil || !t.Levels.Contains(level) {
				continue
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// RecommendTopic picks the next topic for the user at the given level.
// Priority: a topic flagged needsReview, then a level-valid topic the
// user has never attempted, then the first level-valid topic. Returns ""
// when no topic is valid for the level.
func (s *Service) RecommendTopic(ctx context.Context, userID string, level int) (string, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return "", &apperr.StoreUnavailable{Op: "mastery.list", Err: err}
	}

	for _, r := range rows {
		if r.NeedsReview {
			return r.TopicID, nil
		}
	}

	attempted := make(map[string]bool, len(rows))
	for _, r := range rows {
		attempted[r.TopicID] = true
	}

	levelTopics := s.catalog.ForLevel(level)
	for _, t := range levelTopics {
		if !attempted[t.ID] {
			return t.ID, nil
		}
	}

	if len(levelTopics) > 0 {
		return levelTopics[0].ID, nil
	}
	return "", nil
}

// ratio returns 100*correct/attempted rounded to 2 decimal places.
func ratio(correct, attempted int) float64 {
	if attempted == 0 {
		return 0
	}
	return math.Round(100*float64(correct)/float64(attempted)*100) / 100
}
