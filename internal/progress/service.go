// Package progress maintains the per-user aggregate counters and owns
// level transitions. RecomputeLevel is the only place the level changes.
package progress

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/divitutor/backend/internal/apperr"
	"github.com/divitutor/backend/internal/logger"
	"github.com/divitutor/backend/internal/store"
	"github.com/divitutor/backend/internal/topics"
)

// Level transition thresholds. These are load-bearing: promotion needs
// average mastery >= PromoteMastery with a streak of PromoteStreak, and
// demotion needs average mastery < DemoteMastery after at least
// DemoteMinAttempted completed questions.
const (
	MinLevel = 1
	MaxLevel = 10

	PromoteMastery     = 80.0
	PromoteStreak      = 3
	DemoteMastery      = 40.0
	DemoteMinAttempted = 5
)

// Service is the progress store.
type Service struct {
	repo    store.ProgressRepo
	mastery store.MasteryRepo
	catalog *topics.Catalog
	log     *logger.Logger
	now     func() time.Time
}

// NewService creates a progress service.
func NewService(repo store.ProgressRepo, mastery store.MasteryRepo, catalog *topics.Catalog, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		mastery: mastery,
		catalog: catalog,
		log:     log.With("service", "progress"),
		now:     time.Now,
	}
}

// GetOrCreate returns the user's progress row, creating one at level 1
// with zeroed counters on first access.
func (s *Service) GetOrCreate(ctx context.Context, userID string) (*store.Progress, error) {
	p, err := s.repo.GetByUser(ctx, userID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "progress.get", Err: err}
	}
	if p != nil {
		return p, nil
	}

	p = &store.Progress{
		ID:     uuid.New(),
		UserID: userID,
		Level:  MinLevel,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "progress.create", Err: err}
	}
	s.log.Info("progress created", "user_id", userID)
	return p, nil
}

// RecordOutcome registers one completed question. The streak resets to
// zero on an incorrect outcome and the best streak never decreases.
func (s *Service) RecordOutcome(ctx context.Context, userID string, isCorrect bool) (*store.Progress, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	p.TotalAttempted++
	if isCorrect {
		p.TotalCorrect++
		p.CurrentStreak++
	} else {
		p.CurrentStreak = 0
	}
	if p.CurrentStreak > p.BestStreak {
		p.BestStreak = p.CurrentStreak
	}
	t := s.now().UTC()
	p.LastPracticeAt = &t

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "progress.save", Err: err}
	}
	return p, nil
}

// RecomputeLevel re-evaluates the user's level from mastery at the
// current level. Topics with no attempts are excluded from the average,
// not treated as zero. When no topic maps to the current level or no
// mastery rows exist, the level is unchanged.
func (s *Service) RecomputeLevel(ctx context.Context, userID string) (int, error) {
	p, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, err
	}

	levelTopics := s.catalog.ForLevel(p.Level)
	if len(levelTopics) == 0 {
		return p.Level, nil
	}
	inLevel := make(map[string]bool, len(levelTopics))
	for _, t := range levelTopics {
		inLevel[t.ID] = true
	}

	rows, err := s.mastery.ListByUser(ctx, userID)
	if err != nil {
		return 0, &apperr.StoreUnavailable{Op: "mastery.list", Err: err}
	}

	var sum float64
	var count int
	for _, m := range rows {
		if !inLevel[m.TopicID] || m.QuestionsAttempted == 0 {
			continue
		}
		sum += m.MasteryPercentage
		count++
	}
	if count == 0 {
		return p.Level, nil
	}
	avg := sum / float64(count)

	newLevel := p.Level
	switch {
	case avg >= PromoteMastery && p.CurrentStreak >= PromoteStreak:
		newLevel = min(p.Level+1, MaxLevel)
	case avg < DemoteMastery && p.TotalAttempted >= DemoteMinAttempted:
		newLevel = max(p.Level-1, MinLevel)
	}

	if newLevel != p.Level {
		s.log.Info("level transition", "user_id", userID, "from", p.Level, "to", newLevel, "avg_mastery", avg)
		p.Level = newLevel
		if err := s.repo.Save(ctx, p); err != nil {
			return 0, &apperr.StoreUnavailable{Op: "progress.save", Err: err}
		}
	}
	return p.Level, nil
}
