// Package questions chooses or synthesizes the next division problem for
// a learner. Selection prefers the existing pool; synthesis draws from
// level-banded operand distributions with history deduplication.
package questions

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/divitutor/backend/internal/apperr"
	"github.com/divitutor/backend/internal/logger"
	"github.com/divitutor/backend/internal/mastery"
	"github.com/divitutor/backend/internal/progress"
	"github.com/divitutor/backend/internal/store"
	"github.com/divitutor/backend/internal/topics"
)

// Service is the question selector.
type Service struct {
	progress *progress.Service
	mastery  *mastery.Service
	pool     store.QuestionRepo
	attempts store.AttemptRepo
	sessions store.SessionRepo
	catalog  *topics.Catalog
	log      *logger.Logger
	rng      *rand.Rand
}

// NewService creates a question selector.
func NewService(
	prog *progress.Service,
	mast *mastery.Service,
	pool store.QuestionRepo,
	attempts store.AttemptRepo,
	sessions store.SessionRepo,
	catalog *topics.Catalog,
	log *logger.Logger,
) *Service {
	return &Service{
		progress: prog,
		mastery:  mast,
		pool:     pool,
		attempts: attempts,
		sessions: sessions,
		catalog:  catalog,
		log:      log.With("service", "questions"),
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// NextQuestion returns the next question for the session's user. A
// difficultyOverride > 0 is clamped to [1,10] and used in place of the
// user's level. Pool questions the user has already attempted are never
// re-served; an empty pool triggers synthesis.
func (s *Service) NextQuestion(ctx context.Context, sessionID uuid.UUID, difficultyOverride int) (*store.Question, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "session.get", Err: err}
	}
	if sess == nil {
		return nil, &apperr.NotFound{Kind: "session", ID: sessionID.String()}
	}
	userID := sess.UserID

	p, err := s.progress.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	level := p.Level
	if difficultyOverride > 0 {
		level = min(max(difficultyOverride, progress.MinLevel), progress.MaxLevel)
	}

	// Candidate topics: weak topics at this level, else the recommendation.
	var topicIDs []string
	weak, err := s.mastery.WeakTopics(ctx, userID, level)
	if err != nil {
		return nil, err
	}
	for _, w := range weak {
		topicIDs = append(topicIDs, w.TopicID)
	}
	if len(topicIDs) == 0 {
		rec, err := s.mastery.RecommendTopic(ctx, userID, level)
		if err != nil {
			return nil, err
		}
		if rec != "" {
			topicIDs = append(topicIDs, rec)
		}
	}
	if len(topicIDs) == 0 {
		return nil, &apperr.Validation{Field: "difficulty", Reason: fmt.Sprintf("no topic is valid for level %d", level)}
	}

	candidates, err := s.pool.Unattempted(ctx, userID, level, topicIDs)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "questions.unattempted", Err: err}
	}
	if len(candidates) > 0 {
		q := candidates[s.rng.IntN(len(candidates))]
		return &q, nil
	}

	return s.synthesizeQuestion(ctx, userID, topicIDs[0], level)
}

// synthesizeQuestion draws a fresh problem for the topic and level,
// dedups it against the user's attempted signatures, and inserts it into
// the shared pool.
func (s *Service) synthesizeQuestion(ctx context.Context, userID, topicID string, level int) (*store.Question, error) {
	attempted, err := s.attempts.AttemptedSignatures(ctx, userID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "attempts.signatures", Err: err}
	}

	p := synthesize(s.rng, level, attempted)

	q := &store.Question{
		ID:            uuid.New(),
		Text:          fmt.Sprintf("What is %d ÷ %d?", p.Dividend, p.Divisor),
		Dividend:      p.Dividend,
		Divisor:       p.Divisor,
		Quotient:      p.Quotient,
		Remainder:     p.Remainder,
		CorrectAnswer: p.AnswerString(),
		TopicID:       topicID,
		Difficulty:    level,
		Signature:     p.Signature(),
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.pool.Create(ctx, q); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "questions.create", Err: err}
	}

	s.log.Info("question synthesized", "user_id", userID, "topic_id", topicID, "level", level, "signature", q.Signature)
	return q, nil
}
