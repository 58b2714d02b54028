// Package answers validates submitted answers, maintains the per-question
// attempt record, and drives mastery and level updates off the verdict.
package answers

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/divitutor/backend/internal/apperr"
	"github.com/divitutor/backend/internal/llm"
	"github.com/divitutor/backend/internal/logger"
	"github.com/divitutor/backend/internal/mastery"
	"github.com/divitutor/backend/internal/progress"
	"github.com/divitutor/backend/internal/store"
)

// videoOfferThreshold is the attempt count at which an incorrect answer
// triggers the video offer and the mastery penalty.
const videoOfferThreshold = 3

// Result is the verdict for one submitted answer.
type Result struct {
	IsCorrect  bool   `json:"is_correct"`
	Attempts   int    `json:"attempts"`
	OfferVideo bool   `json:"offer_video"`
	NewLevel   int    `json:"new_level"`
	Feedback   string `json:"feedback"`

	// CorrectAnswer is populated only when the answer was wrong.
	CorrectAnswer string `json:"correct_answer,omitempty"`
}

// Service validates answers against the stored canonical answer string.
type Service struct {
	progress *progress.Service
	mastery  *mastery.Service
	pool     store.QuestionRepo
	attempts store.AttemptRepo
	sessions store.SessionRepo
	provider llm.Provider
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates an answer validator. provider may be nil; feedback
// then falls back to deterministic phrasing.
func NewService(
	prog *progress.Service,
	mast *mastery.Service,
	pool store.QuestionRepo,
	attempts store.AttemptRepo,
	sessions store.SessionRepo,
	provider llm.Provider,
	log *logger.Logger,
) *Service {
	return &Service{
		progress: prog,
		mastery:  mast,
		pool:     pool,
		attempts: attempts,
		sessions: sessions,
		provider: provider,
		log:      log.With("service", "answers"),
		now:      time.Now,
	}
}

// Validate grades one submission. Comparison is exact string equality
// after trimming surrounding whitespace; "08" does not match "8". The
// attempt row keeps only the latest verdict. Mastery is credited on every
// correct answer and debited on incorrect ones only from the third
// attempt on; progress and level move only on correct answers.
func (s *Service) Validate(ctx context.Context, sessionID, questionID uuid.UUID, rawAnswer string) (*Result, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "session.get", Err: err}
	}
	if sess == nil {
		return nil, &apperr.NotFound{Kind: "session", ID: sessionID.String()}
	}
	userID := sess.UserID

	q, err := s.pool.Get(ctx, questionID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "question.get", Err: err}
	}
	if q == nil {
		return nil, &apperr.NotFound{Kind: "question", ID: questionID.String()}
	}

	answer := strings.TrimSpace(rawAnswer)
	if answer == "" {
		return nil, &apperr.Validation{Field: "answer", Reason: "must not be empty"}
	}
	isCorrect := answer == q.CorrectAnswer

	prev, err := s.attempts.GetByUserQuestion(ctx, userID, questionID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "attempt.get", Err: err}
	}

	row := &store.QuestionAttempt{
		ID:           uuid.New(),
		UserID:       userID,
		QuestionID:   questionID,
		AttemptsMade: 1,
		IsCorrect:    isCorrect,
		UserAnswer:   answer,
		StartedAt:    s.now().UTC(),
	}
	if prev != nil {
		row.ID = prev.ID
		row.AttemptsMade = prev.AttemptsMade + 1
		row.VideoRequested = prev.VideoRequested
		row.StartedAt = prev.StartedAt
	}
	if isCorrect {
		done := s.now().UTC()
		row.CompletedAt = &done
	}
	if err := s.attempts.Upsert(ctx, row); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "attempt.upsert", Err: err}
	}

	if err := s.pool.IncrementTimesServed(ctx, questionID); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "question.serve", Err: err}
	}

	if isCorrect || row.AttemptsMade >= videoOfferThreshold {
		if _, err := s.mastery.RecordAttempt(ctx, userID, q.TopicID, isCorrect); err != nil {
			return nil, err
		}
	}

	var level int
	if isCorrect {
		if _, err := s.progress.RecordOutcome(ctx, userID, true); err != nil {
			return nil, err
		}
		level, err = s.progress.RecomputeLevel(ctx, userID)
		if err != nil {
			return nil, err
		}
	} else {
		p, err := s.progress.GetOrCreate(ctx, userID)
		if err != nil {
			return nil, err
		}
		level = p.Level
	}

	res := &Result{
		IsCorrect:  isCorrect,
		Attempts:   row.AttemptsMade,
		OfferVideo: row.AttemptsMade >= videoOfferThreshold && !isCorrect,
		NewLevel:   level,
		Feedback:   s.feedback(ctx, q, answer, isCorrect, row.AttemptsMade),
	}
	if !isCorrect {
		res.CorrectAnswer = q.CorrectAnswer
	}

	s.log.Info("answer validated",
		"user_id", userID, "question_id", questionID,
		"correct", isCorrect, "attempts", row.AttemptsMade, "level", level)
	return res, nil
}
