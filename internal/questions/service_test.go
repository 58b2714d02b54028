package questions

import (
	"context"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/divitutor/backend/internal/apperr"
	"github.com/divitutor/backend/internal/logger"
	"github.com/divitutor/backend/internal/mastery"
	"github.com/divitutor/backend/internal/progress"
	"github.com/divitutor/backend/internal/store"
	"github.com/divitutor/backend/internal/topics"
)

type fakeSessionRepo struct {
	sessions map[uuid.UUID]*store.Session
}

func (f *fakeSessionRepo) Create(_ context.Context, s *store.Session) error {
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeSessionRepo) Get(_ context.Context, id uuid.UUID) (*store.Session, error) {
	return f.sessions[id], nil
}

func (f *fakeSessionRepo) DeactivateForUser(_ context.Context, userID string) error {
	for _, s := range f.sessions {
		if s.UserID == userID {
			s.IsActive = false
		}
	}
	return nil
}

type fakeQuestionRepo struct {
	pool      []store.Question
	attempted map[uuid.UUID]bool
}

func (f *fakeQuestionRepo) Create(_ context.Context, q *store.Question) error {
	f.pool = append(f.pool, *q)
	return nil
}

func (f *fakeQuestionRepo) Get(_ context.Context, id uuid.UUID) (*store.Question, error) {
	for i := range f.pool {
		if f.pool[i].ID == id {
			return &f.pool[i], nil
		}
	}
	return nil, nil
}

func (f *fakeQuestionRepo) Unattempted(_ context.Context, _ string, difficulty int, topicIDs []string) ([]store.Question, error) {
	var out []store.Question
	for _, q := range f.pool {
		if q.Difficulty != difficulty || f.attempted[q.ID] {
			continue
		}
		if len(topicIDs) > 0 {
			match := false
			for _, id := range topicIDs {
				if q.TopicID == id {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeQuestionRepo) IncrementTimesServed(_ context.Context, id uuid.UUID) error {
	for i := range f.pool {
		if f.pool[i].ID == id {
			f.pool[i].TimesServed++
		}
	}
	return nil
}

type fakeAttemptRepo struct {
	rows       map[string]*store.QuestionAttempt
	signatures map[string]bool
}

func attemptKey(userID string, questionID uuid.UUID) string {
	return userID + "|" + questionID.String()
}

func (f *fakeAttemptRepo) GetByUserQuestion(_ context.Context, userID string, questionID uuid.UUID) (*store.QuestionAttempt, error) {
	return f.rows[attemptKey(userID, questionID)], nil
}

func (f *fakeAttemptRepo) Upsert(_ context.Context, row *store.QuestionAttempt) error {
	f.rows[attemptKey(row.UserID, row.QuestionID)] = row
	return nil
}

func (f *fakeAttemptRepo) AttemptedSignatures(_ context.Context, _ string) (map[string]bool, error) {
	return f.signatures, nil
}

func (f *fakeAttemptRepo) SetVideoRequested(_ context.Context, userID string, questionID uuid.UUID) error {
	if row := f.rows[attemptKey(userID, questionID)]; row != nil {
		row.VideoRequested = true
	}
	return nil
}

type fakeProgressRepo struct {
	rows map[string]*store.Progress
}

func (f *fakeProgressRepo) GetByUser(_ context.Context, userID string) (*store.Progress, error) {
	return f.rows[userID], nil
}

func (f *fakeProgressRepo) Create(_ context.Context, p *store.Progress) error {
	f.rows[p.UserID] = p
	return nil
}

func (f *fakeProgressRepo) Save(_ context.Context, p *store.Progress) error {
	f.rows[p.UserID] = p
	return nil
}

type fakeMasteryRepo struct {
	rows map[string]*store.TopicMastery
}

func masteryKey(userID, topicID string) string { return userID + "|" + topicID }

func (f *fakeMasteryRepo) GetByUserTopic(_ context.Context, userID, topicID string) (*store.TopicMastery, error) {
	return f.rows[masteryKey(userID, topicID)], nil
}

func (f *fakeMasteryRepo) ListByUser(_ context.Context, userID string) ([]store.TopicMastery, error) {
	var out []store.TopicMastery
	for _, row := range f.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (f *fakeMasteryRepo) Upsert(_ context.Context, row *store.TopicMastery) error {
	f.rows[masteryKey(row.UserID, row.TopicID)] = row
	return nil
}

type selectorFixture struct {
	svc       *Service
	sessions  *fakeSessionRepo
	pool      *fakeQuestionRepo
	attempts  *fakeAttemptRepo
	progress  *fakeProgressRepo
	mastery   *fakeMasteryRepo
	sessionID uuid.UUID
}

func newSelectorFixture(t *testing.T) *selectorFixture {
	t.Helper()

	log := logger.NewNop()
	catalog := topics.Default()

	progressRepo := &fakeProgressRepo{rows: map[string]*store.Progress{}}
	masteryRepo := &fakeMasteryRepo{rows: map[string]*store.TopicMastery{}}
	sessionRepo := &fakeSessionRepo{sessions: map[uuid.UUID]*store.Session{}}
	questionRepo := &fakeQuestionRepo{attempted: map[uuid.UUID]bool{}}
	attemptRepo := &fakeAttemptRepo{rows: map[string]*store.QuestionAttempt{}, signatures: map[string]bool{}}

	prog := progress.NewService(progressRepo, masteryRepo, catalog, log)
	mast := mastery.NewService(masteryRepo, catalog, log)

	svc := NewService(prog, mast, questionRepo, attemptRepo, sessionRepo, catalog, log)
	svc.rng = rand.New(rand.NewPCG(3, 5))

	sid := uuid.New()
	sessionRepo.sessions[sid] = &store.Session{ID: sid, UserID: "user-1", IsActive: true}

	return &selectorFixture{
		svc:       svc,
		sessions:  sessionRepo,
		pool:      questionRepo,
		attempts:  attemptRepo,
		progress:  progressRepo,
		mastery:   masteryRepo,
		sessionID: sid,
	}
}

func TestNextQuestionUnknownSession(t *testing.T) {
	fx := newSelectorFixture(t)

	_, err := fx.svc.NextQuestion(context.Background(), uuid.New(), 0)
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}

func TestNextQuestionServesFromPool(t *testing.T) {
	fx := newSelectorFixture(t)

	want := store.Question{
		ID:         uuid.New(),
		Text:       "What is 8 ÷ 2?",
		Dividend:   8, Divisor: 2, Quotient: 4,
		CorrectAnswer: "4",
		TopicID:       "basic-facts",
		Difficulty:    1,
		Signature:     "8÷2",
	}
	fx.pool.pool = append(fx.pool.pool, want)

	got, err := fx.svc.NextQuestion(context.Background(), fx.sessionID, 0)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if got.ID != want.ID {
		t.Errorf("served question %s, want pooled %s", got.ID, want.ID)
	}
}

func TestNextQuestionSkipsAttemptedPoolRows(t *testing.T) {
	fx := newSelectorFixture(t)

	seen := store.Question{ID: uuid.New(), TopicID: "basic-facts", Difficulty: 1, Signature: "8÷2"}
	fx.pool.pool = append(fx.pool.pool, seen)
	fx.pool.attempted[seen.ID] = true

	got, err := fx.svc.NextQuestion(context.Background(), fx.sessionID, 0)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if got.ID == seen.ID {
		t.Fatalf("re-served an already-attempted question")
	}
	// Pool was effectively empty, so the question must be synthesized
	// and persisted.
	if len(fx.pool.pool) != 2 {
		t.Errorf("synthesized question not inserted into pool, size %d", len(fx.pool.pool))
	}
}

func TestNextQuestionSynthesizesWhenPoolEmpty(t *testing.T) {
	fx := newSelectorFixture(t)

	got, err := fx.svc.NextQuestion(context.Background(), fx.sessionID, 0)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}

	// New users sit at level 1 with no mastery rows, so the recommended
	// topic is the first level-1 topic.
	if got.TopicID != "basic-facts" {
		t.Errorf("topic = %q, want basic-facts", got.TopicID)
	}
	if got.Difficulty != 1 {
		t.Errorf("difficulty = %d, want 1", got.Difficulty)
	}
	if got.Dividend != got.Divisor*got.Quotient+got.Remainder {
		t.Errorf("invalid arithmetic: %+v", got)
	}
	if !strings.Contains(got.Text, "÷") {
		t.Errorf("question text %q missing division phrasing", got.Text)
	}
	if len(fx.pool.pool) != 1 {
		t.Errorf("synthesized question not persisted")
	}
}

func TestNextQuestionDifficultyOverrideClamped(t *testing.T) {
	fx := newSelectorFixture(t)

	got, err := fx.svc.NextQuestion(context.Background(), fx.sessionID, 99)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if got.Difficulty != 10 {
		t.Errorf("difficulty = %d, want clamp to 10", got.Difficulty)
	}
	if got.TopicID != "large-dividends" {
		t.Errorf("topic = %q, want the level-10 topic", got.TopicID)
	}
}

func TestNextQuestionPrefersWeakTopics(t *testing.T) {
	fx := newSelectorFixture(t)

	// Put the user at level 4 with a weak remainders topic; selection
	// must target it over the recommendation path.
	fx.progress.rows["user-1"] = &store.Progress{ID: uuid.New(), UserID: "user-1", Level: 4}
	fx.mastery.rows[masteryKey("user-1", "remainders")] = &store.TopicMastery{
		UserID: "user-1", TopicID: "remainders",
		QuestionsAttempted: 4, QuestionsCorrect: 1,
		MasteryPercentage: 25, NeedsReview: true,
	}

	got, err := fx.svc.NextQuestion(context.Background(), fx.sessionID, 0)
	if err != nil {
		t.Fatalf("NextQuestion: %v", err)
	}
	if got.TopicID != "remainders" {
		t.Errorf("topic = %q, want the weak topic remainders", got.TopicID)
	}
	if got.Difficulty != 4 {
		t.Errorf("difficulty = %d, want the user's level 4", got.Difficulty)
	}
}

func TestNextQuestionDedupsAgainstHistory(t *testing.T) {
	fx := newSelectorFixture(t)

	for quot := 1; quot <= 9; quot++ {
		fx.attempts.signatures[Params{Dividend: 2 * quot, Divisor: 2, Quotient: quot}.Signature()] = true
	}

	for i := 0; i < 50; i++ {
		got, err := fx.svc.NextQuestion(context.Background(), fx.sessionID, 0)
		if err != nil {
			t.Fatalf("NextQuestion: %v", err)
		}
		if got.Divisor == 2 && fx.attempts.signatures[got.Signature] {
			t.Fatalf("served pair %q already in the user's history", got.Signature)
		}
		// Mark as attempted so the pool path does not mask synthesis.
		fx.pool.attempted[got.ID] = true
	}
}
