package answers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/divitutor/backend/internal/apperr"
	"github.com/divitutor/backend/internal/llm"
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
	rows map[uuid.UUID]*store.Question
}

func (f *fakeQuestionRepo) Create(_ context.Context, q *store.Question) error {
	f.rows[q.ID] = q
	return nil
}

func (f *fakeQuestionRepo) Get(_ context.Context, id uuid.UUID) (*store.Question, error) {
	return f.rows[id], nil
}

func (f *fakeQuestionRepo) Unattempted(_ context.Context, _ string, _ int, _ []string) ([]store.Question, error) {
	return nil, nil
}

func (f *fakeQuestionRepo) IncrementTimesServed(_ context.Context, id uuid.UUID) error {
	if q := f.rows[id]; q != nil {
		q.TimesServed++
	}
	return nil
}

type fakeAttemptRepo struct {
	rows map[string]*store.QuestionAttempt
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
	return map[string]bool{}, nil
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

type validatorFixture struct {
	svc       *Service
	sessions  *fakeSessionRepo
	pool      *fakeQuestionRepo
	attempts  *fakeAttemptRepo
	progress  *fakeProgressRepo
	mastery   *fakeMasteryRepo
	sessionID uuid.UUID
}

func newValidatorFixture(t *testing.T, provider llm.Provider) *validatorFixture {
	t.Helper()

	log := logger.NewNop()
	catalog := topics.Default()

	progressRepo := &fakeProgressRepo{rows: map[string]*store.Progress{}}
	masteryRepo := &fakeMasteryRepo{rows: map[string]*store.TopicMastery{}}
	sessionRepo := &fakeSessionRepo{sessions: map[uuid.UUID]*store.Session{}}
	questionRepo := &fakeQuestionRepo{rows: map[uuid.UUID]*store.Question{}}
	attemptRepo := &fakeAttemptRepo{rows: map[string]*store.QuestionAttempt{}}

	prog := progress.NewService(progressRepo, masteryRepo, catalog, log)
	mast := mastery.NewService(masteryRepo, catalog, log)

	svc := NewService(prog, mast, questionRepo, attemptRepo, sessionRepo, provider, log)

	sid := uuid.New()
	sessionRepo.sessions[sid] = &store.Session{ID: sid, UserID: "user-1", IsActive: true}

	return &validatorFixture{
		svc:       svc,
		sessions:  sessionRepo,
		pool:      questionRepo,
		attempts:  attemptRepo,
		progress:  progressRepo,
		mastery:   masteryRepo,
		sessionID: sid,
	}
}

func (fx *validatorFixture) addQuestion(dividend, divisor, quotient int, answer, topicID string, difficulty int) *store.Question {
	q := &store.Question{
		ID:            uuid.New(),
		Text:          "What is 56 ÷ 8?",
		Dividend:      dividend,
		Divisor:       divisor,
		Quotient:      quotient,
		CorrectAnswer: answer,
		TopicID:       topicID,
		Difficulty:    difficulty,
		Signature:     "56÷8",
	}
	fx.pool.rows[q.ID] = q
	return q
}

func TestValidateExactStringComparison(t *testing.T) {
	fx := newValidatorFixture(t, nil)
	q := fx.addQuestion(56, 8, 7, "8", "basic-facts", 1)

	// Surrounding whitespace is trimmed before comparison.
	res, err := fx.svc.Validate(context.Background(), fx.sessionID, q.ID, " 8 ")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !res.IsCorrect {
		t.Errorf("\" 8 \" should match %q after trimming", q.CorrectAnswer)
	}

	// No numeric coercion: a leading zero is a different string.
	q2 := fx.addQuestion(56, 8, 7, "8", "basic-facts", 1)
	res, err = fx.svc.Validate(context.Background(), fx.sessionID, q2.ID, "08")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.IsCorrect {
		t.Errorf("\"08\" must not match %q", q2.CorrectAnswer)
	}
	if res.CorrectAnswer != "8" {
		t.Errorf("wrong answers must carry the correct answer, got %q", res.CorrectAnswer)
	}
}

func TestValidateEscalationAndVideoOffer(t *testing.T) {
	hint := llm.MockResponse{Content: json.RawMessage(`"Think about how many groups of 8 fit into 56."`)}
	walkthrough := llm.MockResponse{Content: json.RawMessage(`"56 divided by 8 is 7: 8 times 7 is 56."`)}
	provider := llm.NewMockProvider(hint, walkthrough)

	fx := newValidatorFixture(t, provider)
	q := fx.addQuestion(56, 8, 7, "7", "basic-facts", 1)

	// Attempt 1: wrong, fixed retry nudge, no video.
	res, err := fx.svc.Validate(context.Background(), fx.sessionID, q.ID, "6")
	if err != nil {
		t.Fatalf("attempt 1: %v", err)
	}
	if res.IsCorrect || res.Attempts != 1 || res.OfferVideo {
		t.Fatalf("attempt 1 = %+v, want incorrect/1/no video", res)
	}
	if res.Feedback != "Incorrect. Please try again." {
		t.Errorf("attempt 1 feedback = %q", res.Feedback)
	}
	if provider.CallCount() != 0 {
		t.Errorf("attempt 1 must not call the model")
	}

	// Attempt 2: wrong, model hint, still no video.
	res, err = fx.svc.Validate(context.Background(), fx.sessionID, q.ID, "5")
	if err != nil {
		t.Fatalf("attempt 2: %v", err)
	}
	if res.Attempts != 2 || res.OfferVideo {
		t.Fatalf("attempt 2 = %+v, want 2 attempts, no video", res)
	}
	if res.Feedback != "Think about how many groups of 8 fit into 56." {
		t.Errorf("attempt 2 feedback = %q", res.Feedback)
	}

	// Attempt 3: wrong, full walkthrough, video offered, answer leaked.
	res, err = fx.svc.Validate(context.Background(), fx.sessionID, q.ID, "10")
	if err != nil {
		t.Fatalf("attempt 3: %v", err)
	}
	if res.Attempts != 3 || !res.OfferVideo {
		t.Fatalf("attempt 3 = %+v, want 3 attempts with video offer", res)
	}
	if res.CorrectAnswer != "7" {
		t.Errorf("attempt 3 correct answer = %q, want 7", res.CorrectAnswer)
	}

	// Attempt 4: still wrong, the offer persists.
	res, err = fx.svc.Validate(context.Background(), fx.sessionID, q.ID, "9")
	if err != nil {
		t.Fatalf("attempt 4: %v", err)
	}
	if !res.OfferVideo {
		t.Errorf("attempt 4 should keep offering the video")
	}

	// Eventual correct answer clears the offer and stamps completion.
	res, err = fx.svc.Validate(context.Background(), fx.sessionID, q.ID, "7")
	if err != nil {
		t.Fatalf("attempt 5: %v", err)
	}
	if !res.IsCorrect || res.OfferVideo {
		t.Fatalf("attempt 5 = %+v, want correct with no video offer", res)
	}
	if res.CorrectAnswer != "" {
		t.Errorf("correct answers must not echo the answer")
	}
	row := fx.attempts.rows[attemptKey("user-1", q.ID)]
	if row.CompletedAt == nil {
		t.Errorf("correct answer should stamp completedAt")
	}
	if row.AttemptsMade != 5 {
		t.Errorf("attempts = %d, want 5", row.AttemptsMade)
	}
}

func TestValidateMasteryNotPenalizedBeforeThirdAttempt(t *testing.T) {
	fx := newValidatorFixture(t, nil)
	q := fx.addQuestion(56, 8, 7, "7", "basic-facts", 1)

	for i, answer := range []string{"6", "5"} {
		if _, err := fx.svc.Validate(context.Background(), fx.sessionID, q.ID, answer); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if len(fx.mastery.rows) != 0 {
		t.Fatalf("mastery touched before the third wrong attempt")
	}

	if _, err := fx.svc.Validate(context.Background(), fx.sessionID, q.ID, "4"); err != nil {
		t.Fatalf("attempt 3: %v", err)
	}
	row := fx.mastery.rows[masteryKey("user-1", "basic-facts")]
	if row == nil {
		t.Fatalf("third wrong attempt must debit mastery")
	}
	if row.QuestionsAttempted != 1 || row.QuestionsCorrect != 0 {
		t.Errorf("mastery row = %+v, want 1 attempted / 0 correct", row)
	}
}

func TestValidateProgressMovesOnlyOnCorrect(t *testing.T) {
	fx := newValidatorFixture(t, nil)
	q := fx.addQuestion(56, 8, 7, "7", "basic-facts", 1)

	if _, err := fx.svc.Validate(context.Background(), fx.sessionID, q.ID, "6"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	p := fx.progress.rows["user-1"]
	if p.TotalAttempted != 0 || p.CurrentStreak != 0 {
		t.Fatalf("progress advanced on a wrong answer: %+v", p)
	}

	if _, err := fx.svc.Validate(context.Background(), fx.sessionID, q.ID, "7"); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	p = fx.progress.rows["user-1"]
	if p.TotalAttempted != 1 || p.TotalCorrect != 1 || p.CurrentStreak != 1 {
		t.Fatalf("progress = %+v, want 1/1/1 after the correct answer", p)
	}
}

func TestValidateFiveCorrectAnswersPromote(t *testing.T) {
	fx := newValidatorFixture(t, nil)

	levelAfter := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		q := fx.addQuestion(8*(i+1), 8, i+1, "7", "basic-facts", 1)
		res, err := fx.svc.Validate(context.Background(), fx.sessionID, q.ID, "7")
		if err != nil {
			t.Fatalf("question %d: %v", i+1, err)
		}
		levelAfter = append(levelAfter, res.NewLevel)
	}

	p := fx.progress.rows["user-1"]
	if p.TotalAttempted != 5 || p.TotalCorrect != 5 {
		t.Errorf("totals = %d/%d, want 5/5", p.TotalAttempted, p.TotalCorrect)
	}
	if p.CurrentStreak != 5 || p.BestStreak != 5 {
		t.Errorf("streaks = %d/%d, want 5/5", p.CurrentStreak, p.BestStreak)
	}

	// Mastery hits 100 immediately; the promotion fires on the third
	// correct answer, the first call satisfying streak >= 3.
	if levelAfter[0] != 1 || levelAfter[1] != 1 {
		t.Errorf("level moved before streak reached 3: %v", levelAfter)
	}
	if levelAfter[2] != 2 {
		t.Errorf("level after third correct = %d, want 2", levelAfter[2])
	}

	m := fx.mastery.rows[masteryKey("user-1", "basic-facts")]
	if m.MasteryPercentage != 100 {
		t.Errorf("mastery = %v, want 100", m.MasteryPercentage)
	}
}

func TestValidateTimesServedIncrementsRegardless(t *testing.T) {
	fx := newValidatorFixture(t, nil)
	q := fx.addQuestion(56, 8, 7, "7", "basic-facts", 1)

	fx.svc.Validate(context.Background(), fx.sessionID, q.ID, "6")
	fx.svc.Validate(context.Background(), fx.sessionID, q.ID, "7")
	if q.TimesServed != 2 {
		t.Errorf("timesServed = %d, want 2", q.TimesServed)
	}
}

func TestValidateUnknownIDs(t *testing.T) {
	fx := newValidatorFixture(t, nil)
	q := fx.addQuestion(56, 8, 7, "7", "basic-facts", 1)

	if _, err := fx.svc.Validate(context.Background(), uuid.New(), q.ID, "7"); !apperr.IsNotFound(err) {
		t.Errorf("unknown session: got %v, want not-found", err)
	}
	if _, err := fx.svc.Validate(context.Background(), fx.sessionID, uuid.New(), "7"); !apperr.IsNotFound(err) {
		t.Errorf("unknown question: got %v, want not-found", err)
	}
	if _, err := fx.svc.Validate(context.Background(), fx.sessionID, q.ID, "   "); !apperr.IsValidation(err) {
		t.Errorf("blank answer: got %v, want validation error", err)
	}
}
