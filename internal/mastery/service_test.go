package mastery

import (
	"context"
	"testing"
	"time"

	"github.com/divitutor/backend/internal/logger"
	"github.com/divitutor/backend/internal/store"
	"github.com/divitutor/backend/internal/topics"
)

// fakeMasteryRepo implements store.MasteryRepo in memory.
type fakeMasteryRepo struct {
	rows []store.TopicMastery
}

func (f *fakeMasteryRepo) GetByUserTopic(_ context.Context, userID, topicID string) (*store.TopicMastery, error) {
	for i := range f.rows {
		if f.rows[i].UserID == userID && f.rows[i].TopicID == topicID {
			cp := f.rows[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeMasteryRepo) ListByUser(_ context.Context, userID string) ([]store.TopicMastery, error) {
	var out []store.TopicMastery
	for _, r := range f.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMasteryRepo) Upsert(_ context.Context, row *store.TopicMastery) error {
	for i := range f.rows {
		if f.rows[i].UserID == row.UserID && f.rows[i].TopicID == row.TopicID {
			f.rows[i] = *row
			return nil
		}
	}
	f.rows = append(f.rows, *row)
	return nil
}

func testCatalog(t *testing.T) *topics.Catalog {
	t.Helper()
	c, err := topics.NewCatalog([]topics.Topic{
		{ID: "t1", Name: "T1", Levels: topics.LevelRange{Min: 1, Max: 3}},
		{ID: "t2", Name: "T2", Levels: topics.LevelRange{Min: 2, Max: 6}, Prerequisites: []string{"t1"}},
		{ID: "t3", Name: "T3", Levels: topics.LevelRange{Min: 5, Max: 10}, Prerequisites: []string{"t2"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func newTestService(t *testing.T, repo *fakeMasteryRepo) *Service {
	t.Helper()
	svc := NewService(repo, testCatalog(t), logger.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestRecordAttemptFirst(t *testing.T) {
	svc := newTestService(t, &fakeMasteryRepo{})
	ctx := context.Background()

	row, err := svc.RecordAttempt(ctx, "u1", "t1", true)
	if err != nil {
		t.Fatal(err)
	}
	if row.QuestionsAttempted != 1 || row.QuestionsCorrect != 1 {
		t.Errorf("counters = %d/%d, want 1/1", row.QuestionsAttempted, row.QuestionsCorrect)
	}
	if row.MasteryPercentage != 100 {
		t.Errorf("MasteryPercentage = %v, want 100", row.MasteryPercentage)
	}
	if row.NeedsReview {
		t.Error("NeedsReview = true, want false at 100%")
	}

	row, err = svc.RecordAttempt(ctx, "u1", "t2", false)
	if err != nil {
		t.Fatal(err)
	}
	if row.MasteryPercentage != 0 || !row.NeedsReview {
		t.Errorf("first incorrect: pct=%v needsReview=%v, want 0 and true", row.MasteryPercentage, row.NeedsReview)
	}
}

func TestRecordAttemptRunningRatio(t *testing.T) {
	svc := newTestService(t, &fakeMasteryRepo{})
	ctx := context.Background()

	// 2 correct out of 3 = 66.67 after rounding.
	outcomes := []bool{true, false, true}
	var row *store.TopicMastery
	var err error
	for _, ok := range outcomes {
		row, err = svc.RecordAttempt(ctx, "u1", "t1", ok)
		if err != nil {
			t.Fatal(err)
		}
	}
	if row.MasteryPercentage != 66.67 {
		t.Errorf("MasteryPercentage = %v, want 66.67", row.MasteryPercentage)
	}
	if row.NeedsReview {
		t.Error("NeedsReview = true at 66.67, want false")
	}
}

func TestNeedsReviewFlipsAtThreshold(t *testing.T) {
	svc := newTestService(t, &fakeMasteryRepo{})
	ctx := context.Background()

	// 3 of 5 correct = exactly 60: not weak.
	outcomes := []bool{true, true, true, false, false}
	var row *store.TopicMastery
	for _, ok := range outcomes {
		row, _ = svc.RecordAttempt(ctx, "u1", "t1", ok)
	}
	if row.MasteryPercentage != 60 || row.NeedsReview {
		t.Errorf("at 60%%: pct=%v needsReview=%v, want 60 and false", row.MasteryPercentage, row.NeedsReview)
	}

	// One more miss drops below 60: flips to weak.
	row, _ = svc.RecordAttempt(ctx, "u1", "t1", false)
	if !row.NeedsReview {
		t.Errorf("pct=%v: NeedsReview = false, want true below 60", row.MasteryPercentage)
	}

	// Climb back to >= 60: flips back.
	for i := 0; i < 3; i++ {
		row, _ = svc.RecordAttempt(ctx, "u1", "t1", true)
	}
	// 6 of 9 correct = 66.67.
	if row.NeedsReview {
		t.Errorf("pct=%v: NeedsReview = true, want false at or above 60", row.MasteryPercentage)
	}
}

func TestWeakTopics(t *testing.T) {
	repo := &fakeMasteryRepo{rows: []store.TopicMastery{
		{UserID: "u1", TopicID: "t1", QuestionsAttempted: 5, QuestionsCorrect: 2, MasteryPercentage: 40, NeedsReview: true},
		{UserID: "u1", TopicID: "t2", QuestionsAttempted: 5, QuestionsCorrect: 5, MasteryPercentage: 100},
		{UserID: "u1", TopicID: "t3", QuestionsAttempted: 4, QuestionsCorrect: 1, MasteryPercentage: 25, NeedsReview: true},
	}}
	svc := newTestService(t, repo)
	ctx := context.Background()

	weak, err := svc.WeakTopics(ctx, "u1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(weak) != 2 {
		t.Fatalf("unfiltered weak topics = %d, want 2", len(weak))
	}

	// Level 2 filters out t3 (valid only at levels 5-10).
	weak, err = svc.WeakTopics(ctx, "u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(weak) != 1 || weak[0].TopicID != "t1" {
		t.Errorf("level-2 weak topics = %+v, want just t1", weak)
	}
}

func TestRecommendTopicPriority(t *testing.T) {
	ctx := context.Background()

	// (a) needsReview wins.
	repo := &fakeMasteryRepo{rows: []store.TopicMastery{
		{UserID: "u1", TopicID: "t2", QuestionsAttempted: 4, QuestionsCorrect: 1, MasteryPercentage: 25, NeedsReview: true},
	}}
	svc := newTestService(t, repo)
	got, err := svc.RecommendTopic(ctx, "u1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != "t2" {
		t.Errorf("RecommendTopic = %q, want needs-review topic t2", got)
	}

	// (b) never-attempted level topic.
	repo = &fakeMasteryRepo{rows: []store.TopicMastery{
		{UserID: "u1", TopicID: "t1", QuestionsAttempted: 5, QuestionsCorrect: 5, MasteryPercentage: 100},
	}}
	svc = newTestService(t, repo)
	got, err = svc.RecommendTopic(ctx, "u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if got != "t2" {
		t.Errorf("RecommendTopic = %q, want unattempted t2", got)
	}

	// (c) fallback to the first level-valid topic even if mastered.
	repo = &fakeMasteryRepo{rows: []store.TopicMastery{
		{UserID: "u1", TopicID: "t1", QuestionsAttempted: 5, QuestionsCorrect: 5, MasteryPercentage: 100},
	}}
	svc = newTestService(t, repo)
	got, err = svc.RecommendTopic(ctx, "u1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got != "t1" {
		t.Errorf("RecommendTopic = %q, want fallback t1", got)
	}
}

func TestRecommendTopicNoValidTopic(t *testing.T) {
	c, err := topics.NewCatalog([]topics.Topic{
		{ID: "t1", Name: "T1", Levels: topics.LevelRange{Min: 1, Max: 2}},
	})
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(&fakeMasteryRepo{}, c, logger.NewNop())

	got, err := svc.RecommendTopic(context.Background(), "u1", 9)
	if err != nil {
		t.Fatal(err)
	}
	if got != "" {
		t.Errorf("RecommendTopic = %q, want empty for level with no topics", got)
	}
}
