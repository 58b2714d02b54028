package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// User mirrors the identity provider's user record. The ID is the
// provider's opaque string id, not a UUID.
type User struct {
	ID                 string         `gorm:"primaryKey" json:"id"`
	Email              *string        `json:"email"`
	FirstName          *string        `json:"first_name"`
	LastName           *string        `json:"last_name"`
	ImageURL           *string        `json:"image_url"`
	SubscriptionTier   string         `gorm:"default:free" json:"subscription_tier"`
	SubscriptionStatus string         `gorm:"default:active" json:"subscription_status"`
	Metadata           datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Session is one tutoring conversation. A user has at most one active
// session; creating a new one deactivates the rest.
type Session struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single chat turn within a session.
type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID uuid.UUID `gorm:"type:uuid;index;not null" json:"session_id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Role      string    `gorm:"not null" json:"role"` // "user", "assistant", "system"
	Content   string    `gorm:"not null" json:"content"`
	VideoURL  *string   `json:"video_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Progress is the per-user aggregate. One row per user, created lazily,
// never deleted. TotalCorrect <= TotalAttempted always holds because both
// advance together through RecordOutcome.
type Progress struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string     `gorm:"uniqueIndex;not null" json:"user_id"`
	Level          int        `gorm:"default:1" json:"level"`
	TotalAttempted int        `json:"total_questions_attempted"`
	TotalCorrect   int        `json:"total_questions_correct"`
	CurrentStreak  int        `json:"current_streak"`
	BestStreak     int        `json:"best_streak"`
	LastPracticeAt *time.Time `json:"last_practice_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TopicMastery is the per-user-per-topic rolling accuracy row.
type TopicMastery struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID             string    `gorm:"uniqueIndex:idx_mastery_user_topic;not null" json:"user_id"`
	TopicID            string    `gorm:"uniqueIndex:idx_mastery_user_topic;not null" json:"topic_id"`
	QuestionsAttempted int       `json:"questions_attempted"`
	QuestionsCorrect   int       `json:"questions_correct"`
	MasteryPercentage  float64   `json:"mastery_percentage"`
	NeedsReview        bool      `json:"needs_review"`
	LastAttemptedAt    time.Time `json:"last_attempted_at"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Question is one division problem in the shared pool. Immutable once
// created except for TimesServed. The signature is indexed but not
// unique: duplicates are legal after dedup retry exhaustion. The answer
// fields never serialize; the API exposes questions through a payload
// without them.
type Question struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Text          string    `gorm:"not null" json:"question"`
	Dividend      int       `json:"-"`
	Divisor       int       `json:"-"`
	Quotient      int       `json:"-"`
	Remainder     int       `json:"-"`
	CorrectAnswer string    `gorm:"not null" json:"-"`
	TopicID       string    `gorm:"index;not null" json:"topic_id"`
	Difficulty    int       `gorm:"index" json:"difficulty"`
	Signature     string    `gorm:"index;not null" json:"-"`
	TimesServed   int       `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
}

// QuestionAttempt tracks the latest verdict for one (user, question)
// pair. Re-submission updates the row in place rather than appending.
type QuestionAttempt struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID         string     `gorm:"uniqueIndex:idx_attempt_user_question;not null" json:"user_id"`
	QuestionID     uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_attempt_user_question;not null" json:"question_id"`
	AttemptsMade   int        `json:"attempts_made"`
	IsCorrect      bool       `json:"is_correct"`
	UserAnswer     string     `json:"user_answer"`
	VideoRequested bool       `json:"video_requested"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// Video generation statuses. A failed render is terminal.
const (
	VideoStatusPending    = "pending"
	VideoStatusProcessing = "processing"
	VideoStatusCompleted  = "completed"
	VideoStatusFailed     = "failed"
)

// Video is one render job and its terminal outcome.
type Video struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QuestionID uuid.UUID `gorm:"type:uuid;index;not null" json:"question_id"`
	SessionID  uuid.UUID `gorm:"type:uuid;index;not null" json:"session_id"`
	UserID     string    `gorm:"index" json:"user_id"`
	Status     string    `gorm:"not null" json:"status"`
	VideoURL   *string   `json:"video_url"`
	Error      *string   `json:"error"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
