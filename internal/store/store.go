// Package store provides persistence for all domain entities. Repositories
// are interfaces with GORM implementations; services depend only on the
// interfaces. Production runs against Postgres (Supabase); local runs and
// tests use SQLite.
package store

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/divitutor/backend/internal/logger"
)

// Store holds the database handle and hands out repositories.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to the database at dsn and runs auto-migration.
// A dsn starting with "postgres://" or "postgresql://" selects the
// Postgres driver; anything else is treated as a SQLite path.
func Open(dsn string, log *logger.Logger) (*Store, error) {
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Migrate runs schema auto-migration for all entities.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Session{},
		&Message{},
		&Progress{},
		&TopicMastery{},
		&Question{},
		&QuestionAttempt{},
		&Video{},
	)
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Users() UserRepo {
	return &userRepo{db: s.db, log: s.log.With("repo", "UserRepo")}
}

func (s *Store) Sessions() SessionRepo {
	return &sessionRepo{db: s.db, log: s.log.With("repo", "SessionRepo")}
}

func (s *Store) Messages() MessageRepo {
	return &messageRepo{db: s.db, log: s.log.With("repo", "MessageRepo")}
}

func (s *Store) Progress() ProgressRepo {
	return &progressRepo{db: s.db, log: s.log.With("repo", "ProgressRepo")}
}

func (s *Store) Mastery() MasteryRepo {
	return &masteryRepo{db: s.db, log: s.log.With("repo", "MasteryRepo")}
}

func (s *Store) Questions() QuestionRepo {
	return &questionRepo{db: s.db, log: s.log.With("repo", "QuestionRepo")}
}

func (s *Store) Attempts() AttemptRepo {
	return &attemptRepo{db: s.db, log: s.log.With("repo", "AttemptRepo")}
}

func (s *Store) Videos() VideoRepo {
	return &videoRepo{db: s.db, log: s.log.With("repo", "VideoRepo")}
}
