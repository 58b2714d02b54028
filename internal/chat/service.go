// Package chat runs the conversational tutoring loop. Each turn loads
// the session history, frames the model with the learner's current level
// and weak topics, and persists both sides of the exchange.
package chat

import (
	"context"
	"fmt"
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

// historyWindow bounds how many prior turns are replayed to the model.
const historyWindow = 20

const tutorSystemPrompt = `You are a friendly, patient math tutor specializing in division for
young students. Explain ideas step by step in simple language, ask guiding
questions instead of giving answers away, and celebrate progress. Keep
replies short enough for a child to read comfortably.`

// Service is the chat tutor.
type Service struct {
	sessions store.SessionRepo
	messages store.MessageRepo
	progress *progress.Service
	mastery  *mastery.Service
	provider llm.Provider
	log      *logger.Logger
}

// NewService creates a chat tutor backed by the given provider.
func NewService(
	sessions store.SessionRepo,
	messages store.MessageRepo,
	prog *progress.Service,
	mast *mastery.Service,
	provider llm.Provider,
	log *logger.Logger,
) *Service {
	return &Service{
		sessions: sessions,
		messages: messages,
		progress: prog,
		mastery:  mast,
		provider: provider,
		log:      log.With("service", "chat"),
	}
}

// StartSession creates a fresh session for the user and deactivates any
// prior ones; a user holds at most one active session.
func (s *Service) StartSession(ctx context.Context, userID string) (*store.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, &apperr.Validation{Field: "user_id", Reason: "must not be empty"}
	}
	if err := s.sessions.DeactivateForUser(ctx, userID); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "session.deactivate", Err: err}
	}
	sess := &store.Session{
		ID:        uuid.New(),
		UserID:    userID,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "session.create", Err: err}
	}
	s.log.Info("session started", "session_id", sess.ID, "user_id", userID)
	return sess, nil
}

// SendMessage runs one tutoring turn: persist the user's message, ask
// the model with the session history and the learner's standing framed
// in, persist and return the reply.
func (s *Service) SendMessage(ctx context.Context, sessionID uuid.UUID, content string) (*store.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, &apperr.Validation{Field: "content", Reason: "must not be empty"}
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "session.get", Err: err}
	}
	if sess == nil {
		return nil, &apperr.NotFound{Kind: "session", ID: sessionID.String()}
	}

	history, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "messages.list", Err: err}
	}

	system, err := s.systemPrompt(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}

	userMsg := &store.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserID:    sess.UserID,
		Role:      "user",
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Append(ctx, userMsg); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "messages.append", Err: err}
	}

	ctx = llm.WithPurpose(ctx, "chat")
	req := llm.Request{
		System:      system,
		Messages:    buildTurns(history, content),
		MaxTokens:   1024,
		Temperature: 0.7,
	}
	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		return nil, &apperr.UpstreamGeneration{Stage: "chat", Err: err}
	}

	reply := &store.Message{
		ID:        uuid.New(),
		SessionID: sessionID,
		UserID:    sess.UserID,
		Role:      "assistant",
		Content:   resp.Text(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.messages.Append(ctx, reply); err != nil {
		return nil, &apperr.StoreUnavailable{Op: "messages.append", Err: err}
	}
	return reply, nil
}

// History returns the session's messages in creation order.
func (s *Service) History(ctx context.Context, sessionID uuid.UUID) ([]store.Message, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "session.get", Err: err}
	}
	if sess == nil {
		return nil, &apperr.NotFound{Kind: "session", ID: sessionID.String()}
	}
	msgs, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, &apperr.StoreUnavailable{Op: "messages.list", Err: err}
	}
	return msgs, nil
}

// systemPrompt frames the tutor with the learner's level and the topics
// currently flagged for review.
func (s *Service) systemPrompt(ctx context.Context, userID string) (string, error) {
	p, err := s.progress.GetOrCreate(ctx, userID)
	if err != nil {
		return "", err
	}
	weak, err := s.mastery.WeakTopics(ctx, userID, 0)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(tutorSystemPrompt)
	fmt.Fprintf(&b, "\n\nThe student is at level %d of 10.", p.Level)
	if len(weak) > 0 {
		names := make([]string, 0, len(weak))
		for _, w := range weak {
			names = append(names, w.TopicID)
		}
		fmt.Fprintf(&b, " They are struggling with: %s. Steer practice toward these when natural.",
			strings.Join(names, ", "))
	}
	return b.String(), nil
}

// buildTurns converts stored history plus the new user message into the
// model's conversation, bounded to the most recent turns.
func buildTurns(history []store.Message, content string) []llm.Message {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	turns := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		role := llm.RoleUser
		if m.Role == "assistant" {
			role = llm.RoleAssistant
		}
		turns = append(turns, llm.Message{Role: role, Content: m.Content})
	}
	return append(turns, llm.Message{Role: llm.RoleUser, Content: content})
}
