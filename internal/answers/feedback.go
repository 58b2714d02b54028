package answers

import (
	"context"
	"fmt"

	"github.com/divitutor/backend/internal/llm"
	"github.com/divitutor/backend/internal/store"
)

const hintSystemPrompt = `You are a patient math tutor helping a student with long division.
The student just answered a division question incorrectly. Give ONE short hint
that nudges them toward the method without revealing the answer.
Two sentences at most. Do not state the quotient or the remainder.`

const feedbackSystemPrompt = `You are a patient math tutor helping a student with long division.
The student has tried a division question several times without success.
Walk through the solution step by step in plain language, ending with the
correct answer. Keep it under six sentences and stay encouraging.`

// feedback builds the advisory text for a verdict. Escalation on wrong
// answers: first attempt gets a fixed retry nudge, second gets a hint,
// third and later get the full walkthrough. Correctness is decided by
// string comparison before this runs; the model only phrases prose.
func (s *Service) feedback(ctx context.Context, q *store.Question, answer string, isCorrect bool, attempts int) string {
	if isCorrect {
		return "Correct! Great work."
	}

	switch attempts {
	case 1:
		return "Incorrect. Please try again."
	case 2:
		return s.hint(ctx, q, answer)
	default:
		return s.walkthrough(ctx, q, answer)
	}
}

// hint asks the model for a nudge; without a provider, or on any model
// error, a deterministic hint about the method is returned instead.
func (s *Service) hint(ctx context.Context, q *store.Question, answer string) string {
	fallback := fmt.Sprintf("Not quite. Think about how many times %d fits into %d, then check what is left over.", q.Divisor, q.Dividend)
	if s.provider == nil {
		return fallback
	}

	ctx = llm.WithPurpose(ctx, "hint")
	req := llm.Request{
		System: hintSystemPrompt,
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: fmt.Sprintf("Question: %s\nThe student answered %q, which is wrong. Give a hint.",
				q.Text, answer),
		}},
		MaxTokens:   200,
		Temperature: 0.7,
	}
	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		s.log.Warn("hint generation failed, using fallback", "error", err)
		return fallback
	}
	return resp.Text()
}

// walkthrough asks the model for a full step-by-step solution; the
// deterministic fallback still names the correct answer.
func (s *Service) walkthrough(ctx context.Context, q *store.Question, answer string) string {
	fallback := fmt.Sprintf("Let's work it through: %d ÷ %d = %s. Watch for this pattern next time.", q.Dividend, q.Divisor, q.CorrectAnswer)
	if s.provider == nil {
		return fallback
	}

	ctx = llm.WithPurpose(ctx, "feedback")
	req := llm.Request{
		System: feedbackSystemPrompt,
		Messages: []llm.Message{{
			Role: llm.RoleUser,
			Content: fmt.Sprintf("Question: %s\nCorrect answer: %s\nThe student's latest answer was %q. Explain the solution step by step.",
				q.Text, q.CorrectAnswer, answer),
		}},
		MaxTokens:   400,
		Temperature: 0.7,
	}
	resp, err := s.provider.Generate(ctx, req)
	if err != nil {
		s.log.Warn("feedback generation failed, using fallback", "error", err)
		return fallback
	}
	return resp.Text()
}
