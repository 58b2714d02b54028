// Package llm abstracts the text-completion collaborator. Consumers send
// a Request and receive either raw text or schema-validated JSON; vendor
// SDKs are confined to the per-provider adapters.
package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// Provider is the core abstraction for LLM interaction.
type Provider interface {
	// Generate sends a prompt to the LLM. When the request carries a
	// Schema, the response Content is JSON validated against it;
	// otherwise Content is the raw text of the completion.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured for.
	ModelID() string
}

// Request describes one completion call.
type Request struct {
	// System sets the model's role and constraints.
	System string

	// Messages is the conversation. Single-turn calls carry one user
	// message; the chat tutor passes full history.
	Messages []Message

	// Schema, when set, requests structured JSON output conforming to it.
	Schema *Schema

	// MaxTokens bounds the response length.
	MaxTokens int

	// Temperature controls randomness, 0.0-1.0. Zero means deterministic.
	Temperature float64
}

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies the schema (tool name for Anthropic, schema name
	// for OpenAI). Kebab-case, e.g. "division-question".
	Name string

	// Description guides the model toward the intended output.
	Description string

	// Definition is the JSON Schema definition as a map.
	Definition map[string]any
}

// Response holds the model's output.
type Response struct {
	// Content is the completion: validated JSON when a Schema was
	// requested, otherwise the raw text.
	Content json.RawMessage

	// Usage reports token consumption for this call.
	Usage Usage

	// Model is the model that actually served the request.
	Model string

	// StopReason is normalized to "end", "max_tokens", or "error".
	StopReason string
}

// Text returns the response content as plain text, stripping any
// surrounding code fences the model may have added.
func (r *Response) Text() string {
	s := strings.TrimSpace(string(r.Content))
	var quoted string
	if err := json.Unmarshal([]byte(s), &quoted); err == nil {
		s = quoted
	}
	return StripFences(s)
}

// StripFences removes a leading/trailing markdown code fence from s.
// Models occasionally wrap output in ```json ... ``` despite instructions.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
