// Package apperr defines the error taxonomy shared by all services.
// The API layer maps these to HTTP statuses; nothing below the API
// layer knows about HTTP.
package apperr

import (
	"errors"
	"fmt"
)

// NotFound indicates a session, question, user, or video id with no
// matching record. Surfaced to the caller as a client error, no retry.
type NotFound struct {
	Kind string // "session", "question", "user", "video"
	ID   string
}

func (e *NotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Validation indicates malformed input. It is raised before any data
// layer access.
type Validation struct {
	Field  string
	Reason string
}

func (e *Validation) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// UpstreamGeneration indicates an LLM or sandbox call that failed or
// returned unparseable output. Never retried automatically.
type UpstreamGeneration struct {
	Stage string // "explanation", "scene-code", "render", "upload", "chat", "hint", "question-gen"
	Err   error
}

func (e *UpstreamGeneration) Error() string {
	return fmt.Sprintf("generation failed at %s: %v", e.Stage, e.Err)
}

func (e *UpstreamGeneration) Unwrap() error { return e.Err }

// StoreUnavailable indicates the persistence layer was unreachable.
// Fatal for the request; there is no local fallback.
type StoreUnavailable struct {
	Op  string
	Err error
}

func (e *StoreUnavailable) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailable) Unwrap() error { return e.Err }

// IsNotFound reports whether err is (or wraps) a NotFound.
func IsNotFound(err error) bool {
	var nf *NotFound
	return errors.As(err, &nf)
}

// IsValidation reports whether err is (or wraps) a Validation.
func IsValidation(err error) bool {
	var v *Validation
	return errors.As(err, &v)
}
