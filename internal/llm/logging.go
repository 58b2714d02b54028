package llm

import (
	"context"
	"time"

	"github.com/divitutor/backend/internal/logger"
)

// LoggingProvider is a decorator that records every LLM request with
// latency, token usage, and outcome.
type LoggingProvider struct {
	inner Provider
	log   *logger.Logger
}

// WithLogging wraps a Provider with structured request logging.
func WithLogging(p Provider, log *logger.Logger) Provider {
	return &LoggingProvider{inner: p, log: log.With("component", "llm")}
}

func (l *LoggingProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	resp, err := l.inner.Generate(ctx, req)

	fields := []any{
		"model", l.inner.ModelID(),
		"purpose", PurposeFrom(ctx),
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if resp != nil {
		fields = append(fields,
			"input_tokens", resp.Usage.InputTokens,
			"output_tokens", resp.Usage.OutputTokens,
			"stop_reason", resp.StopReason,
		)
	}

	if err != nil {
		fields = append(fields, "error", err.Error())
		l.log.Warn("llm request failed", fields...)
	} else {
		l.log.Info("llm request", fields...)
	}

	return resp, err
}

func (l *LoggingProvider) ModelID() string {
	return l.inner.ModelID()
}
