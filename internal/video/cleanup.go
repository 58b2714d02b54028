package video

import (
	"context"
	"fmt"
	"time"

	"github.com/divitutor/backend/internal/apperr"
)

// MaxVideoAge is how long rendered videos stay in storage before the
// cleanup pass removes them.
const MaxVideoAge = 24 * time.Hour

// CleanupResult reports one cleanup pass.
type CleanupResult struct {
	Deleted int      `json:"deleted"`
	Files   []string `json:"files"`
}

// CleanupOld removes stored videos older than MaxVideoAge. Runs daily
// from the scheduler and on demand via the cleanup endpoint.
func (s *Service) CleanupOld(ctx context.Context) (*CleanupResult, error) {
	if s.storage == nil {
		return nil, &apperr.UpstreamGeneration{Stage: "cleanup", Err: fmt.Errorf("storage not configured")}
	}

	objects, err := s.storage.List(ctx)
	if err != nil {
		return nil, &apperr.UpstreamGeneration{Stage: "cleanup", Err: err}
	}

	cutoff := s.now().UTC().Add(-MaxVideoAge)
	var stale []string
	for _, obj := range objects {
		if obj.CreatedAt.Before(cutoff) {
			stale = append(stale, obj.Name)
		}
	}
	if len(stale) > 0 {
		if err := s.storage.Remove(ctx, stale); err != nil {
			return nil, &apperr.UpstreamGeneration{Stage: "cleanup", Err: err}
		}
	}

	s.log.Info("video cleanup pass", "deleted", len(stale))
	return &CleanupResult{Deleted: len(stale), Files: stale}, nil
}
