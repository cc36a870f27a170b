package store

import (
	"context"
	"sort"
	"sync"

	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/pkg/models"
)

// Memory keeps outcome records in process memory. Records are copied on
// write and on read, so callers can mutate their copies freely.
type Memory struct {
	mu      sync.RWMutex
	results []models.ExecutionResult
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) SaveResult(ctx context.Context, result *models.ExecutionResult) error {
	if result == nil || result.TestID == "" {
		return errdefs.InvalidInput("test_id", "a result with a test_id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, *result)
	return nil
}

func (s *Memory) GetResults(ctx context.Context, testID string) ([]models.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := []models.ExecutionResult{}
	for _, result := range s.results {
		if result.TestID == testID {
			matches = append(matches, result)
		}
	}
	sortNewestFirst(matches)
	return matches, nil
}

func (s *Memory) ListResults(ctx context.Context, limit, offset int) ([]models.ExecutionResult, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	all := make([]models.ExecutionResult, len(s.results))
	copy(all, s.results)
	s.mu.RUnlock()

	sortNewestFirst(all)
	if offset >= len(all) {
		return []models.ExecutionResult{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *Memory) Close() error {
	return nil
}

func sortNewestFirst(results []models.ExecutionResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].ExecutedAt.After(results[j].ExecutedAt)
	})
}
