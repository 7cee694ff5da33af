package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/i474232898/wildfire-risk-assessment/internal/assessment"
	"github.com/i474232898/wildfire-risk-assessment/internal/common"
)

var (
	// ErrNotFound is returned when no assessment has been recorded yet.
	ErrNotFound = errors.New("no assessments recorded")
)

// MemoryStore is a concurrency-safe in-memory log of completed assessments.
// It doubles as a trend source: each entry contributes one data point.
type MemoryStore struct {
	mu sync.RWMutex

	entries []assessment.Assessment

	// retention configuration
	maxHistory int           // max number of assessments kept
	maxAge     time.Duration // optional max age for assessments
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// Record appends an assessment and enforces retention.
func (s *MemoryStore) Record(_ context.Context, a assessment.Assessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, a)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(s.entries) > s.maxHistory {
		over := len(s.entries) - s.maxHistory
		s.entries = append([]assessment.Assessment(nil), s.entries[over:]...)
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(s.entries); i++ {
			if !s.entries[i].AssessedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			s.entries = append([]assessment.Assessment(nil), s.entries[i:]...)
		}
	}
	return nil
}

// Latest returns the most recent assessment.
func (s *MemoryStore) Latest() (assessment.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return assessment.Assessment{}, ErrNotFound
	}
	return s.entries[len(s.entries)-1], nil
}

// Range returns all assessments between from and to (inclusive), oldest first.
func (s *MemoryStore) Range(from, to time.Time) ([]assessment.Assessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []assessment.Assessment
	for _, a := range s.entries {
		if !a.AssessedAt.Before(from) && !a.AssessedAt.After(to) {
			result = append(result, a)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}

// Trend returns one data point per retained assessment, labeled with its
// UTC timestamp. An empty store yields an empty trend, not an error.
func (s *MemoryStore) Trend(_ context.Context) ([]assessment.HistoricalDataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := make([]assessment.HistoricalDataPoint, 0, len(s.entries))
	for _, a := range s.entries {
		points = append(points, assessment.HistoricalDataPoint{
			Label:     a.AssessedAt.UTC().Format(time.RFC3339),
			RiskValue: common.Clamp(a.Result.Probability, 0, 100),
		})
	}
	return points, nil
}
