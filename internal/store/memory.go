package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/firewatch-ph/firewatch/internal/report"
	"github.com/google/uuid"
)

// MemoryStore is an in-memory, thread-safe Store implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[uuid.UUID]*report.Report
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[uuid.UUID]*report.Report)}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.Version = 1

	s.reports[r.ID] = r.Clone()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, report.ErrNotFound
	}
	return r.Clone(), nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*report.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Update implements Store. The version check and the commit happen under one
// lock, so exactly one of any set of concurrent writers wins.
func (s *MemoryStore) Update(_ context.Context, r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.reports[r.ID]
	if !ok {
		return report.ErrNotFound
	}
	if cur.Version != r.Version {
		return report.ErrStaleVersion
	}

	r.Version++
	r.UpdatedAt = time.Now().UTC()
	s.reports[r.ID] = r.Clone()
	return nil
}
