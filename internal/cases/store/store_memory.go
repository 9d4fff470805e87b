package store

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"casekeeper/internal/authz"
	"casekeeper/internal/cases/models"
	"casekeeper/pkg/platform/sentinel"
)

// InMemoryCaseStore mirrors the Mongo store's semantics, including atomic
// per-case appends under a single lock.
type InMemoryCaseStore struct {
	mu    sync.RWMutex
	cases map[string]*models.Case
}

func NewInMemoryCaseStore() *InMemoryCaseStore {
	return &InMemoryCaseStore{cases: make(map[string]*models.Case)}
}

func (s *InMemoryCaseStore) Create(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.cases {
		if existing.CaseNumber == c.CaseNumber {
			return sentinel.ErrConflict
		}
	}
	s.cases[c.ID] = clone(c)
	return nil
}

func (s *InMemoryCaseStore) FindByID(_ context.Context, id string, scope authz.Scope) (*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	if !ok || !scope.Matches(c.AssignedTo, c.Jurisdiction) {
		return nil, sentinel.ErrNotFound
	}
	return clone(c), nil
}

func (s *InMemoryCaseStore) List(_ context.Context, scope authz.Scope) ([]*models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Case, 0)
	for _, c := range s.cases {
		if scope.Matches(c.AssignedTo, c.Jurisdiction) {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryCaseStore) AppendDocuments(_ context.Context, id string, docs []models.Document, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Documents = append(c.Documents, docs...)
	c.UpdatedAt = at
	return nil
}

func (s *InMemoryCaseStore) RemoveDocument(_ context.Context, id, docID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	idx := slices.IndexFunc(c.Documents, func(d models.Document) bool { return d.ID == docID })
	if idx < 0 {
		return sentinel.ErrNotFound
	}
	c.Documents = slices.Delete(c.Documents, idx, idx+1)
	c.UpdatedAt = at
	return nil
}

func (s *InMemoryCaseStore) UpdateFields(_ context.Context, id string, changes models.FieldChanges, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if changes.Title != nil {
		c.Title = *changes.Title
	}
	if changes.Description != nil {
		c.Description = *changes.Description
	}
	if changes.Priority != nil {
		c.Priority = *changes.Priority
	}
	if changes.Status != nil {
		c.Status = *changes.Status
	}
	c.UpdatedAt = at
	return nil
}

func (s *InMemoryCaseStore) AppendUpdate(_ context.Context, id string, update models.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.Updates = append(c.Updates, update)
	c.UpdatedAt = update.Timestamp
	return nil
}

func clone(c *models.Case) *models.Case {
	cp := *c
	cp.Documents = slices.Clone(c.Documents)
	cp.Updates = slices.Clone(c.Updates)
	if cp.Documents == nil {
		cp.Documents = []models.Document{}
	}
	if cp.Updates == nil {
		cp.Updates = []models.Update{}
	}
	return &cp
}
