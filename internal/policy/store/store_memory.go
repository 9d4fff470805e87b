package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"casekeeper/internal/policy/models"
	"casekeeper/pkg/platform/sentinel"
)

type InMemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]*models.Policy
}

func NewInMemoryPolicyStore() *InMemoryPolicyStore {
	return &InMemoryPolicyStore{policies: make(map[string]*models.Policy)}
}

func (s *InMemoryPolicyStore) Create(_ context.Context, p *models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.policies {
		if existing.PolicyID == p.PolicyID {
			return sentinel.ErrConflict
		}
	}
	cp := *p
	s.policies[p.ID] = &cp
	return nil
}

func (s *InMemoryPolicyStore) Activate(_ context.Context, id, ledgerPolicyID string, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.State = models.StateActive
	p.LedgerPolicyID = ledgerPolicyID
	return nil
}

func (s *InMemoryPolicyStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.policies, id)
	return nil
}

func (s *InMemoryPolicyStore) FindByID(_ context.Context, id string) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// List returns active policies by name, or all policies newest first.
func (s *InMemoryPolicyStore) List(_ context.Context, activeOnly bool) ([]*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		if activeOnly && p.State != models.StateActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	if activeOnly {
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return out, nil
}
