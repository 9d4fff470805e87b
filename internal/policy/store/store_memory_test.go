package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"casekeeper/internal/policy/models"
	"casekeeper/pkg/platform/sentinel"
)

type InMemoryPolicyStoreSuite struct {
	suite.Suite
	store *InMemoryPolicyStore
	ctx   context.Context
}

func TestInMemoryPolicyStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryPolicyStoreSuite))
}

func (s *InMemoryPolicyStoreSuite) SetupTest() {
	s.store = NewInMemoryPolicyStore()
	s.ctx = context.Background()
}

func newPolicy(id, policyID, name string, created time.Time) *models.Policy {
	return &models.Policy{
		ID:         id,
		PolicyID:   policyID,
		Name:       name,
		Categories: json.RawMessage(`[]`),
		Rules:      json.RawMessage(`[]`),
		CreatedAt:  created,
		State:      models.StatePending,
	}
}

func (s *InMemoryPolicyStoreSuite) TestCreateRejectsDuplicatePolicyID() {
	now := time.Now()
	s.Require().NoError(s.store.Create(s.ctx, newPolicy("1", "policy-1", "A", now)))
	err := s.store.Create(s.ctx, newPolicy("2", "policy-1", "B", now))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *InMemoryPolicyStoreSuite) TestListOnlyOffersActive() {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Create(s.ctx, newPolicy("1", "policy-1", "Zulu", base)))
	s.Require().NoError(s.store.Create(s.ctx, newPolicy("2", "policy-2", "Alpha", base.Add(time.Hour))))
	s.Require().NoError(s.store.Create(s.ctx, newPolicy("3", "policy-3", "Mid-creation", base.Add(2*time.Hour))))
	s.Require().NoError(s.store.Activate(s.ctx, "1", "policy-1", base))
	s.Require().NoError(s.store.Activate(s.ctx, "2", "policy-2", base))

	active, err := s.store.List(s.ctx, true)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal("Alpha", active[0].Name)
	s.Equal("Zulu", active[1].Name)

	all, err := s.store.List(s.ctx, false)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("Mid-creation", all[0].Name, "all policies are newest first")
}

func (s *InMemoryPolicyStoreSuite) TestDelete() {
	s.Require().NoError(s.store.Create(s.ctx, newPolicy("1", "policy-1", "A", time.Now())))
	s.Require().NoError(s.store.Delete(s.ctx, "1"))
	_, err := s.store.FindByID(s.ctx, "1")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, "1"), sentinel.ErrNotFound)
}
