//go:build integration

package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"casekeeper/internal/policy/models"
	"casekeeper/pkg/platform/sentinel"
	"casekeeper/pkg/testutil/containers"
)

type MongoPolicyStoreSuite struct {
	suite.Suite
	store *MongoPolicyStore
	ctx   context.Context
	now   time.Time
}

func TestMongoPolicyStoreSuite(t *testing.T) {
	suite.Run(t, new(MongoPolicyStoreSuite))
}

func (s *MongoPolicyStoreSuite) SetupTest() {
	db := containers.GetManager().GetMongo(s.T()).FreshDatabase(s.T())
	s.ctx = context.Background()
	s.store = NewMongoPolicyStore(db)
	s.Require().NoError(s.store.EnsureIndexes(s.ctx))
	s.now = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
}

func (s *MongoPolicyStoreSuite) pending(id, policyID, name string) *models.Policy {
	return &models.Policy{
		ID:         id,
		PolicyID:   policyID,
		Name:       name,
		Categories: json.RawMessage(`["Evidence"]`),
		Rules:      json.RawMessage(`[{"org":"Org1MSP"}]`),
		CreatedBy:  "admin-1",
		CreatedAt:  s.now,
		State:      models.StatePending,
	}
}

func (s *MongoPolicyStoreSuite) TestLifecycle() {
	s.Require().NoError(s.store.Create(s.ctx, s.pending("1", "POL-1", "Beta")))
	s.Require().NoError(s.store.Create(s.ctx, s.pending("2", "POL-2", "Alpha")))
	s.Require().NoError(s.store.Create(s.ctx, s.pending("3", "POL-3", "Gamma")))

	s.Require().NoError(s.store.Activate(s.ctx, "1", "ledger-1", s.now))
	s.Require().NoError(s.store.Activate(s.ctx, "2", "ledger-2", s.now))

	active, err := s.store.List(s.ctx, true)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal("Alpha", active[0].Name)
	s.Equal("ledger-2", active[0].LedgerPolicyID)
	s.JSONEq(`["Evidence"]`, string(active[0].Categories))

	all, err := s.store.List(s.ctx, false)
	s.Require().NoError(err)
	s.Len(all, 3)

	s.Require().NoError(s.store.Delete(s.ctx, "3"))
	_, err = s.store.FindByID(s.ctx, "3")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(s.ctx, "3"), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Activate(s.ctx, "3", "x", s.now), sentinel.ErrNotFound)
}

func (s *MongoPolicyStoreSuite) TestDuplicatePolicyID() {
	s.Require().NoError(s.store.Create(s.ctx, s.pending("1", "POL-1", "One")))
	s.ErrorIs(s.store.Create(s.ctx, s.pending("2", "POL-1", "Two")), sentinel.ErrConflict)
}
