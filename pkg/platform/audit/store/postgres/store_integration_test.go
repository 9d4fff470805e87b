//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	audit "casekeeper/pkg/platform/audit"
	"casekeeper/pkg/testutil/containers"
)

type OutboxStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
	ctx   context.Context
}

func TestOutboxStoreSuite(t *testing.T) {
	suite.Run(t, new(OutboxStoreSuite))
}

func (s *OutboxStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.pg.Exec(s.T(), Schema)
	s.store = New(s.pg.DB)
	s.ctx = context.Background()
}

func (s *OutboxStoreSuite) SetupTest() {
	s.pg.Exec(s.T(), "TRUNCATE audit_outbox")
}

func (s *OutboxStoreSuite) TestAppendFetchAndMark() {
	base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Append(s.ctx, audit.Event{
		Timestamp: base,
		ActorID:   "inv-1",
		Subject:   "case-1",
		Action:    string(audit.EventDocumentsAttached),
		Tenant:    "Org1MSP",
		RequestID: "req-1",
	}))
	s.Require().NoError(s.store.Append(s.ctx, audit.Event{
		Timestamp: base.Add(time.Second),
		ActorID:   "judge-1",
		Subject:   "rec-9",
		Action:    string(audit.EventDocumentFetchDenied),
		Reason:    "access denied by policy",
	}))

	entries, err := s.store.FetchUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Equal("case-1", entries[0].Subject)
	s.Equal(string(audit.EventDocumentsAttached), entries[0].EventType)

	var payload Payload
	s.Require().NoError(json.Unmarshal(entries[1].Payload, &payload))
	s.Equal(string(audit.CategorySecurity), payload.Category)
	s.Equal("access denied by policy", payload.Reason)

	s.Require().NoError(s.store.MarkPublished(s.ctx, []uuid.UUID{entries[0].ID}, base.Add(time.Minute)))

	remaining, err := s.store.FetchUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal("rec-9", remaining[0].Subject)
}

func (s *OutboxStoreSuite) TestFetchRespectsLimit() {
	for range 3 {
		s.Require().NoError(s.store.Append(s.ctx, audit.Event{Subject: "p", Action: string(audit.EventPolicyCreated)}))
	}
	entries, err := s.store.FetchUnpublished(s.ctx, 2)
	s.Require().NoError(err)
	s.Len(entries, 2)
	s.NoError(s.store.MarkPublished(s.ctx, nil, time.Now()))
}
