//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"casekeeper/internal/authz"
	"casekeeper/internal/identity/models"
	"casekeeper/pkg/platform/sentinel"
	"casekeeper/pkg/testutil/containers"
)

type UserStoreIntegrationSuite struct {
	suite.Suite
	users *MongoUserStore
	redis *containers.RedisContainer
	cache *RedisCache
	ctx   context.Context
}

func TestUserStoreIntegrationSuite(t *testing.T) {
	suite.Run(t, new(UserStoreIntegrationSuite))
}

func (s *UserStoreIntegrationSuite) SetupTest() {
	mgr := containers.GetManager()
	db := mgr.GetMongo(s.T()).FreshDatabase(s.T())
	s.ctx = context.Background()
	s.users = NewMongoUserStore(db)
	s.Require().NoError(s.users.EnsureIndexes(s.ctx))

	_, err := db.Collection(usersCollection).InsertOne(s.ctx, &models.User{
		ID:                "judge-1",
		UserName:          "judge",
		Role:              models.RoleJudiciary,
		JurisdictionLevel: "state",
		Jurisdiction:      authz.Jurisdiction{State: "StateA"},
		IsApproved:        true,
	})
	s.Require().NoError(err)

	s.redis = mgr.GetRedis(s.T())
	s.redis.Flush(s.T())
	s.cache = NewRedisCache(s.redis.Client, s.users, time.Minute, nil, nil)
}

func (s *UserStoreIntegrationSuite) TestMongoLookups() {
	byName, err := s.users.FindByUserName(s.ctx, "judge")
	s.Require().NoError(err)
	s.Equal("judge-1", byName.ID)
	s.Equal("StateA", byName.Jurisdiction.State)

	_, err = s.users.FindByID(s.ctx, "ghost")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *UserStoreIntegrationSuite) TestCacheStoresWithTTL() {
	u, err := s.cache.FindByID(s.ctx, "judge-1")
	s.Require().NoError(err)
	s.Equal("judge", u.UserName)

	ttl, err := s.redis.Client.TTL(s.ctx, userCacheKeyPrefix+"judge-1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)

	s.Require().NoError(s.cache.Invalidate(s.ctx, "judge-1"))
	n, err := s.redis.Client.Exists(s.ctx, userCacheKeyPrefix+"judge-1").Result()
	s.Require().NoError(err)
	s.Zero(n)
}
