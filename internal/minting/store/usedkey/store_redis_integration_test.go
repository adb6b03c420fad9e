//go:build integration

package usedkey_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"

	"aurum/internal/minting/store/usedkey"
	"aurum/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *usedkey.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = usedkey.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestAddIsOnceOnly() {
	ctx := context.Background()

	inserted, err := s.store.Add(ctx, "binding-1", 3)
	s.Require().NoError(err)
	s.True(inserted)

	inserted, err = s.store.Add(ctx, "binding-1", 4)
	s.Require().NoError(err)
	s.False(inserted, "a consumed key must not insert twice")

	used, err := s.store.Contains(ctx, "binding-1")
	s.Require().NoError(err)
	s.True(used)

	used, err = s.store.Contains(ctx, "binding-2")
	s.Require().NoError(err)
	s.False(used)
}

func (s *RedisStoreSuite) TestArchiveBefore() {
	ctx := context.Background()

	// Enough keys to force HSCAN across multiple pages.
	for i := range 1500 {
		bucket := int64(i % 10)
		_, err := s.store.Add(ctx, fmt.Sprintf("key-%d", i), bucket)
		s.Require().NoError(err)
	}
	_, err := s.store.Add(ctx, "first-time", usedkey.FirstTimeBucket)
	s.Require().NoError(err)

	dropped, err := s.store.ArchiveBefore(ctx, 5)
	s.Require().NoError(err)
	s.Equal(750, dropped)

	used, err := s.store.Contains(ctx, "first-time")
	s.Require().NoError(err)
	s.True(used, "first-time keys are never archived")

	used, err = s.store.Contains(ctx, "key-4")
	s.Require().NoError(err)
	s.False(used)

	used, err = s.store.Contains(ctx, "key-5")
	s.Require().NoError(err)
	s.True(used)
}
