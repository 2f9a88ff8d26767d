//go:build integration

package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"signflow/pkg/testutil/containers"
)

type RedisDeduperSuite struct {
	suite.Suite
	ctx   context.Context
	redis *containers.RedisContainer
	d     *RedisDeduper
}

func TestRedisDeduperSuite(t *testing.T) {
	suite.Run(t, new(RedisDeduperSuite))
}

func (s *RedisDeduperSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.GetManager().Redis(s.T())
}

func (s *RedisDeduperSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.d = NewRedisDeduper(s.redis.Client)
}

func (s *RedisDeduperSuite) TestClaimIsExclusive() {
	first, err := s.d.Claim(s.ctx, "esign:mock:evt-1", time.Minute)
	s.Require().NoError(err)
	s.True(first)

	again, err := s.d.Claim(s.ctx, "esign:mock:evt-1", time.Minute)
	s.Require().NoError(err)
	s.False(again)

	ttl, err := s.redis.Client.TTL(s.ctx, keyPrefix+"esign:mock:evt-1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, 50*time.Second)
}

func (s *RedisDeduperSuite) TestConcurrentClaimsHaveOneWinner() {
	results := make(chan bool, 16)
	for range 16 {
		go func() {
			ok, err := s.d.Claim(s.ctx, "esign:mock:evt-race", time.Minute)
			s.NoError(err)
			results <- ok
		}()
	}
	winners := 0
	for range 16 {
		if <-results {
			winners++
		}
	}
	s.Equal(1, winners)
}
