//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"signflow/pkg/testutil/containers"
)

type RedisLimiterSuite struct {
	suite.Suite
	ctx     context.Context
	redis   *containers.RedisContainer
	limiter *RedisLimiter
}

func TestRedisLimiterSuite(t *testing.T) {
	suite.Run(t, new(RedisLimiterSuite))
}

func (s *RedisLimiterSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.GetManager().Redis(s.T())
}

func (s *RedisLimiterSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.limiter = NewRedisLimiter(s.redis.Client)
}

func (s *RedisLimiterSuite) TestRejectedRequestsDoNotConsumeWindow() {
	for i := range 3 {
		res, err := s.limiter.Allow(s.ctx, "ratelimit:verify:10.0.0.1", 3, time.Minute)
		s.Require().NoError(err)
		s.True(res.Allowed)
		s.Equal(2-i, res.Remaining)
	}

	res, err := s.limiter.Allow(s.ctx, "ratelimit:verify:10.0.0.1", 3, time.Minute)
	s.Require().NoError(err)
	s.False(res.Allowed)
	s.GreaterOrEqual(res.RetryAfter, 1)

	n, err := s.redis.Client.ZCard(s.ctx, "ratelimit:verify:10.0.0.1").Result()
	s.Require().NoError(err)
	s.EqualValues(3, n)

	ttl, err := s.redis.Client.PTTL(s.ctx, "ratelimit:verify:10.0.0.1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, 50*time.Second)
}
