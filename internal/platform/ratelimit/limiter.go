// Package ratelimit throttles the public code-verification endpoints per
// client IP using a sliding window.
package ratelimit

import (
	"context"
	"time"
)

// Result describes one admission decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// Limiter admits or rejects one request against key.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Policy names a limit so keys from different endpoint groups never collide.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

func (p Policy) key(clientIP string) string {
	return "ratelimit:" + p.Name + ":" + clientIP
}

func retryAfter(resetAt, now time.Time) int {
	secs := int(resetAt.Sub(now).Round(time.Second) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
