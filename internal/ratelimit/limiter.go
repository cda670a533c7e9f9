// Package ratelimit throttles requests per key (client IP, account).
package ratelimit

import "context"

// Limiter decides whether one more request for key fits the quota.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

func normalizeKey(key string) string {
	if key == "" {
		return "unknown"
	}
	return key
}
