package ports

import "context"

// EventLimiter rate limits events per key (e.g. member ID).
type EventLimiter interface {
	// Allow records one event for key and reports whether it is within the limit.
	Allow(ctx context.Context, key string) bool
}
