// Package cache defines the session-scoped key/value store used for values
// that should survive within a browsing session, such as the hero image.
package cache

import "context"

// Cache stores string values by key. Get reports a miss with ok == false and
// a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// HeroKey returns the cache key for a session's hero image.
func HeroKey(sessionID string) string {
	return "storefront:session:" + sessionID + ":hero"
}
