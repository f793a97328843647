// Package cache holds the volatile credential and permission layers.
// Everything here is reconstructible: losing a key forces a re-login or
// a database re-read, never data loss.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get/GetDel when the key does not exist or has
// expired. Backend connectivity failures are returned as themselves so
// the degradation wrappers can tell a miss from an outage.
var ErrMiss = errors.New("cache: miss")

// Client is the minimal backend surface the credential store and
// permission cache need. Two implementations exist: redis for
// deployments and an in-process map for tests and single-node use.
type Client interface {
	// Get returns the value at key or ErrMiss.
	Get(ctx context.Context, key string) (string, error)

	// GetDel atomically reads and removes key, returning ErrMiss if it
	// was absent. This is the primitive behind one-time tokens.
	GetDel(ctx context.Context, key string) (string, error)

	// Set writes key with a TTL. A zero TTL means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Del removes keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// Keys returns the keys matching a glob pattern. Used for bulk
	// invalidation; implementations should iterate rather than block.
	Keys(ctx context.Context, pattern string) ([]string, error)

	// TTL returns the remaining lifetime of key. A negative duration
	// means the key exists without an expiry; ErrMiss means it does not
	// exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	Ping(ctx context.Context) error
	Close() error
}
