// Package cache provides the two-level cache used for dashboard task
// statistics and photo diagnoses: an in-process L1 in front of Redis, with a
// circuit breaker shielding the Redis hop.
package cache

import (
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key is absent from every level.
var ErrCacheMiss = errors.New("cache: key not found")

type Cache interface {
	Set(key string, value interface{}, ttl time.Duration) error
	Get(key string, dest interface{}) error
	Delete(key string) error
	DeletePattern(pattern string) error
	Exists(key string) (bool, error)
	Stats() map[string]interface{}
	Health() error
	Close() error
}
