package cache

import "errors"

var (
	// ErrCacheUnavailable is returned when Redis is not healthy
	ErrCacheUnavailable = errors.New("cache unavailable - Redis is not healthy")

	// ErrCacheMiss is returned when a key is not cached
	ErrCacheMiss = errors.New("cache miss")

	// ErrCorruptEntry is returned when a cached value cannot be decoded
	ErrCorruptEntry = errors.New("corrupt cache entry")
)
