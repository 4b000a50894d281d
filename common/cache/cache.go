package cache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("key not found in cache")
	ErrInvalidValue = errors.New("invalid value for cache")
	ErrClosed       = errors.New("cache is closed")
)

// Cache stores source responses between runs. Values are strings, byte
// slices or anything implementing encoding.BinaryMarshaler; Get fills a
// *string, *[]byte or encoding.BinaryUnmarshaler.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	Get(ctx context.Context, key string, value interface{}) error

	Delete(ctx context.Context, key string) error

	Close() error
}

type Options struct {
	DefaultTTL time.Duration

	CleanupInterval time.Duration

	RedisAddr string

	RedisPassword string

	RedisDB int
}

func DefaultOptions() Options {
	return Options{
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute * 5,
	}
}

// Prefixed namespaces every key of c with prefix so several services can
// share one Redis database.
func Prefixed(c Cache, prefix string) Cache {
	if prefix == "" {
		return c
	}
	return &prefixed{Cache: c, prefix: prefix}
}

type prefixed struct {
	Cache
	prefix string
}

func (p *prefixed) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return p.Cache.Set(ctx, p.prefix+key, value, ttl)
}

func (p *prefixed) Get(ctx context.Context, key string, value interface{}) error {
	return p.Cache.Get(ctx, p.prefix+key, value)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.Cache.Delete(ctx, p.prefix+key)
}
