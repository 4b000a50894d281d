// Package runlock keeps two aggregation runs from writing the store at the
// same time, whether they race inside one process or across replicas.
package runlock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultKey = "aus-job-fetcher:run-lock"

var ErrHeld = errors.New("run lock is held by another run")

// Release gives the lock back. It is safe to call more than once.
type Release func(ctx context.Context) error

type Locker interface {
	Acquire(ctx context.Context) (Release, error)
}

// releaseScript deletes the key only if it still carries our token, so an
// expired lease never frees somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedis(client *redis.Client, key string, ttl time.Duration, logger *zap.Logger) *Redis {
	if key == "" {
		key = DefaultKey
	}
	return &Redis{
		client: client,
		key:    key,
		ttl:    ttl,
		logger: logger.Named("runlock"),
	}
}

func (l *Redis) Acquire(ctx context.Context) (Release, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}

	l.logger.Debug("acquired run lock", zap.String("key", l.key), zap.Duration("ttl", l.ttl))

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			err = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
			if errors.Is(err, redis.Nil) {
				err = nil
			}
		})
		return err
	}, nil
}

// Local is an in-process lock for deployments without Redis.
type Local struct {
	mu sync.Mutex
}

func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Acquire(ctx context.Context) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, ErrHeld
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}
