package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
)

// Locker hands out a named lock held until release is called or the TTL expires.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type RedisLocker struct {
	Client *redislock.Client
}

func (l RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.Client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrJobLocked
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// AcquireJobLock serializes runs of the same job across hosts. A nil locker runs unlocked.
func AcquireJobLock(ctx context.Context, locker Locker, jobName string, ttl time.Duration) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	release, err := locker.Obtain(ctx, fmt.Sprintf("housing-jobs:%s", jobName), ttl)
	if err != nil {
		return nil, newJobError(ErrorKindConfiguration, "acquire job lock", jobName, err)
	}
	return func() {
		_ = release(context.Background())
	}, nil
}
