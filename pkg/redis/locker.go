package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

// releaseScript deletes the key only while it still holds the caller's token,
// so an expired holder never releases a lock taken over by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the key's TTL only while it still holds the caller's token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker is a keyed mutex shared by every process using the same Redis.
// A held key is renewed every third of the TTL until unlock, and expires
// after the TTL once its holder is gone.
type Locker struct {
	client  redis.UniversalClient
	ttl     time.Duration
	poll    time.Duration
	maxPoll time.Duration
}

// NewLocker creates a Locker. Zero durations fall back to 30s TTL and 25ms polling.
func NewLocker(client redis.UniversalClient, ttl, poll time.Duration) *Locker {
	if client == nil {
		panic("redis: client is required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if poll <= 0 {
		poll = 25 * time.Millisecond
	}
	return &Locker{
		client:  client,
		ttl:     ttl,
		poll:    poll,
		maxPoll: max(poll, 500*time.Millisecond),
	}
}

// NewLockerFromConfig creates a Locker with the lock settings from cfg.
func NewLockerFromConfig(client redis.UniversalClient, cfg Config) *Locker {
	return NewLocker(client, cfg.LockTTL, cfg.LockPollInterval)
}

// Lock blocks until the key is acquired or ctx is done.
// The returned unlock func is safe to call more than once.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	backoff := retry.WithCappedDuration(l.maxPoll, retry.WithJitterPercent(10, retry.NewExponential(l.poll)))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(ErrLockNotAcquired)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		return nil, errors.Join(ErrLockNotAcquired, err)
	}

	bg := context.WithoutCancel(ctx)
	stop, done := make(chan struct{}), make(chan struct{})
	go l.keepAlive(bg, key, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			_ = releaseScript.Run(bg, l.client, []string{key}, token).Err()
		})
	}, nil
}

// keepAlive renews the key until stop is closed or the key no longer holds token.
func (l *Locker) keepAlive(ctx context.Context, key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(max(l.ttl/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if err == nil && n == 0 {
				return
			}
		}
	}
}
