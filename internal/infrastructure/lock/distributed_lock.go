// Package lock provides a redis SetNX lock. The transfer path uses it
// as a cheap guard that collapses concurrent submissions of the same
// request id before they contend on database row locks; the ledger's
// unique index remains the actual idempotency guarantee.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrLockFailed = errors.New("could not acquire lock")

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock attempts a single non-blocking acquisition. SetNX with an
// expiration keeps a crashed holder from wedging the key forever.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock up to maxRetries times, waiting retryInterval
// between attempts.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock releases the lock only if this instance still holds it. The
// Lua script makes the check-and-delete atomic, so an expired holder
// cannot delete a lock someone else has since acquired.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// NewTransferLock keys the lock by the transfer's request id: two
// clients retrying the same request serialize, while unrelated
// transfers stay fully concurrent.
func NewTransferLock(client *redis.Client, requestID string) *DistributedLock {
	return NewDistributedLock(client, "transfer:lock:"+requestID, requestID, 30*time.Second)
}
