/*
Package lock provides a cross-instance lease for serializing maintenance jobs.

PURPOSE:
  Whole-job mutual exclusion: "don't run two daily-schedule regenerations at
  once". The lease is a conditional-write key with a TTL - if the holder
  dies, the key expires and another instance can take over. It deliberately
  does NOT protect individual office-assignment decisions; those run
  snapshot-based and rely on the conflict detector for eventual repair.

SEMANTICS:
  Acquire(name, ttl) -> bool   SET NX with expiry; false when held elsewhere
  Renew(name, ttl)   -> bool   extend, only if we still hold it
  Release(name)                delete, only if we still hold it

  Renew and Release compare the stored owner id so a lease that expired and
  was re-acquired by another instance is never clobbered.
*/
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const keyPrefix = "scheduler:lease:"

// releaseScript deletes the key only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// renewScript extends the TTL only when the caller still owns the key.
var renewScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// Lease is a named, expiring mutual-exclusion primitive backed by Redis.
// One Lease value belongs to one process; the generated owner id ties held
// keys to this instance.
type Lease struct {
	client  *redis.Client
	ownerID string
	logger  *zap.Logger
}

// NewLease creates a lease client with a fresh owner id.
func NewLease(client *redis.Client, logger *zap.Logger) *Lease {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lease{
		client:  client,
		ownerID: uuid.NewString(),
		logger:  logger,
	}
}

// OwnerID returns this instance's lease owner id.
func (l *Lease) OwnerID() string { return l.ownerID }

// Acquire attempts to take the named lease for ttl. Returns false when
// another instance holds it.
func (l *Lease) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, keyPrefix+name, l.ownerID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lease %q: %w", name, err)
	}
	if ok {
		l.logger.Debug("lease acquired",
			zap.String("lease", name),
			zap.Duration("ttl", ttl))
	}
	return ok, nil
}

// Renew extends the named lease by ttl if this instance still holds it.
func (l *Lease) Renew(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	n, err := renewScript.Run(ctx, l.client, []string{keyPrefix + name}, l.ownerID, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew lease %q: %w", name, err)
	}
	return n == 1, nil
}

// Release gives up the named lease if this instance still holds it.
// Releasing a lease held by someone else (or already expired) is a no-op.
func (l *Lease) Release(ctx context.Context, name string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{keyPrefix + name}, l.ownerID).Int()
	if err != nil {
		return fmt.Errorf("release lease %q: %w", name, err)
	}
	if n == 0 {
		l.logger.Warn("release skipped: lease not held by this instance",
			zap.String("lease", name))
	}
	return nil
}

// Holder returns the owner id currently holding the named lease, or ""
// when the lease is free.
func (l *Lease) Holder(ctx context.Context, name string) (string, error) {
	owner, err := l.client.Get(ctx, keyPrefix+name).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("inspect lease %q: %w", name, err)
	}
	return owner, nil
}
