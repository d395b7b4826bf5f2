package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/pkg/errors"
)

var (
	// ErrLockNotAcquired is returned when the lock could not be taken within
	// the retry budget.
	ErrLockNotAcquired = errors.New(errors.ErrCodeLockNotAcquired, "failed to acquire lock")

	// ErrLockNotHeld is returned by Unlock when the lock is owned by another
	// runner or already expired.
	ErrLockNotHeld = errors.New(errors.ErrCodeLockNotAcquired, "lock not held by this owner")
)

// unlockScript releases the lock only when the stored token matches, so a
// runner can never release a lock a slower peer re-acquired.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockOption customises a Mutex.
type LockOption func(*lockConfig)

type lockConfig struct {
	ttl        time.Duration
	retryDelay time.Duration
	retryCount int
}

// WithLockTTL sets the lock expiry.  The TTL must comfortably exceed the
// longest expected merge-commit phase.
func WithLockTTL(ttl time.Duration) LockOption {
	return func(c *lockConfig) { c.ttl = ttl }
}

// WithRetryDelay sets the pause between acquisition attempts.
func WithRetryDelay(delay time.Duration) LockOption {
	return func(c *lockConfig) { c.retryDelay = delay }
}

// WithRetryCount sets the number of acquisition attempts for Lock.
func WithRetryCount(count int) LockOption {
	return func(c *lockConfig) { c.retryCount = count }
}

// Mutex is a single-owner distributed lock.  Each Mutex instance carries a
// unique token; only the acquiring instance can unlock.
type Mutex struct {
	client *Client
	name   string
	token  string
	cfg    lockConfig
	log    logging.Logger
}

// NewMutex constructs a Mutex for the named lock.  Defaults: 60s TTL, 250ms
// retry delay, 40 attempts.
func NewMutex(client *Client, name string, log logging.Logger, opts ...LockOption) *Mutex {
	cfg := lockConfig{
		ttl:        60 * time.Second,
		retryDelay: 250 * time.Millisecond,
		retryCount: 40,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Mutex{
		client: client,
		name:   "bridger:lock:" + name,
		token:  uuid.NewString(),
		cfg:    cfg,
		log:    log.Named("lock"),
	}
}

// TryLock attempts a single acquisition.  Returns false without error when
// the lock is held elsewhere.
func (m *Mutex) TryLock(ctx context.Context) (bool, error) {
	ok, err := m.client.Raw().SetNX(ctx, m.name, m.token, m.cfg.ttl).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "lock SETNX failed").
			WithDetail("lock=" + m.name)
	}
	return ok, nil
}

// Lock blocks until the lock is acquired, the retry budget is exhausted, or
// ctx is cancelled.
func (m *Mutex) Lock(ctx context.Context) error {
	for attempt := 0; attempt < m.cfg.retryCount; attempt++ {
		ok, err := m.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			m.log.Debug("lock acquired", logging.String("lock", m.name), logging.Int("attempt", attempt+1))
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrCodeLockNotAcquired, "lock wait cancelled").
				WithDetail("lock=" + m.name)
		case <-time.After(m.cfg.retryDelay):
		}
	}
	return ErrLockNotAcquired.WithDetail("lock=" + m.name)
}

// Unlock releases the lock when still owned by this Mutex.
func (m *Mutex) Unlock(ctx context.Context) error {
	released, err := unlockScript.Run(ctx, m.client.Raw(), []string{m.name}, m.token).Int()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "lock release failed").
			WithDetail("lock=" + m.name)
	}
	if released == 0 {
		return ErrLockNotHeld.WithDetail("lock=" + m.name)
	}
	m.log.Debug("lock released", logging.String("lock", m.name))
	return nil
}
