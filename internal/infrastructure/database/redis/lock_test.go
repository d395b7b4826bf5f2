package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
)

func TestNewMutex_TokensAreUniquePerInstance(t *testing.T) {
	t.Parallel()

	a := NewMutex(nil, "merge-commit", logging.NewNopLogger())
	b := NewMutex(nil, "merge-commit", logging.NewNopLogger())

	assert.Equal(t, a.name, b.name)
	assert.NotEqual(t, a.token, b.token, "two runners must never share an owner token")
	assert.Equal(t, "bridger:lock:merge-commit", a.name)
}

func TestNewMutex_OptionsApply(t *testing.T) {
	t.Parallel()

	m := NewMutex(nil, "merge-commit", nil,
		WithLockTTL(5*time.Second),
		WithRetryDelay(10*time.Millisecond),
		WithRetryCount(3),
	)
	assert.Equal(t, 5*time.Second, m.cfg.ttl)
	assert.Equal(t, 10*time.Millisecond, m.cfg.retryDelay)
	assert.Equal(t, 3, m.cfg.retryCount)
}
