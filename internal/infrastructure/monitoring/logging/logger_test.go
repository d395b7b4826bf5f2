package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
)

func TestNewLogger_DefaultsApply(t *testing.T) {
	t.Parallel()

	l, err := logging.NewLogger(logging.LogConfig{})
	require.NoError(t, err)
	require.NotNil(t, l)

	child := l.With(logging.String("stage", "consolidate")).Named("consolidator")
	assert.NotNil(t, child)
}

func TestNewLogger_ConsoleFormat(t *testing.T) {
	t.Parallel()

	l, err := logging.NewLogger(logging.LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	l.Debug("debug entry", logging.Int("elements", 3))
}

func TestFieldConstructors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, logging.Field{Key: "k", Value: "v"}, logging.String("k", "v"))
	assert.Equal(t, logging.Field{Key: "n", Value: 7}, logging.Int("n", 7))
	assert.Equal(t, logging.Field{Key: "score", Value: 0.9}, logging.Float64("score", 0.9))
	assert.Equal(t, logging.Field{Key: "ctx", Value: true}, logging.Bool("ctx", true))
	assert.Equal(t, logging.Field{Key: "error", Value: "<nil>"}, logging.Err(nil))
}

func TestNopLogger_DiscardsEverything(t *testing.T) {
	t.Parallel()

	l := logging.NewNopLogger()
	l.Info("ignored")
	l.Warn("ignored")
	assert.Equal(t, l, l.With(logging.String("k", "v")))
	assert.Equal(t, l, l.Named("sub"))
}

func TestDefault_RoundTrip(t *testing.T) {
	l := logging.NewNopLogger()
	logging.SetDefault(l)
	assert.Equal(t, l, logging.Default())

	// nil must not replace the default.
	logging.SetDefault(nil)
	assert.Equal(t, l, logging.Default())
}
