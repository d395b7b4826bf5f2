package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silicograph/bridger/internal/infrastructure/messaging/kafka"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
)

func TestNewEnvelope(t *testing.T) {
	t.Parallel()

	payload := kafka.BridgingCompletedPayload{
		RunID:       "run-1",
		Elements:    120,
		Bridged:     95,
		Unresolved:  25,
		CompletedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	env, err := kafka.NewEnvelope(kafka.TopicBridgingCompleted, payload)
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, kafka.TopicBridgingCompleted, env.EventType)
	assert.Equal(t, "bridger", env.Source)
	assert.Equal(t, "1.0", env.SchemaVersion)
	assert.False(t, env.Timestamp.IsZero())

	var decoded kafka.BridgingCompletedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewEnvelope_IDsAreUnique(t *testing.T) {
	t.Parallel()

	a, err := kafka.NewEnvelope(kafka.TopicConsolidationCompleted, kafka.ConsolidationCompletedPayload{})
	require.NoError(t, err)
	b, err := kafka.NewEnvelope(kafka.TopicConsolidationCompleted, kafka.ConsolidationCompletedPayload{})
	require.NoError(t, err)
	assert.NotEqual(t, a.EventID, b.EventID)
}

func TestPublisher_DisabledIsNoOp(t *testing.T) {
	t.Parallel()

	p := kafka.NewPublisher(kafka.Config{Enabled: false}, logging.NewNopLogger())
	err := p.Publish(context.Background(), kafka.TopicBridgingCompleted, "run-1",
		kafka.BridgingCompletedPayload{RunID: "run-1"})
	assert.NoError(t, err)
	assert.NoError(t, p.Close())
}
