package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/pkg/errors"
)

// Config carries Kafka producer parameters.
type Config struct {
	Enabled      bool          `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Brokers      []string      `yaml:"brokers" json:"brokers" mapstructure:"brokers"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout" mapstructure:"write_timeout"`
}

// Publisher writes run-summary events.  The zero-value-Config publisher is a
// no-op so call sites need no enabled checks.
type Publisher struct {
	writer *kafka.Writer
	log    logging.Logger
}

// NewPublisher constructs a Publisher.  When cfg.Enabled is false the
// returned Publisher discards every event.
func NewPublisher(cfg Config, log logging.Logger) *Publisher {
	if log == nil {
		log = logging.NewNopLogger()
	}
	p := &Publisher{log: log.Named("kafka")}
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return p
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: timeout,
	}
	return p
}

// Publish sends one enveloped event to the topic, keyed by run ID so events
// of the same run land in one partition.
func (p *Publisher) Publish(ctx context.Context, topic, runID string, payload interface{}) error {
	if p.writer == nil {
		return nil
	}
	env, err := NewEnvelope(topic, payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "event payload marshal failed")
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "event envelope marshal failed")
	}
	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(runID),
		Value: raw,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "event publish failed").
			WithDetail("topic=" + topic)
	}
	p.log.Debug("event published", logging.String("topic", topic), logging.String("run_id", runID))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
