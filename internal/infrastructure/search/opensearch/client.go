// Package opensearch provides the lexical candidate index the bridging
// engine queries.  Consolidation rebuilds the index after every run; the
// engine searches it by normalized name tokens with a hard type filter.
package opensearch

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/pkg/errors"
)

// Config carries OpenSearch connection parameters.
type Config struct {
	Addresses           []string      `yaml:"addresses" json:"addresses" mapstructure:"addresses"`
	Username            string        `yaml:"username" json:"username" mapstructure:"username"`
	Password            string        `yaml:"password" json:"password" mapstructure:"password"`
	IndexName           string        `yaml:"index_name" json:"index_name" mapstructure:"index_name"`
	MaxRetries          int           `yaml:"max_retries" json:"max_retries" mapstructure:"max_retries"`
	RetryBackoff        time.Duration `yaml:"retry_backoff" json:"retry_backoff" mapstructure:"retry_backoff"`
	RequestTimeout      time.Duration `yaml:"request_timeout" json:"request_timeout" mapstructure:"request_timeout"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host" json:"max_idle_conns_per_host" mapstructure:"max_idle_conns_per_host"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval" mapstructure:"health_check_interval"`
}

// DefaultIndexName is used when config leaves the index unnamed.
const DefaultIndexName = "bridger-entities"

// Client manages the OpenSearch connection and background health checks.
type Client struct {
	client  *opensearch.Client
	config  Config
	logger  logging.Logger
	healthy atomic.Bool
	cancel  context.CancelFunc
}

// NewClient connects to OpenSearch and verifies connectivity before
// returning.
func NewClient(cfg Config, logger logging.Logger) (*Client, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "opensearch requires at least one address")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.IndexName == "" {
		cfg.IndexName = DefaultIndexName
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxIdleConnsPerHost == 0 {
		cfg.MaxIdleConnsPerHost = 10
	}
	if cfg.HealthCheckInterval == 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}

	osClient, err := opensearch.NewClient(opensearch.Config{
		Addresses:     cfg.Addresses,
		Username:      cfg.Username,
		Password:      cfg.Password,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  func(int) time.Duration { return cfg.RetryBackoff },
		RetryOnStatus: []int{502, 503, 504, 429},
		Transport: &http.Transport{
			MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "failed to create opensearch client")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		client: osClient,
		config: cfg,
		logger: logger.Named("opensearch"),
		cancel: cancel,
	}

	if err := c.Ping(ctx); err != nil {
		cancel()
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "opensearch is unreachable")
	}

	go c.healthLoop(ctx)
	return c, nil
}

// Ping checks connectivity and updates the health flag.
func (c *Client) Ping(ctx context.Context) error {
	resp, err := c.client.Ping(c.client.Ping.WithContext(ctx))
	if err != nil {
		c.healthy.Store(false)
		return err
	}
	defer resp.Body.Close()

	if resp.IsError() {
		c.healthy.Store(false)
		return errors.New(errors.ErrCodeStoreUnavailable, "opensearch ping returned error status").
			WithDetail(resp.Status())
	}
	c.healthy.Store(true)
	return nil
}

// IsHealthy reports the last observed cluster health.
func (c *Client) IsHealthy() bool { return c.healthy.Load() }

// IndexName returns the configured entity index name.
func (c *Client) IndexName() string { return c.config.IndexName }

// Raw exposes the underlying client for request execution.
func (c *Client) Raw() *opensearch.Client { return c.client }

// Close stops the health loop.  The underlying transport has no close.
func (c *Client) Close() error {
	c.cancel()
	return nil
}

func (c *Client) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prev := c.healthy.Load()
			err := c.Ping(ctx)
			curr := c.healthy.Load()
			if prev && !curr {
				c.logger.Error("opensearch became unhealthy", logging.Err(err))
			} else if !prev && curr {
				c.logger.Info("opensearch recovered")
			}
		}
	}
}
