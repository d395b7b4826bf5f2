package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/silicograph/bridger/internal/application/jobs"
	"github.com/silicograph/bridger/internal/config"
	"github.com/silicograph/bridger/internal/infrastructure/database/memory"
	"github.com/silicograph/bridger/internal/infrastructure/database/neo4j"
	"github.com/silicograph/bridger/internal/infrastructure/database/postgres"
	"github.com/silicograph/bridger/internal/infrastructure/database/redis"
	"github.com/silicograph/bridger/internal/infrastructure/messaging/kafka"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/prometheus"
	"github.com/silicograph/bridger/internal/infrastructure/search/opensearch"
)

// runLockName keys the Redis mutex shared by every pipeline process.
const runLockName = "bridger:pipeline"

// runtime bundles the stores and infrastructure one command invocation uses.
type runtime struct {
	stores    jobs.Stores
	locker    jobs.Locker
	publisher jobs.Publisher
	metrics   *prometheus.Metrics

	closers []func() error
}

// Close releases runtime resources in reverse construction order.
func (r *runtime) Close(log logging.Logger) {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			log.Warn("failed to close runtime resource", logging.Err(err))
		}
	}
}

// buildRuntime assembles the configured backend.  The memory backend serves
// smoke tests and dry runs; the services backend wires Postgres staging, the
// Neo4j graph, the OpenSearch index, and optionally the Redis run lock.
func buildRuntime(ctx context.Context, cliCtx *CLIContext) (*runtime, error) {
	cfg := cliCtx.Config
	log := cliCtx.Logger

	rt := &runtime{metrics: prometheus.NewMetrics()}

	publisher := kafka.NewPublisher(cfg.Kafka, log)
	rt.publisher = publisher
	rt.closers = append(rt.closers, publisher.Close)

	if cfg.Metrics.Enabled {
		rt.closers = append(rt.closers, serveMetrics(cfg.Metrics.Addr, rt.metrics, log))
	}

	if cfg.Store.Backend == config.BackendMemory {
		store := memory.NewStore()
		rt.stores = jobs.Stores{
			Raw:       store.Raw(),
			Elements:  store.Elements(),
			Entities:  store.Entities(),
			Relations: store.Relations(),
			Index:     store.Index(),
			Bridges:   store.Bridges(),
		}
		return rt, nil
	}

	conn, err := postgres.NewConnection(cfg.Postgres, log)
	if err != nil {
		rt.Close(log)
		return nil, err
	}
	rt.closers = append(rt.closers, conn.Close)
	staging := postgres.NewStagingStore(conn)

	driver, err := neo4j.NewDriver(cfg.Neo4j, log)
	if err != nil {
		rt.Close(log)
		return nil, err
	}
	rt.closers = append(rt.closers, driver.Close)

	graph := neo4j.NewGraphStore(driver, log)
	if err := graph.EnsureIndexes(ctx); err != nil {
		rt.Close(log)
		return nil, err
	}

	osClient, err := opensearch.NewClient(cfg.OpenSearch, log)
	if err != nil {
		rt.Close(log)
		return nil, err
	}
	rt.closers = append(rt.closers, osClient.Close)

	if cfg.Store.LockEnabled {
		redisClient, err := redis.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			rt.Close(log)
			return nil, err
		}
		rt.closers = append(rt.closers, redisClient.Close)
		rt.locker = redis.NewMutex(redisClient, runLockName, log)
	}

	rt.stores = jobs.Stores{
		Raw:       staging.Raw(),
		Elements:  staging.Elements(),
		Entities:  graph.Entities(),
		Relations: graph.Relations(),
		Index:     opensearch.NewCandidateIndex(osClient, log),
		Bridges:   graph.Bridges(),
	}
	return rt, nil
}

// serveMetrics exposes the Prometheus endpoint for the duration of the run.
func serveMetrics(addr string, metrics *prometheus.Metrics, log logging.Logger) func() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics endpoint stopped", logging.Err(err))
		}
	}()
	log.Info("metrics endpoint listening", logging.String("addr", addr))

	return func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
