package jobs

import (
	"context"
	"time"

	"github.com/silicograph/bridger/internal/infrastructure/messaging/kafka"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/prometheus"
	"github.com/silicograph/bridger/internal/matching/bridger"
)

// BridgeDeps carries the bridge job's collaborators.  Locker, Publisher, and
// Metrics are optional.
type BridgeDeps struct {
	Stores    Stores
	Locker    Locker
	Publisher Publisher
	Metrics   *prometheus.Metrics
	Logger    logging.Logger
}

// BridgeJob runs the staged bridging engine over the structural elements and
// commits the resulting element-to-entity bridges.
type BridgeJob struct {
	engine    *bridger.Engine
	locker    Locker
	publisher Publisher
	metrics   *prometheus.Metrics
	log       logging.Logger
}

// NewBridgeJob wires a bridge job.  compatibility maps element roles to the
// entity types they may bridge to.
func NewBridgeJob(cfg bridger.Config, compatibility map[string][]string, deps BridgeDeps) (*BridgeJob, error) {
	log := deps.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}

	engine, err := bridger.NewEngine(cfg, compatibility, bridger.Deps{
		Elements:  deps.Stores.Elements,
		Index:     deps.Stores.Index,
		Relations: deps.Stores.Relations,
		Bridges:   deps.Stores.Bridges,
		Metrics:   deps.Metrics,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	return &BridgeJob{
		engine:    engine,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		log:       log.Named("bridge"),
	}, nil
}

// Run executes one bridging pass and returns the committed bridges with the
// per-stage summary.
func (j *BridgeJob) Run(ctx context.Context) (*bridger.Result, error) {
	runID := newRunID()
	start := time.Now()
	log := j.log.With(logging.String("run_id", runID))

	if j.locker != nil {
		if err := j.locker.Lock(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if err := j.locker.Unlock(ctx); err != nil {
				log.Warn("failed to release run lock", logging.Err(err))
			}
		}()
	}

	res, err := j.engine.Run(ctx)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	j.metrics.ObserveStage("bridge", elapsed.Seconds())

	j.publish(ctx, runID, res.Summary, log)

	log.Info("bridging committed",
		logging.Int("elements", res.Summary.Elements),
		logging.Int("bridged", res.Summary.Bridged),
		logging.Int("unresolved", res.Summary.Unresolved),
		logging.Int("context_boosted", res.Summary.ContextBoosted),
		logging.Duration("elapsed", elapsed))
	return res, nil
}

func (j *BridgeJob) publish(ctx context.Context, runID string, s bridger.Summary, log logging.Logger) {
	if j.publisher == nil {
		return
	}
	payload := kafka.BridgingCompletedPayload{
		RunID:       runID,
		Elements:    s.Elements,
		Bridged:     s.Bridged,
		Unresolved:  s.Unresolved,
		Boosted:     s.ContextBoosted,
		CompletedAt: time.Now().UTC(),
	}
	if err := j.publisher.Publish(ctx, kafka.TopicBridgingCompleted, runID, payload); err != nil {
		log.Warn("failed to publish bridging event", logging.Err(err))
	}
}
