package jobs

import (
	"context"
	"time"

	"github.com/silicograph/bridger/internal/infrastructure/messaging/kafka"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
	"github.com/silicograph/bridger/internal/infrastructure/monitoring/prometheus"
	"github.com/silicograph/bridger/internal/matching/consolidator"
	"github.com/silicograph/bridger/internal/matching/similarity"
	"github.com/silicograph/bridger/pkg/errors"
)

// ConsolidateDeps carries the consolidate job's collaborators.  Locker,
// Publisher, and Metrics are optional.
type ConsolidateDeps struct {
	Stores    Stores
	Locker    Locker
	Publisher Publisher
	Metrics   *prometheus.Metrics
	Logger    logging.Logger
}

// ConsolidateJob reads the raw staging records, deduplicates them into the
// canonical entity set, and replaces the graph's entities, relations, and
// candidate index in that order.  A dry run scores and reports without
// touching any store.
type ConsolidateJob struct {
	cons      *consolidator.Consolidator
	stores    Stores
	locker    Locker
	publisher Publisher
	metrics   *prometheus.Metrics
	log       logging.Logger
}

// NewConsolidateJob wires a consolidate job.  stripPrefixes feeds the name
// normalizer shared with the bridging engine.
func NewConsolidateJob(cfg consolidator.Config, stripPrefixes []string, deps ConsolidateDeps) *ConsolidateJob {
	log := deps.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	log = log.Named("consolidate")

	return &ConsolidateJob{
		cons:      consolidator.New(cfg, similarity.NewNormalizer(stripPrefixes), log),
		stores:    deps.Stores,
		locker:    deps.Locker,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		log:       log,
	}
}

// Run executes one consolidation pass.  With dryRun set the result carries
// the would-be entities and merge candidates but nothing is committed.
func (j *ConsolidateJob) Run(ctx context.Context, dryRun bool) (*consolidator.Result, error) {
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

	records, err := j.stores.Raw.ListRecords(ctx)
	if err != nil {
		j.metrics.IncStoreError("staging")
		return nil, err
	}
	relations, err := j.stores.Raw.ListRelations(ctx)
	if err != nil {
		j.metrics.IncStoreError("staging")
		return nil, err
	}

	res := j.cons.Consolidate(records, relations)
	j.observe(res.Summary)

	if dryRun {
		log.Info("dry run complete, nothing committed",
			logging.Int("records", res.Summary.Records),
			logging.Int("entities", res.Summary.Entities),
			logging.Int("merge_groups", res.Summary.MergeGroups),
			logging.Int("borderline_pairs", res.Summary.BorderlinePairs))
		return res, nil
	}

	if err := j.stores.Entities.ReplaceAll(ctx, res.Entities); err != nil {
		j.metrics.IncStoreError("entities")
		return nil, errors.Wrap(err, errors.ErrCodeMergeCommitFailed, "failed to replace canonical entities")
	}
	if err := j.stores.Relations.ReplaceAll(ctx, res.Relations); err != nil {
		j.metrics.IncStoreError("relations")
		return nil, errors.Wrap(err, errors.ErrCodeRelationSweepFailed, "failed to replace canonical relations")
	}
	if err := j.stores.Index.Rebuild(ctx, res.Entities); err != nil {
		j.metrics.IncStoreError("index")
		return nil, err
	}

	elapsed := time.Since(start)
	j.metrics.ObserveStage("consolidate", elapsed.Seconds())

	j.publish(ctx, runID, res.Summary, log)

	log.Info("consolidation committed",
		logging.Int("records", res.Summary.Records),
		logging.Int("malformed", res.Summary.Malformed),
		logging.Int("entities", res.Summary.Entities),
		logging.Int("relations", res.Summary.Relations),
		logging.Duration("elapsed", elapsed))
	return res, nil
}

func (j *ConsolidateJob) observe(s consolidator.Summary) {
	if j.metrics == nil {
		return
	}
	j.metrics.RecordsProcessed.Add(float64(s.Records))
	j.metrics.RecordsMalformed.Add(float64(s.Malformed))
	j.metrics.EntitiesMerged.Add(float64(s.EntitiesAbsorbed))
	j.metrics.MergeAmbiguous.Add(float64(s.AmbiguousGroups))
	j.metrics.RelationsSwept.Add(float64(s.Relations))
}

// publish emits the run event.  Event delivery is best-effort: a broker
// outage never fails an otherwise committed run.
func (j *ConsolidateJob) publish(ctx context.Context, runID string, s consolidator.Summary, log logging.Logger) {
	if j.publisher == nil {
		return
	}
	payload := kafka.ConsolidationCompletedPayload{
		RunID:           runID,
		Records:         s.Records,
		Malformed:       s.Malformed,
		Entities:        s.Entities,
		MergeGroups:     s.MergeGroups,
		AmbiguousGroups: s.AmbiguousGroups,
		Relations:       s.Relations,
		CompletedAt:     time.Now().UTC(),
	}
	if err := j.publisher.Publish(ctx, kafka.TopicConsolidationCompleted, runID, payload); err != nil {
		log.Warn("failed to publish consolidation event", logging.Err(err))
	}
}
