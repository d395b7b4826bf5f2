// Package jobs hosts the pipeline's application services.  Each job owns one
// end-to-end operation (consolidate, bridge, stats) and composes the
// matching engines with stores, locking, metrics, and event publishing.  Jobs
// are what the CLI commands invoke; nothing below this layer knows about
// command-line flags or run IDs.
package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/silicograph/bridger/internal/config"
	"github.com/silicograph/bridger/internal/domain/bridge"
	"github.com/silicograph/bridger/internal/domain/element"
	"github.com/silicograph/bridger/internal/domain/entity"
	"github.com/silicograph/bridger/internal/matching/bridger"
	"github.com/silicograph/bridger/internal/matching/consolidator"
)

// Stores aggregates every persistence view the jobs touch.  The memory
// backend satisfies all of them from a single struct; the services backend
// assembles them from the Postgres staging store, the Neo4j graph, and the
// OpenSearch candidate index.
type Stores struct {
	Raw       entity.RawSource
	Elements  element.Source
	Entities  entity.Repository
	Relations entity.RelationRepository
	Index     entity.CandidateIndex
	Bridges   bridge.Repository
}

// Locker serialises pipeline runs so two processes never rebuild the graph
// concurrently.  *redis.Mutex satisfies it.
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// Publisher emits run-completed events.  *kafka.Publisher satisfies it.
type Publisher interface {
	Publish(ctx context.Context, topic, runID string, payload interface{}) error
}

// newRunID tags one job execution for logs and events.
func newRunID() string { return uuid.NewString() }

// ConsolidatorConfig maps the loaded configuration onto the consolidator's
// tuning knobs.
func ConsolidatorConfig(cfg *config.Config) consolidator.Config {
	return consolidator.Config{
		MaxEditDistance: cfg.Consolidator.MaxEditDistance,
		MinConfidence:   cfg.Consolidator.MinConfidence,
		BorderlineFloor: cfg.Consolidator.BorderlineFloor,
		ShortNameLength: cfg.Consolidator.ShortNameLength,
	}
}

// EngineConfig maps the loaded configuration onto the bridging engine's
// tuning knobs.
func EngineConfig(cfg *config.Config) bridger.Config {
	thresholds := make(map[element.Role]float64, len(cfg.Bridging.Thresholds))
	for role, t := range cfg.Bridging.Thresholds {
		thresholds[element.Role(role)] = t
	}
	return bridger.Config{
		Algorithm:               cfg.Similarity.Algorithm,
		StripPrefixes:           cfg.Similarity.StripPrefixes,
		Acronyms:                cfg.Acronyms,
		Thresholds:              thresholds,
		ModuleMinNameSimilarity: cfg.Bridging.ModuleMinNameSimilarity,
		MinNameLength:           cfg.Bridging.MinNameLength,
		CandidateLimit:          cfg.Bridging.CandidateLimit,
		ChunkSize:               cfg.Bridging.ChunkSize,
		Concurrency:             cfg.Bridging.Concurrency,
		ContextDepth:            cfg.Bridging.ContextDepth,
		ContextBoost:            cfg.Bridging.ContextBoost,
		ContextPenalty:          cfg.Bridging.ContextPenalty,
	}
}
