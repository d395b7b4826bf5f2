package jobs

import (
	"context"

	"github.com/silicograph/bridger/internal/infrastructure/monitoring/logging"
)

// Stats snapshots the knowledge graph after the pipeline has run.
type Stats struct {
	Entities       int            `json:"entities"`
	EntitiesByType map[string]int `json:"entities_by_type"`
	Relations      int            `json:"relations"`

	Elements       int            `json:"elements"`
	ElementsByRole map[string]int `json:"elements_by_role"`

	Bridges        int     `json:"bridges"`
	BridgedRatio   float64 `json:"bridged_ratio"`
	AvgBridgeScore float64 `json:"avg_bridge_score"`
	ContextFlagged int     `json:"context_flagged"`
}

// StatsJob reads the stores and reports graph coverage.  It never writes.
type StatsJob struct {
	stores Stores
	log    logging.Logger
}

// NewStatsJob wires a stats job.
func NewStatsJob(stores Stores, log logging.Logger) *StatsJob {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &StatsJob{stores: stores, log: log.Named("stats")}
}

// Run collects the snapshot.
func (j *StatsJob) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		EntitiesByType: map[string]int{},
		ElementsByRole: map[string]int{},
	}

	entities, err := j.stores.Entities.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	stats.Entities = len(entities)
	for _, e := range entities {
		stats.EntitiesByType[e.Type]++
	}

	relations, err := j.stores.Relations.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	stats.Relations = len(relations)

	elements, err := j.stores.Elements.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	stats.Elements = len(elements)
	for _, el := range elements {
		stats.ElementsByRole[string(el.Role)]++
	}

	bridges, err := j.stores.Bridges.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	stats.Bridges = len(bridges)
	var scoreSum float64
	for _, b := range bridges {
		scoreSum += b.Score
		if b.ContextFlag {
			stats.ContextFlagged++
		}
	}
	if stats.Bridges > 0 {
		stats.AvgBridgeScore = scoreSum / float64(stats.Bridges)
	}
	if stats.Elements > 0 {
		stats.BridgedRatio = float64(stats.Bridges) / float64(stats.Elements)
	}

	return stats, nil
}
