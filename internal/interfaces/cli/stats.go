package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/silicograph/bridger/internal/application/jobs"
)

// statsOutput wraps the stats snapshot with table rendering.
type statsOutput struct {
	jobs.Stats
}

func (o statsOutput) String() string {
	return fmt.Sprintf(
		"graph: %d entities, %d relations | design: %d elements | bridges: %d (%.1f%% coverage, avg score %.3f, %d context-flagged)",
		o.Entities, o.Relations, o.Elements, o.Bridges,
		o.BridgedRatio*100, o.AvgBridgeScore, o.ContextFlagged)
}

func (o statsOutput) TableHeaders() []string {
	return []string{"METRIC", "VALUE"}
}

func (o statsOutput) TableRows() [][]string {
	rows := [][]string{
		{"entities", fmt.Sprintf("%d", o.Entities)},
		{"relations", fmt.Sprintf("%d", o.Relations)},
		{"elements", fmt.Sprintf("%d", o.Elements)},
		{"bridges", fmt.Sprintf("%d", o.Bridges)},
		{"bridged ratio", fmt.Sprintf("%.3f", o.BridgedRatio)},
		{"avg bridge score", fmt.Sprintf("%.3f", o.AvgBridgeScore)},
		{"context flagged", fmt.Sprintf("%d", o.ContextFlagged)},
	}
	for _, key := range sortedCountKeys(o.EntitiesByType) {
		rows = append(rows, []string{"entities[" + key + "]", fmt.Sprintf("%d", o.EntitiesByType[key])})
	}
	for _, key := range sortedCountKeys(o.ElementsByRole) {
		rows = append(rows, []string{"elements[" + key + "]", fmt.Sprintf("%d", o.ElementsByRole[key])})
	}
	return rows
}

func sortedCountKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NewStatsCmd builds the stats subcommand.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Report knowledge-graph coverage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			rt, err := buildRuntime(cmd.Context(), cliCtx)
			if err != nil {
				return err
			}
			defer rt.Close(cliCtx.Logger)

			stats, err := jobs.NewStatsJob(rt.stores, cliCtx.Logger).Run(cmd.Context())
			if err != nil {
				return err
			}
			return PrintResult(cmd, statsOutput{Stats: *stats})
		},
	}
}
