package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/silicograph/bridger/internal/application/jobs"
	"github.com/silicograph/bridger/internal/matching/consolidator"
)

// consolidateOutput is the command's printable result.
type consolidateOutput struct {
	DryRun     bool                          `json:"dry_run"`
	Summary    consolidator.Summary          `json:"summary"`
	Borderline []consolidator.MergeCandidate `json:"borderline_candidates,omitempty"`
}

func (o consolidateOutput) String() string {
	verb := "committed"
	if o.DryRun {
		verb = "scored (dry run)"
	}
	return fmt.Sprintf(
		"consolidation %s: %d records (%d malformed) -> %d entities, %d merge groups, %d relations, %d borderline pairs",
		verb, o.Summary.Records, o.Summary.Malformed, o.Summary.Entities,
		o.Summary.MergeGroups, o.Summary.Relations, o.Summary.BorderlinePairs)
}

// NewConsolidateCmd builds the consolidate subcommand.
func NewConsolidateCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Deduplicate raw records into the canonical entity set",
		Long: "Reads the raw extraction records from the staging store, collapses exact\n" +
			"and fuzzy duplicates into canonical entities, remaps relations onto them,\n" +
			"and rebuilds the candidate index.  With --dry-run the merge decisions are\n" +
			"reported but nothing is written.",
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

			job := jobs.NewConsolidateJob(
				jobs.ConsolidatorConfig(cliCtx.Config),
				cliCtx.Config.Similarity.StripPrefixes,
				jobs.ConsolidateDeps{
					Stores:    rt.stores,
					Locker:    rt.locker,
					Publisher: rt.publisher,
					Metrics:   rt.metrics,
					Logger:    cliCtx.Logger,
				},
			)

			res, err := job.Run(cmd.Context(), dryRun)
			if err != nil {
				return err
			}

			return PrintResult(cmd, consolidateOutput{
				DryRun:     dryRun,
				Summary:    res.Summary,
				Borderline: borderlineOnly(res.Candidates),
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "score and report without committing")
	return cmd
}

// borderlineOnly keeps the pairs that need human review: scored above the
// reporting floor but below merge eligibility.
func borderlineOnly(candidates []consolidator.MergeCandidate) []consolidator.MergeCandidate {
	var out []consolidator.MergeCandidate
	for _, c := range candidates {
		if !c.Eligible {
			out = append(out, c)
		}
	}
	return out
}
