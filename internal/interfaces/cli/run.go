package cli

import (
	"github.com/spf13/cobra"

	"github.com/silicograph/bridger/internal/application/jobs"
	"github.com/silicograph/bridger/internal/matching/bridger"
	"github.com/silicograph/bridger/internal/matching/consolidator"
)

// runOutput combines both pipeline phases.
type runOutput struct {
	Consolidation consolidator.Summary `json:"consolidation"`
	Bridging      bridger.Summary      `json:"bridging"`
}

func (o runOutput) String() string {
	return consolidateOutput{Summary: o.Consolidation}.String() + "\n" +
		bridgeOutput{Summary: o.Bridging}.String()
}

// NewRunCmd builds the run subcommand, which executes consolidation and
// bridging back to back.
func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline: consolidate, then bridge",
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

			// One lock spans both phases; the jobs themselves run unlocked so
			// the mutex is not re-acquired mid-pipeline.
			if rt.locker != nil {
				if err := rt.locker.Lock(cmd.Context()); err != nil {
					return err
				}
				defer func() { _ = rt.locker.Unlock(cmd.Context()) }()
			}

			consolidateJob := jobs.NewConsolidateJob(
				jobs.ConsolidatorConfig(cliCtx.Config),
				cliCtx.Config.Similarity.StripPrefixes,
				jobs.ConsolidateDeps{
					Stores:    rt.stores,
					Publisher: rt.publisher,
					Metrics:   rt.metrics,
					Logger:    cliCtx.Logger,
				},
			)
			consRes, err := consolidateJob.Run(cmd.Context(), false)
			if err != nil {
				return err
			}

			bridgeJob, err := jobs.NewBridgeJob(
				jobs.EngineConfig(cliCtx.Config),
				cliCtx.Config.TypeCompatibility,
				jobs.BridgeDeps{
					Stores:    rt.stores,
					Publisher: rt.publisher,
					Metrics:   rt.metrics,
					Logger:    cliCtx.Logger,
				},
			)
			if err != nil {
				return err
			}
			bridgeRes, err := bridgeJob.Run(cmd.Context())
			if err != nil {
				return err
			}

			return PrintResult(cmd, runOutput{
				Consolidation: consRes.Summary,
				Bridging:      bridgeRes.Summary,
			})
		},
	}
}
