package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/silicograph/bridger/internal/application/jobs"
	"github.com/silicograph/bridger/internal/matching/bridger"
)

// bridgeOutput is the command's printable result.
type bridgeOutput struct {
	Summary bridger.Summary `json:"summary"`
}

func (o bridgeOutput) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "bridging committed: %d elements, %d bridged, %d unresolved, %d context-boosted",
		o.Summary.Elements, o.Summary.Bridged, o.Summary.Unresolved, o.Summary.ContextBoosted)
	for _, stage := range o.Summary.Stages {
		fmt.Fprintf(&sb, "\n  stage %-13s %4d elements %4d bridged (%.0fms)",
			stage.Stage, stage.Elements, stage.Bridged, stage.DurationMs)
	}
	return sb.String()
}

// NewBridgeCmd builds the bridge subcommand.
func NewBridgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bridge",
		Short: "Match structural elements to canonical entities",
		Long: "Runs the staged bridging engine: architectural concepts first, then\n" +
			"modules, then ports and signals, so each stage's bridges feed the graph\n" +
			"context of the next.  At most one bridge is committed per element.",
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

			job, err := jobs.NewBridgeJob(
				jobs.EngineConfig(cliCtx.Config),
				cliCtx.Config.TypeCompatibility,
				jobs.BridgeDeps{
					Stores:    rt.stores,
					Locker:    rt.locker,
					Publisher: rt.publisher,
					Metrics:   rt.metrics,
					Logger:    cliCtx.Logger,
				},
			)
			if err != nil {
				return err
			}

			res, err := job.Run(cmd.Context())
			if err != nil {
				return err
			}
			return PrintResult(cmd, bridgeOutput{Summary: res.Summary})
		},
	}
}
