package cli

import (
	"github.com/spf13/cobra"

	"github.com/falconiq/prsync/internal/pipeline"
)

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Map downloaded PRs to goals",
	Long: `Score every downloaded PR against the goals active at its creation
date and write the per-user mapping artifact. PRs below the match
threshold get a keyword-based fallback category instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := buildPipeline().Run(cmd.Context(), "", []string{pipeline.StepMap})
		printRunSummary(results)
		return err
	},
}

func init() {
	mapCmd.Flags().BoolVar(&runForce, "force", false, "recompute mappings even when already complete")
}
