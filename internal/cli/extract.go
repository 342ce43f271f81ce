package cli

import (
	"github.com/spf13/cobra"

	"github.com/falconiq/prsync/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract review comments from downloaded PRs",
	Long: `Build the windowed comment artifact for every task: all comments
received on authored PRs, and the user's own comments on reviewed PRs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := buildPipeline().Run(cmd.Context(), "", []string{pipeline.StepExtract})
		printRunSummary(results)
		return err
	},
}
