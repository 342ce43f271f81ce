package cli

import (
	"github.com/spf13/cobra"

	"github.com/falconiq/prsync/internal/pipeline"
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Classify extracted comments with the LLM",
	Long: `Classify every extracted comment into the review taxonomy. Verdicts
are cached per comment, and bot-authored or empty comments are settled
without an LLM call.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := buildPipeline().Run(cmd.Context(), "", []string{pipeline.StepClassify})
		printRunSummary(results)
		return err
	},
}
