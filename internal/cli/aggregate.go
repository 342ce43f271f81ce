package cli

import (
	"github.com/spf13/cobra"

	"github.com/falconiq/prsync/internal/pipeline"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Import per-PR stats into the store",
	Long: `Join each task's search, mapping, and classification artifacts into
per-PR stat rows and import them into SurrealDB. Tasks whose mapping or
classification is not complete yet are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := buildPipeline().Run(cmd.Context(), "", []string{pipeline.StepAggregate})
		printRunSummary(results)
		return err
	},
}
