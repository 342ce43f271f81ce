package cli

import (
	"github.com/spf13/cobra"

	"github.com/falconiq/prsync/internal/pipeline"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the task, search, and download steps",
	Long: `Generate sync tasks from the roster, search GitHub for each task's
PRs, and download details, comments, and changed files.

Equivalent to: prsync run --steps tasks,search,download`,
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := buildPipeline().Run(cmd.Context(), "", []string{
			pipeline.StepTasks, pipeline.StepSearch, pipeline.StepDownload,
		})
		printRunSummary(results)
		return err
	},
}
