package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List pipeline steps in execution order",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, s := range buildPipeline().Steps() {
			fmt.Printf("  %-10s %s\n", s.Name, s.Description)
		}
		return nil
	},
}
