package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/falconiq/prsync/internal/models"
)

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Manage OKR goals in the store",
	Long: `Import goal definitions from a YAML file and list the goals the
mapping step attributes PRs to.`,
}

var goalsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import goals from a YAML file",
	Long: `Import goal definitions from a YAML file into the store. Goals are
upserted by key, so re-importing an edited file updates in place.

The file carries a top-level goals list:

  goals:
    - key: Q1-ADS-01
      title: Reserved Ads Q1
      description: Ship reserved ad delivery for enterprise accounts
      start_date: 2025-10-01
      end_date: 2025-12-31`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		goals, err := models.LoadGoalFile(args[0])
		if err != nil {
			return err
		}
		for _, g := range goals {
			if err := dbClient.QueryUpsertGoal(cmd.Context(), g); err != nil {
				return fmt.Errorf("import goal %s: %w", g.Key, err)
			}
		}
		fmt.Printf("Imported %d goals from %s\n", len(goals), args[0])
		return nil
	},
}

var goalsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the goals in the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		goals, err := dbClient.QueryListGoals(cmd.Context())
		if err != nil {
			return fmt.Errorf("list goals: %w", err)
		}
		if len(goals) == 0 {
			fmt.Println("no goals imported yet")
			return nil
		}
		fmt.Printf("%-15s %-35s %-12s %-12s %s\n", "key", "title", "start", "end", "active")
		for _, g := range goals {
			fmt.Printf("%-15s %-35s %-12s %-12s %v\n", g.Key, g.Title, g.StartDate, g.EndDate, g.Active)
		}
		return nil
	},
}

func init() {
	goalsCmd.AddCommand(goalsImportCmd)
	goalsCmd.AddCommand(goalsListCmd)
}
