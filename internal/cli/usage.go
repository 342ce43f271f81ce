package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/falconiq/prsync/internal/metrics"
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/task"
)

var (
	usageUser     string
	usageDetailed bool
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show imported stats and cost estimates",
	Long: `Show goal attribution across all imported PRs, and optionally the
per-PR breakdown for one user.

Examples:
  prsync usage
  prsync usage --user jdoe
  prsync usage --user jdoe --detailed`,
	RunE: runUsage,
}

func init() {
	usageCmd.Flags().StringVar(&usageUser, "user", "", "PR user name to report on")
	usageCmd.Flags().BoolVar(&usageDetailed, "detailed", false, "show per-PR breakdown")
}

func runUsage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	attribution, err := dbClient.QueryGoalAttribution(ctx)
	if err != nil {
		return fmt.Errorf("get goal attribution: %w", err)
	}

	fmt.Printf("Goal Attribution (all imported PRs)\n")
	fmt.Printf("═══════════════════════════════════════\n")
	if len(attribution) == 0 {
		fmt.Printf("  no imported stats yet\n")
	}
	total := 0
	for _, g := range attribution {
		total += g.Count
	}
	for _, g := range attribution {
		pct := 0.0
		if total > 0 {
			pct = float64(g.Count) / float64(total) * 100
		}
		fmt.Printf("  %-30s %6d (%5.1f%%)\n", g.GoalKey, g.Count, pct)
	}

	if usageUser != "" {
		fmt.Println()
		if err := printUserStats(cmd, usageUser); err != nil {
			return err
		}
	} else if err := printImportedUsers(cmd); err != nil {
		return err
	}

	printCumulativeCosts()
	printSessionStats(collector.Snapshot())
	return nil
}

// printImportedUsers lists the roster entries known to the store.
func printImportedUsers(cmd *cobra.Command) error {
	users, err := dbClient.QueryListUsers(cmd.Context())
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}
	fmt.Printf("\nImported Users\n")
	fmt.Printf("═══════════════════════════════════════\n")
	for _, u := range users {
		fmt.Printf("  %-25s %s\n", u.PRUserName, u.DisplayName())
	}
	return nil
}

// printCumulativeCosts shows the spend accumulated across all runs.
func printCumulativeCosts() {
	var rec metrics.CostRecord
	found, err := task.ReadRecord(paths.CostFile(), &rec)
	if err != nil || !found {
		return
	}
	fmt.Printf("\nCumulative LLM Spend (all runs)\n")
	fmt.Printf("═══════════════════════════════════════\n")
	fmt.Printf("  Embedding tokens:  %d\n", rec.EmbeddingTokens)
	fmt.Printf("  Classify tokens:   %d in, %d out\n", rec.ClassifyInputTokens, rec.ClassifyOutputTokens)
	fmt.Printf("  Total cost:        $%.4f\n", rec.TotalCostUSD)
}

// printUserStats summarizes the imported stat rows for one user.
func printUserStats(cmd *cobra.Command, prUser string) error {
	rows, err := dbClient.QueryStatsForUser(cmd.Context(), prUser)
	if err != nil {
		return fmt.Errorf("get stats for %s: %w", prUser, err)
	}

	heading := prUser
	if users, rosterErr := models.LoadRoster(cfg.RosterFile); rosterErr == nil {
		for _, u := range users {
			if u.PRUserName == prUser {
				heading = fmt.Sprintf("%s (%s)", u.DisplayName(), prUser)
				break
			}
		}
	}
	fmt.Printf("Stats for %s\n", heading)
	fmt.Printf("═══════════════════════════════════════\n")
	if len(rows) == 0 {
		fmt.Printf("  no imported stats for this user\n")
		return nil
	}

	byWork := map[models.WorkType]int{}
	merged, comments, actionable := 0, 0, 0
	for _, r := range rows {
		byWork[r.Work]++
		if r.Merged {
			merged++
		}
		for _, n := range r.CommentCounts {
			comments += n
		}
		actionable += r.ActionableCount
	}
	fmt.Printf("  PRs:        %d (%d authored, %d reviewed)\n",
		len(rows), byWork[models.WorkAuthored], byWork[models.WorkReviewed])
	fmt.Printf("  Merged:     %d\n", merged)
	fmt.Printf("  Comments:   %d (%d actionable)\n", comments, actionable)

	if usageDetailed {
		fmt.Printf("\n  %-10s %-45s %-10s %s\n", "work", "pr", "match", "score")
		for _, r := range rows {
			label := string(r.Match)
			if r.GoalKey != "" {
				label = r.GoalKey
			} else if r.Fallback != "" {
				label = string(r.Fallback)
			}
			fmt.Printf("  %-10s %-45s %-10s %.2f\n",
				r.Work, fmt.Sprintf("%s/%s#%d", r.Ref.Owner, r.Ref.Repo, r.Ref.Number), label, r.MatchScore)
		}
	}
	return nil
}

// printSessionStats shows the in-process operation counters. Outside a
// pipeline run only the DB queries of this command show up.
func printSessionStats(snap metrics.Snapshot) {
	fmt.Printf("\nSession Statistics (in-memory)\n")
	fmt.Printf("═══════════════════════════════════════\n")

	if snap.GitHubRequest != nil {
		fmt.Printf("\nGitHub Requests:\n")
		printOpStats(snap.GitHubRequest)
	}
	if snap.GitHubWait != nil {
		fmt.Printf("\nRate-Limit Waits:\n")
		printOpStats(snap.GitHubWait)
	}
	if snap.Embedding != nil {
		fmt.Printf("\nEmbeddings:\n")
		printOpStats(snap.Embedding)
		printTokenStats(snap.Embedding)
	}
	if snap.LLMClassify != nil {
		fmt.Printf("\nLLM Classify:\n")
		printOpStats(snap.LLMClassify)
		printTokenStats(snap.LLMClassify)
	}
	if snap.DBQuery != nil {
		fmt.Printf("\nDB Query:\n")
		printOpStats(snap.DBQuery)
	}
	if snap.EstimatedCostUSD > 0 {
		fmt.Printf("\nEstimated cost: $%.4f\n", snap.EstimatedCostUSD)
	}
}

// printOpStats displays timing statistics for an operation.
func printOpStats(op *metrics.OperationSnapshot) {
	fmt.Printf("  Calls: %d, Total: %dms\n", op.Count, op.TotalTimeMs)
	fmt.Printf("  Time: avg %.1fms, min %dms, max %dms\n",
		op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
}

// printTokenStats displays token statistics if available.
func printTokenStats(op *metrics.OperationSnapshot) {
	if op.TotalInputTokens == nil || op.TotalOutputTokens == nil {
		return
	}
	fmt.Printf("  Tokens In:  %d total", *op.TotalInputTokens)
	if op.AvgInputTokens != nil {
		fmt.Printf(", avg %.0f", *op.AvgInputTokens)
	}
	fmt.Println()

	fmt.Printf("  Tokens Out: %d total", *op.TotalOutputTokens)
	if op.AvgOutputTokens != nil {
		fmt.Printf(", avg %.0f", *op.AvgOutputTokens)
	}
	fmt.Println()
}
