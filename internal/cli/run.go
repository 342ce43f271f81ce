package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/falconiq/prsync/internal/classify"
	"github.com/falconiq/prsync/internal/comments"
	"github.com/falconiq/prsync/internal/github"
	"github.com/falconiq/prsync/internal/llm"
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/okr"
	"github.com/falconiq/prsync/internal/pipeline"
	"github.com/falconiq/prsync/internal/stats"
	"github.com/falconiq/prsync/internal/syncer"
	"github.com/falconiq/prsync/internal/task"
)

var (
	runStartFrom string
	runSteps     []string
	runForce     bool

	// runID tags the index and failures artifacts of this invocation.
	runID = uuid.NewString()
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync pipeline",
	Long: `Run the PR sync pipeline for every user in the roster.

Steps run in order: tasks, search, download, map, extract, classify,
aggregate. Each step checkpoints its progress, so rerunning after a
failure continues where the previous run stopped.

Examples:
  prsync run
  prsync run --start-from map
  prsync run --steps search,download
  prsync run --force --steps map`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runStartFrom, "start-from", "", "first step to run (earlier steps are skipped)")
	runCmd.Flags().StringSliceVar(&runSteps, "steps", nil, "run only the named steps")
	runCmd.Flags().BoolVar(&runForce, "force", false, "recompute goal mappings even when already complete")
}

func runRun(cmd *cobra.Command, args []string) error {
	p := buildPipeline()

	var (
		results []pipeline.Result
		err     error
	)
	if term.IsTerminal(int(os.Stdout.Fd())) {
		results, err = RunPipelineProgress(cmd.Context(), p, runStartFrom, runSteps)
	} else {
		results, err = p.Run(cmd.Context(), runStartFrom, runSteps)
	}

	printRunSummary(results)
	return err
}

// buildPipeline registers all steps in execution order. The step
// closures read the package globals wired up in PersistentPreRunE.
func buildPipeline() *pipeline.Pipeline {
	p := pipeline.New(cfg.StepTimeout, logger)
	p.Add(pipeline.Step{Name: pipeline.StepTasks, Description: "create or extend sync tasks from the roster", Run: runTasksStep})
	p.Add(pipeline.Step{Name: pipeline.StepSearch, Description: "search PRs for each task's date window", Run: runSearchStep})
	p.Add(pipeline.Step{Name: pipeline.StepDownload, Description: "download PR details, comments, and changed files", Run: runDownloadStep})
	p.Add(pipeline.Step{Name: pipeline.StepMap, Description: "map each PR to a goal or fallback category", Run: runMapStep})
	p.Add(pipeline.Step{Name: pipeline.StepExtract, Description: "extract review comments into windowed artifacts", Run: runExtractStep})
	p.Add(pipeline.Step{Name: pipeline.StepClassify, Description: "classify extracted comments with the LLM", Run: runClassifyStep})
	p.Add(pipeline.Step{Name: pipeline.StepAggregate, Description: "aggregate per-PR stats into the store", Run: runAggregateStep})
	return p
}

// forEachTask loads the roster and visits the task for every user and
// work direction in order. A failing task is logged and the rest of the
// roster still runs; only systemic errors abort the walk.
func forEachTask(fn func(t *task.Task, u models.User) error) error {
	users, err := models.LoadRoster(cfg.RosterFile)
	if err != nil {
		return err
	}
	failed := 0
	for _, u := range users {
		for _, work := range models.WorkTypes {
			t, err := registry.CreateOrGet(u.PRUserName, work, cfg.StartDate, cfg.EndDate)
			if err != nil {
				return err
			}
			if err := fn(t, u); err != nil {
				if fatalTaskErr(err) {
					return err
				}
				failed++
				logger.Error("task failed", "user", u.PRUserName, "work", work, "error", err)
			}
		}
	}
	if failed > 0 {
		logger.Warn("some tasks failed", "failed", failed)
	}
	return nil
}

// fatalTaskErr reports whether an error dooms every remaining task too.
func fatalTaskErr(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, llm.ErrFatalAPI)
}

// runTasksStep upserts the roster into the store and opens a follow-up
// window for every completed task that has new days to cover.
func runTasksStep(ctx context.Context) error {
	users, err := models.LoadRoster(cfg.RosterFile)
	if err != nil {
		return err
	}
	today := time.Now().UTC().Format("2006-01-02")
	for _, u := range users {
		if err := dbClient.QueryUpsertUser(ctx, u); err != nil {
			return err
		}
		for _, work := range models.WorkTypes {
			t, err := registry.CreateOrGet(u.PRUserName, work, cfg.StartDate, cfg.EndDate)
			if err != nil {
				return err
			}
			if t.Status != task.StatusCompleted {
				continue
			}
			fresh, ok, err := registry.OpenNextWindow(t, today, cfg.MinStartDate)
			if err != nil {
				return err
			}
			if !ok {
				logger.Debug("task up to date", "user", u.PRUserName, "work", work)
				continue
			}
			logger.Info("opened new sync window", "user", u.PRUserName, "work", work, "start", fresh.StartDate, "end", fresh.EndDate)
		}
	}
	return nil
}

func newEngine() *syncer.Engine {
	client := github.NewClient(cfg, logger, collector)
	return syncer.NewEngine(client, registry, paths, cfg.GitHubOrg, cfg.BatchSize, logger)
}

func runSearchStep(ctx context.Context) error {
	engine := newEngine()
	return forEachTask(func(t *task.Task, _ models.User) error {
		return engine.Search(ctx, t)
	})
}

func runDownloadStep(ctx context.Context) error {
	engine := newEngine()
	return forEachTask(func(t *task.Task, _ models.User) error {
		return engine.Download(ctx, t, runID)
	})
}

func runMapStep(ctx context.Context) error {
	emb, err := getEmbedder(ctx)
	if err != nil {
		return err
	}
	scorer := okr.NewHybridScorer(emb, okr.DefaultWeights)
	mapper := okr.NewMapper(scorer, dbClient, paths, cfg.MatchThreshold, logger)
	return forEachTask(func(t *task.Task, _ models.User) error {
		return mapper.MapUser(ctx, t, runForce)
	})
}

func runExtractStep(ctx context.Context) error {
	extractor := comments.NewExtractor(paths, logger)
	return forEachTask(func(t *task.Task, u models.User) error {
		_, err := extractor.Extract(t, u)
		return err
	})
}

func runClassifyStep(ctx context.Context) error {
	gen, err := getModel(ctx)
	if err != nil {
		return err
	}
	classifier := classify.NewClassifier(gen, paths, cfg.BatchSize, cfg.SingleBatch, classify.BotPrefixes(cfg.BotPrefixes), logger)
	return forEachTask(func(t *task.Task, _ models.User) error {
		sum, err := classifier.ClassifyUser(ctx, t)
		if err != nil {
			return err
		}
		if sum.Remaining > 0 {
			logger.Warn("classification incomplete", "user", t.PRUserName, "work", t.Work, "remaining", sum.Remaining)
		}
		return nil
	})
}

// runAggregateStep imports stats for every task whose prerequisites are
// met. Users that are not ready yet are skipped, not failed, so one
// user's stalled classification never blocks the rest of the roster.
func runAggregateStep(ctx context.Context) error {
	aggregator := stats.NewAggregator(dbClient, registry, paths, classify.BotPrefixes(cfg.BotPrefixes), cfg.DeleteArtifacts, logger)
	return forEachTask(func(t *task.Task, u models.User) error {
		if ready, err := aggregator.Ready(t.PRUserName); err != nil {
			return err
		} else if !ready {
			logger.Warn("skipping aggregation, goal mapping incomplete", "user", t.PRUserName, "work", t.Work)
			return nil
		}
		if done, err := task.StageCompleted(paths.ClassifyStatusFile(t.PRUserName, t.Work)); err != nil {
			return err
		} else if !done {
			logger.Warn("skipping aggregation, classification incomplete", "user", t.PRUserName, "work", t.Work)
			return nil
		}
		rows, err := aggregator.Aggregate(ctx, t, u, runID)
		if err != nil {
			return err
		}
		logger.Info("aggregation complete", "user", t.PRUserName, "work", t.Work, "rows", rows)
		return nil
	})
}

// printRunSummary prints the per-step outcome table and the estimated
// LLM spend for this invocation.
func printRunSummary(results []pipeline.Result) {
	if len(results) == 0 {
		return
	}

	fmt.Printf("\nPipeline Summary\n")
	fmt.Printf("═══════════════════════════════════════\n")
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("  ✗ %-10s %8.1fs  %v\n", r.Name, r.Duration.Seconds(), r.Err)
			continue
		}
		fmt.Printf("  ✓ %-10s %8.1fs\n", r.Name, r.Duration.Seconds())
	}
	if cost := collector.EstimatedCostUSD(); cost > 0 {
		fmt.Printf("\nEstimated LLM cost: $%.4f\n", cost)
	}
}
