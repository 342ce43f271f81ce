package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/github"
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/task"
)

// Engine runs the search and detail-download stages for one task at a
// time. Both operations are idempotent: completed work is skipped on
// replay.
type Engine struct {
	client    *github.Client
	registry  *task.Registry
	paths     config.Paths
	org       string
	batchSize int
	logger    *slog.Logger
}

// NewEngine wires the sync engine.
func NewEngine(client *github.Client, registry *task.Registry, paths config.Paths, org string, batchSize int, logger *slog.Logger) *Engine {
	return &Engine{
		client:    client,
		registry:  registry,
		paths:     paths,
		org:       org,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Search finds all PRs for the task's window and persists them as the
// task's search artifact. A task already past this stage is left alone.
func (e *Engine) Search(ctx context.Context, t *task.Task) error {
	if !t.Status.Before(task.StatusSearchDownloaded) {
		e.logger.Debug("search already done", "user", t.PRUserName, "work", t.Work)
		return nil
	}

	if t.Advance(task.StatusInProgress) {
		if err := e.registry.Save(t); err != nil {
			return err
		}
	}

	query := github.SearchQuery(e.org, t.PRUserName, t.Work, t.StartDate, t.EndDate)
	e.logger.Info("searching PRs", "user", t.PRUserName, "work", t.Work, "query", query)

	hits, err := e.client.SearchPRs(ctx, query)
	if err != nil {
		return fmt.Errorf("search for %s/%s: %w", t.PRUserName, t.Work, err)
	}
	sortHits(hits)

	path := e.paths.SearchFile(t.PRUserName, t.Work)
	if err := WriteSearchCSV(path, hits); err != nil {
		return err
	}
	e.logger.Info("search complete", "user", t.PRUserName, "work", t.Work, "hits", len(hits))

	t.Advance(task.StatusSearchDownloaded)
	t.SetCursor(0)
	return e.registry.Save(t)
}

// sortHits puts search results in stable processing order: creation
// date, then owner, repo, PR number.
func sortHits(hits []models.SearchHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		if a.Ref.Owner != b.Ref.Owner {
			return a.Ref.Owner < b.Ref.Owner
		}
		if a.Ref.Repo != b.Ref.Repo {
			return a.Ref.Repo < b.Ref.Repo
		}
		return a.Ref.Number < b.Ref.Number
	})
}
