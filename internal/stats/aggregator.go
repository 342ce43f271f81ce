// Package stats joins downloaded PR artifacts, goal mappings, and
// classifier verdicts into durable per-PR stat rows.
package stats

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/falconiq/prsync/internal/classify"
	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/syncer"
	"github.com/falconiq/prsync/internal/task"
)

// Store is the slice of the database layer the aggregator writes to.
type Store interface {
	QueryUpsertStatRow(ctx context.Context, row models.StatRow) (bool, error)
	QueryUpsertCommentDetail(ctx context.Context, d models.CommentDetail) error
}

// Aggregator imports one task's enriched PR data into the store. The
// import status record makes a half-finished import retry instead of
// duplicating rows; the row upserts themselves are idempotent.
type Aggregator struct {
	store           Store
	registry        *task.Registry
	paths           config.Paths
	isBot           classify.BotPredicate
	deleteArtifacts bool
	logger          *slog.Logger
}

// NewAggregator builds an aggregator. isBot marks PR authors as AI
// accounts on the stat rows; deleteArtifacts removes per-PR CSVs after
// a successful import.
func NewAggregator(store Store, registry *task.Registry, paths config.Paths, isBot classify.BotPredicate, deleteArtifacts bool, logger *slog.Logger) *Aggregator {
	if isBot == nil {
		isBot = func(string) bool { return false }
	}
	return &Aggregator{
		store:           store,
		registry:        registry,
		paths:           paths,
		isBot:           isBot,
		deleteArtifacts: deleteArtifacts,
		logger:          logger,
	}
}

// Ready reports whether a user's stats can be imported: goal mapping
// must be complete for both work directions so rows are not written
// with half of the attribution missing.
func (a *Aggregator) Ready(prUser string) (bool, error) {
	for _, work := range models.WorkTypes {
		done, err := task.StageCompleted(a.paths.OKRStatusFile(prUser, work))
		if err != nil {
			return false, err
		}
		if !done {
			return false, nil
		}
	}
	return true, nil
}

// Aggregate joins and imports the stat rows for one task. Returns the
// number of PRs imported. An already-imported task is a no-op.
func (a *Aggregator) Aggregate(ctx context.Context, t *task.Task, user models.User, runID string) (int, error) {
	if t.Status.Before(task.StatusDetailsDownloaded) {
		return 0, fmt.Errorf("task %s/%s: details not downloaded yet (status %s)", t.PRUserName, t.Work, t.Status)
	}
	if ready, err := a.Ready(t.PRUserName); err != nil {
		return 0, err
	} else if !ready {
		return 0, fmt.Errorf("task %s/%s: goal mapping not complete for both directions", t.PRUserName, t.Work)
	}
	if done, err := task.StageCompleted(a.paths.ClassifyStatusFile(t.PRUserName, t.Work)); err != nil {
		return 0, err
	} else if !done {
		return 0, fmt.Errorf("task %s/%s: classification not complete", t.PRUserName, t.Work)
	}
	statusPath := a.paths.ImportStatusFile(t.PRUserName, t.Work)
	if done, err := task.StageCompleted(statusPath); err != nil {
		return 0, err
	} else if done {
		a.logger.Info("stats already imported", "user", t.PRUserName, "work", t.Work)
		return 0, nil
	}

	hits, err := syncer.ReadSearchCSV(a.paths.SearchFile(t.PRUserName, t.Work))
	if err != nil {
		return 0, err
	}
	mappings, err := a.mappingsByRef(t)
	if err != nil {
		return 0, err
	}
	verdicts, err := a.verdictsByID(t)
	if err != nil {
		return 0, err
	}
	extracted, err := syncer.ReadCommentsCSV(a.paths.ExtractedFile(t.PRUserName, t.Work, t.StartDate, t.EndDate))
	if err != nil {
		return 0, err
	}
	commentsByRef := make(map[models.PRRef][]models.Comment)
	for _, c := range extracted {
		commentsByRef[c.Ref] = append(commentsByRef[c.Ref], c)
	}

	imported := 0
	for _, hit := range hits {
		metaPath := a.paths.MetaFile(t.PRUserName, t.Work, hit.Ref)
		if _, err := os.Stat(metaPath); os.IsNotExist(err) {
			continue
		}
		meta, err := syncer.ReadMetaCSV(metaPath)
		if err != nil {
			return imported, err
		}
		statRow := a.buildRow(t, user, meta, mappings[meta.Ref], commentsByRef[meta.Ref], verdicts, runID)
		if _, err := a.store.QueryUpsertStatRow(ctx, statRow); err != nil {
			return imported, fmt.Errorf("importing %s: %w", meta.Ref, err)
		}
		for _, c := range commentsByRef[meta.Ref] {
			detail := commentDetail(t, c, verdicts[c.ID])
			if err := a.store.QueryUpsertCommentDetail(ctx, detail); err != nil {
				return imported, fmt.Errorf("importing comment %s: %w", c.ID, err)
			}
		}
		imported++
	}

	st := task.StageStatus{
		PRUserName: t.PRUserName,
		Work:       t.Work,
		Completed:  true,
		Processed:  imported,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := task.WriteRecord(statusPath, &st); err != nil {
		return imported, err
	}
	if t.Advance(task.StatusCompleted) {
		if err := a.registry.Save(t); err != nil {
			return imported, err
		}
	}
	if a.deleteArtifacts {
		a.cleanup(t, hits)
	}
	a.logger.Info("stats imported", "user", t.PRUserName, "work", t.Work, "prs", imported, "run_id", runID)
	return imported, nil
}

func (a *Aggregator) mappingsByRef(t *task.Task) (map[models.PRRef]models.GoalMapping, error) {
	list, err := syncer.ReadMappingsCSV(a.paths.OKRFile(t.PRUserName, t.Work))
	if err != nil {
		return nil, err
	}
	byRef := make(map[models.PRRef]models.GoalMapping, len(list))
	for _, m := range list {
		byRef[m.Ref] = m
	}
	return byRef, nil
}

func (a *Aggregator) verdictsByID(t *task.Task) (map[string]models.Classification, error) {
	list, err := syncer.ReadClassifiedCSV(a.paths.ClassifiedFile(t.PRUserName, t.Work))
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Classification, len(list))
	for _, v := range list {
		byID[v.CommentID] = v
	}
	return byID, nil
}

func (a *Aggregator) buildRow(t *task.Task, user models.User, meta models.PullRequestMeta, mapping models.GoalMapping, comments []models.Comment, verdicts map[string]models.Classification, runID string) models.StatRow {
	row := models.StatRow{
		UserName:     user.UserName,
		PRUserName:   t.PRUserName,
		Work:         t.Work,
		Ref:          meta.Ref,
		Title:        meta.Title,
		State:        meta.State,
		Merged:       meta.Merged,
		CreatedAt:    meta.CreatedAt,
		ClosedAt:     meta.ClosedAt,
		Additions:    meta.Additions,
		Deletions:    meta.Deletions,
		ChangedFiles: meta.ChangedFiles,
		CommitCount:  meta.CommitCount,

		CommentCounts:  make(map[models.CommentType]int),
		CategoryCounts: make(map[models.Category]int),
		SeverityCounts: make(map[models.Severity]int),

		Match:      mapping.Match,
		GoalKey:    mapping.GoalKey,
		Fallback:   mapping.Fallback,
		MatchScore: mapping.Score.Total,

		IsAIAuthor: a.isBot(meta.Author),
		RunID:      runID,
	}
	for _, c := range comments {
		row.CommentCounts[c.Type]++
		v, ok := verdicts[c.ID]
		if !ok {
			continue
		}
		row.CategoryCounts[v.Category]++
		row.SeverityCounts[v.Severity]++
		if v.Actionable {
			row.ActionableCount++
		}
	}
	return row
}

func commentDetail(t *task.Task, c models.Comment, v models.Classification) models.CommentDetail {
	return models.CommentDetail{
		PRUserName: t.PRUserName,
		Ref:        c.Ref,
		CommentID:  c.ID,
		Type:       c.Type,
		Author:     c.Author,
		Category:   v.Category,
		Severity:   v.Severity,
		Actionable: v.Actionable,
		Source:     v.Source,
		CreatedAt:  c.CreatedAt,
	}
}

// cleanup removes the per-PR detail artifacts once their content lives
// in the store. Status records and windowed artifacts stay.
func (a *Aggregator) cleanup(t *task.Task, hits []models.SearchHit) {
	for _, hit := range hits {
		dir := a.paths.PRDir(t.PRUserName, t.Work, hit.Ref)
		if err := os.RemoveAll(dir); err != nil {
			a.logger.Warn("could not delete artifact", "path", dir, "error", err)
		}
	}
}
