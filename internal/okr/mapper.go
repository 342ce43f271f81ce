package okr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/syncer"
	"github.com/falconiq/prsync/internal/task"
)

// GoalSource provides the goals active at a given date. The database
// client satisfies it.
type GoalSource interface {
	QueryGoalsOverlapping(ctx context.Context, date string) ([]models.Goal, error)
}

// Mapper attributes a user's downloaded PRs to OKR goals or fallback
// buckets and writes the verdicts as a per-user artifact.
type Mapper struct {
	scorer    Scorer
	goals     GoalSource
	paths     config.Paths
	threshold float64
	logger    *slog.Logger
}

// NewMapper builds a mapper. Scores at or above threshold count as a
// goal match.
func NewMapper(scorer Scorer, goals GoalSource, paths config.Paths, threshold float64, logger *slog.Logger) *Mapper {
	return &Mapper{
		scorer:    scorer,
		goals:     goals,
		paths:     paths,
		threshold: threshold,
		logger:    logger,
	}
}

// MapUser maps every downloaded PR of (prUser, work) and writes the
// mapping artifact. A completed mapping is skipped unless force is set.
// PRs whose detail download failed are skipped, not fatal.
func (m *Mapper) MapUser(ctx context.Context, t *task.Task, force bool) error {
	if t.Status.Before(task.StatusDetailsDownloaded) {
		return fmt.Errorf("task %s/%s: details not downloaded yet (status %s)", t.PRUserName, t.Work, t.Status)
	}
	statusPath := m.paths.OKRStatusFile(t.PRUserName, t.Work)
	if !force {
		done, err := task.StageCompleted(statusPath)
		if err != nil {
			return err
		}
		if done {
			if _, err := os.Stat(m.paths.OKRFile(t.PRUserName, t.Work)); err == nil {
				m.logger.Info("goal mapping already complete", "user", t.PRUserName, "work", t.Work)
				return nil
			}
		}
	}

	hits, err := syncer.ReadSearchCSV(m.paths.SearchFile(t.PRUserName, t.Work))
	if err != nil {
		return err
	}

	mappings := make([]models.GoalMapping, 0, len(hits))
	for _, hit := range hits {
		meta, found, err := m.readMeta(t, hit.Ref)
		if err != nil {
			return err
		}
		if !found {
			m.logger.Warn("skipping PR without meta artifact", "user", t.PRUserName, "work", t.Work, "pr", hit.Ref)
			continue
		}
		mapping, err := m.mapOne(ctx, t, hit.Ref, meta)
		if err != nil {
			return fmt.Errorf("mapping %s: %w", meta.Ref, err)
		}
		mappings = append(mappings, mapping)
	}

	if err := syncer.WriteMappingsCSV(m.paths.OKRFile(t.PRUserName, t.Work), mappings); err != nil {
		return err
	}
	st := task.StageStatus{
		PRUserName: t.PRUserName,
		Work:       t.Work,
		Completed:  true,
		Processed:  len(mappings),
		UpdatedAt:  time.Now().UTC(),
	}
	if err := task.WriteRecord(statusPath, &st); err != nil {
		return err
	}
	m.logger.Info("goal mapping complete", "user", t.PRUserName, "work", t.Work, "mapped", len(mappings))
	return nil
}

func (m *Mapper) readMeta(t *task.Task, ref models.PRRef) (models.PullRequestMeta, bool, error) {
	path := m.paths.MetaFile(t.PRUserName, t.Work, ref)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return models.PullRequestMeta{}, false, nil
	}
	meta, err := syncer.ReadMetaCSV(path)
	if err != nil {
		return models.PullRequestMeta{}, false, err
	}
	return meta, true, nil
}

func (m *Mapper) mapOne(ctx context.Context, t *task.Task, ref models.PRRef, meta models.PullRequestMeta) (models.GoalMapping, error) {
	date := dateOf(meta.CreatedAt)
	goals, err := m.goals.QueryGoalsOverlapping(ctx, date)
	if err != nil {
		return models.GoalMapping{}, err
	}
	// Guard against a source returning goals outside the PR's window.
	active := goals[:0:0]
	for _, goal := range goals {
		if goal.Overlaps(date) {
			active = append(active, goal)
		}
	}

	prText := meta.Title
	if meta.Body != "" {
		prText += "\n" + meta.Body
	}

	var best models.Goal
	var bestScore models.ScoreBreakdown
	for _, goal := range active {
		score, err := m.scorer.Score(ctx, prText, goal)
		if err != nil {
			return models.GoalMapping{}, err
		}
		if score.Total > bestScore.Total {
			best = goal
			bestScore = score
		}
	}

	mapping := models.GoalMapping{Ref: meta.Ref, Score: bestScore}
	if len(active) > 0 && bestScore.Total >= m.threshold {
		mapping.Match = models.MatchDirect
		mapping.GoalKey = best.Key
		mapping.GoalTitle = best.Title
		return mapping, nil
	}

	files, err := m.readFiles(t, ref)
	if err != nil {
		return models.GoalMapping{}, err
	}
	mapping.Match = models.MatchFallback
	mapping.Fallback = ClassifyFallback(meta.Title, files)
	return mapping, nil
}

func (m *Mapper) readFiles(t *task.Task, ref models.PRRef) ([]models.FileChange, error) {
	path := m.paths.FilesFile(t.PRUserName, t.Work, ref)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}
	return syncer.ReadFilesCSV(path)
}

// dateOf truncates an ISO timestamp to its date part.
func dateOf(ts string) string {
	if len(ts) > 10 {
		return ts[:10]
	}
	return ts
}
