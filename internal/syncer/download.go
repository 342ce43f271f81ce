package syncer

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/falconiq/prsync/internal/github"
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/task"
)

// Download processes up to batchSize PRs from the task's cursor,
// fetching metadata, comments, and files for each. The cursor advances
// after every PR (downloaded, skipped, or failed), so an interrupted run
// resumes at the last unfinished PR. A single failing PR is recorded
// and skipped, never fatal for the batch.
func (e *Engine) Download(ctx context.Context, t *task.Task, runID string) error {
	if !t.Status.Before(task.StatusDetailsDownloaded) {
		e.logger.Debug("download already done", "user", t.PRUserName, "work", t.Work)
		return nil
	}
	if t.Status.Before(task.StatusSearchDownloaded) {
		return fmt.Errorf("task %s/%s has no search artifact yet (status %s)", t.PRUserName, t.Work, t.Status)
	}

	hits, err := ReadSearchCSV(e.paths.SearchFile(t.PRUserName, t.Work))
	if err != nil {
		return err
	}

	var index []IndexRow
	var failures []Failure
	processed := 0

	for t.CurrentRow < len(hits) && processed < e.batchSize {
		row := t.CurrentRow
		hit := hits[row]

		if e.artifactsExist(t, hit.Ref) {
			index = append(index, IndexRow{Ref: hit.Ref, State: "skipped"})
		} else if err := e.downloadOne(ctx, t, hit.Ref); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.logger.Error("PR download failed", "ref", hit.Ref.String(), "error", err)
			failures = append(failures, Failure{Ref: hit.Ref, URL: hit.URL, Error: err.Error()})
			index = append(index, IndexRow{Ref: hit.Ref, State: "failed"})
		} else {
			e.logger.Info("PR downloaded", "ref", hit.Ref.String(), "row", row)
			index = append(index, IndexRow{Ref: hit.Ref, State: "downloaded"})
		}

		processed++
		t.SetCursor(row + 1)
		if err := e.registry.Save(t); err != nil {
			return err
		}
	}

	if len(index) > 0 {
		if err := WriteIndexCSV(e.paths.IndexFile(t.PRUserName, t.Work, runID), index); err != nil {
			return err
		}
	}
	if len(failures) > 0 {
		if err := WriteFailuresCSV(e.paths.FailuresFile(t.PRUserName, t.Work, runID), failures); err != nil {
			return err
		}
	}

	if t.CurrentRow >= len(hits) {
		t.Advance(task.StatusDetailsDownloaded)
		if err := e.registry.Save(t); err != nil {
			return err
		}
		e.logger.Info("download complete", "user", t.PRUserName, "work", t.Work, "total", len(hits), "failed", len(failures))
	}
	return nil
}

// artifactsExist reports whether all three per-PR artifacts are already
// on disk, making a re-fetch unnecessary.
func (e *Engine) artifactsExist(t *task.Task, ref models.PRRef) bool {
	for _, path := range []string{
		e.paths.MetaFile(t.PRUserName, t.Work, ref),
		e.paths.CommentsFile(t.PRUserName, t.Work, ref),
		e.paths.FilesFile(t.PRUserName, t.Work, ref),
	} {
		if _, err := os.Stat(path); err != nil {
			return false
		}
	}
	return true
}

// downloadOne fetches every artifact for one PR.
func (e *Engine) downloadOne(ctx context.Context, t *task.Task, ref models.PRRef) error {
	meta, err := e.client.PullRequest(ctx, ref)
	if err != nil {
		if errors.Is(err, github.ErrNotFound) {
			return fmt.Errorf("PR vanished: %w", err)
		}
		return err
	}
	comments, err := e.client.Comments(ctx, ref)
	if err != nil {
		return err
	}
	files, err := e.client.Files(ctx, ref)
	if err != nil {
		return err
	}

	if err := WriteMetaCSV(e.paths.MetaFile(t.PRUserName, t.Work, ref), meta); err != nil {
		return err
	}
	if err := WriteCommentsCSV(e.paths.CommentsFile(t.PRUserName, t.Work, ref), comments); err != nil {
		return err
	}
	return WriteFilesCSV(e.paths.FilesFile(t.PRUserName, t.Work, ref), files)
}
