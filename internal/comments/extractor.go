// Package comments pulls review comments out of downloaded PR artifacts
// into per-user, per-window files ready for classification.
package comments

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/syncer"
	"github.com/falconiq/prsync/internal/task"
)

// Extractor combines per-PR comment artifacts into one windowed file
// per user and direction. It is a pure transformation over files
// already on disk and makes no network calls.
type Extractor struct {
	paths  config.Paths
	logger *slog.Logger
}

// NewExtractor builds an extractor over the given artifact layout.
func NewExtractor(paths config.Paths, logger *slog.Logger) *Extractor {
	return &Extractor{paths: paths, logger: logger}
}

// Extract writes the windowed comment artifact for one task. For
// authored work it collects every comment on the user's PRs; for
// reviewed work it keeps only the user's own comments. Existing output
// for the window is left untouched. Returns the number of comments in
// the artifact.
func (e *Extractor) Extract(t *task.Task, user models.User) (int, error) {
	if t.Status.Before(task.StatusDetailsDownloaded) {
		return 0, fmt.Errorf("task %s/%s: details not downloaded yet (status %s)", t.PRUserName, t.Work, t.Status)
	}
	outPath := e.paths.ExtractedFile(t.PRUserName, t.Work, t.StartDate, t.EndDate)
	if _, err := os.Stat(outPath); err == nil {
		existing, err := syncer.ReadCommentsCSV(outPath)
		if err != nil {
			return 0, err
		}
		e.logger.Info("comment artifact already exists", "user", t.PRUserName, "work", t.Work, "comments", len(existing))
		return len(existing), nil
	}

	hits, err := syncer.ReadSearchCSV(e.paths.SearchFile(t.PRUserName, t.Work))
	if err != nil {
		return 0, err
	}

	var extracted []models.Comment
	for _, hit := range hits {
		path := e.paths.CommentsFile(t.PRUserName, t.Work, hit.Ref)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		prComments, err := syncer.ReadCommentsCSV(path)
		if err != nil {
			return 0, err
		}
		for _, c := range prComments {
			if t.Work == models.WorkReviewed && !MatchesHandle(c.Author, user) {
				continue
			}
			extracted = append(extracted, c)
		}
	}

	if err := syncer.WriteCommentsCSV(outPath, extracted); err != nil {
		return 0, err
	}
	e.logger.Info("extracted comments", "user", t.PRUserName, "work", t.Work, "prs", len(hits), "comments", len(extracted))
	return len(extracted), nil
}

// MatchesHandle reports whether a comment author is the given user.
// Authors are matched against the PR handle first and then the bare
// username, so rosters whose organization appends an account suffix
// (pr_user_name "jdoe_acme" for username "jdoe") resolve either form.
func MatchesHandle(author string, u models.User) bool {
	if author == "" {
		return false
	}
	if strings.EqualFold(author, u.PRUserName) {
		return true
	}
	return u.UserName != "" && strings.EqualFold(author, u.UserName)
}
