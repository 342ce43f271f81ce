package config

import (
	"fmt"
	"path/filepath"

	"github.com/falconiq/prsync/internal/models"
)

// Paths computes the on-disk artifact layout. Everything for one user
// and work direction lives under base/<pr_user>/<work>/.
type Paths struct {
	Base string
}

// UserDir returns the artifact directory for one user and direction.
// CostFile holds the cumulative LLM spend record shared by all runs.
func (p Paths) CostFile() string {
	return filepath.Join(p.Base, "costs.json")
}

func (p Paths) UserDir(prUser string, work models.WorkType) string {
	return filepath.Join(p.Base, prUser, string(work))
}

// StatusFile is the durable task record for one user and direction.
func (p Paths) StatusFile(prUser string, work models.WorkType) string {
	return filepath.Join(p.UserDir(prUser, work), "status.json")
}

// SearchFile holds the PR search hits for one user and direction.
func (p Paths) SearchFile(prUser string, work models.WorkType) string {
	return filepath.Join(p.UserDir(prUser, work), "pr_search.csv")
}

// PRDir is the artifact directory for one downloaded PR. Keying by
// owner/repo/number means each PR is fetched at most once, no matter
// how many search windows its hit appears in.
func (p Paths) PRDir(prUser string, work models.WorkType, ref models.PRRef) string {
	return filepath.Join(p.UserDir(prUser, work), ref.Owner, ref.Repo, fmt.Sprintf("pr_%d", ref.Number))
}

// MetaFile holds downloaded PR details.
func (p Paths) MetaFile(prUser string, work models.WorkType, ref models.PRRef) string {
	return filepath.Join(p.PRDir(prUser, work, ref), "meta.csv")
}

// CommentsFile holds downloaded PR comments.
func (p Paths) CommentsFile(prUser string, work models.WorkType, ref models.PRRef) string {
	return filepath.Join(p.PRDir(prUser, work, ref), "comments.csv")
}

// FilesFile holds the changed-file list of one PR.
func (p Paths) FilesFile(prUser string, work models.WorkType, ref models.PRRef) string {
	return filepath.Join(p.PRDir(prUser, work, ref), "files.csv")
}

// OKRFile holds the per-PR goal mappings for one user and direction.
func (p Paths) OKRFile(prUser string, work models.WorkType) string {
	return filepath.Join(p.UserDir(prUser, work), fmt.Sprintf("okrs_%s.csv", prUser))
}

// ExtractedFile is the windowed artifact of comments pulled out of a
// user's downloaded PRs: comments received on authored work, comments
// given on reviewed work.
func (p Paths) ExtractedFile(prUser string, work models.WorkType, start, end string) string {
	kind := "received"
	if work == models.WorkReviewed {
		kind = "given"
	}
	return filepath.Join(p.UserDir(prUser, work), fmt.Sprintf("comments_%s_%s_%s.csv", kind, start, end))
}

// OKRStatusFile is the durable status record for the mapping stage.
func (p Paths) OKRStatusFile(prUser string, work models.WorkType) string {
	return filepath.Join(p.UserDir(prUser, work), "okr_status.json")
}

// ClassifyStatusFile is the durable status record for the classification
// stage, including the remaining-comment count.
func (p Paths) ClassifyStatusFile(prUser string, work models.WorkType) string {
	return filepath.Join(p.UserDir(prUser, work), "classify_status.json")
}

// ImportStatusFile is the durable status record for the aggregation
// stage's store import.
func (p Paths) ImportStatusFile(prUser string, work models.WorkType) string {
	return filepath.Join(p.UserDir(prUser, work), "import_status.json")
}

// ClassifiedFile holds the classifier verdicts for one user and direction.
func (p Paths) ClassifiedFile(prUser string, work models.WorkType) string {
	return filepath.Join(p.UserDir(prUser, work), "classified_comments.csv")
}

// CacheFile stores classification verdicts keyed by comment ID so reruns
// skip already-classified comments.
func (p Paths) CacheFile(prUser string, work models.WorkType) string {
	return filepath.Join(p.UserDir(prUser, work), "classification_cache.json")
}

// IndexFile is the per-run audit index: one row per PR the run touched.
func (p Paths) IndexFile(prUser string, work models.WorkType, runID string) string {
	return filepath.Join(p.UserDir(prUser, work), fmt.Sprintf("index_%s.csv", runID))
}

// FailuresFile collects per-run download failures for later inspection.
func (p Paths) FailuresFile(prUser string, work models.WorkType, runID string) string {
	return filepath.Join(p.UserDir(prUser, work), fmt.Sprintf("failures_%s.csv", runID))
}
