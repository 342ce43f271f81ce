// Package syncer implements the PR search and detail-download stages.
package syncer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/falconiq/prsync/internal/models"
)

// IndexRow records the final state of one PR in a download run.
type IndexRow struct {
	Ref   models.PRRef
	State string // "downloaded", "skipped", "failed"
}

// Failure records one PR that could not be downloaded after retries.
type Failure struct {
	Ref   models.PRRef
	URL   string
	Error string
}

var searchHeader = []string{"owner", "repo", "number", "title", "url", "state", "created_at", "closed_at", "author"}

// writeCSV writes rows atomically: temp file in the same directory,
// then rename over the target.
func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating %s: %w", tmp, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("writing header to %s: %w", tmp, err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("writing rows to %s: %w", tmp, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flushing %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// readCSV loads a CSV file and returns its data rows, header excluded.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

// WriteSearchCSV persists search hits in processing order.
func WriteSearchCSV(path string, hits []models.SearchHit) error {
	rows := make([][]string, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, []string{
			h.Ref.Owner, h.Ref.Repo, strconv.Itoa(h.Ref.Number),
			h.Title, h.URL, h.State, h.CreatedAt, h.ClosedAt, h.Author,
		})
	}
	return writeCSV(path, searchHeader, rows)
}

// ReadSearchCSV loads the persisted search hits.
func ReadSearchCSV(path string) ([]models.SearchHit, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	hits := make([]models.SearchHit, 0, len(rows))
	for i, row := range rows {
		if len(row) < 9 {
			return nil, fmt.Errorf("%s row %d: expected 9 columns, got %d", path, i+1, len(row))
		}
		number, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad PR number %q", path, i+1, row[2])
		}
		hits = append(hits, models.SearchHit{
			Ref:       models.PRRef{Owner: row[0], Repo: row[1], Number: number},
			Title:     row[3],
			URL:       row[4],
			State:     row[5],
			CreatedAt: row[6],
			ClosedAt:  row[7],
			Author:    row[8],
		})
	}
	return hits, nil
}

// WriteMetaCSV persists one PR's metadata as a single-row table.
func WriteMetaCSV(path string, meta models.PullRequestMeta) error {
	header := []string{
		"owner", "repo", "number", "title", "body", "state", "merged",
		"created_at", "merged_at", "closed_at", "author",
		"additions", "deletions", "changed_files", "commit_count",
	}
	row := []string{
		meta.Ref.Owner, meta.Ref.Repo, strconv.Itoa(meta.Ref.Number),
		meta.Title, meta.Body, meta.State, strconv.FormatBool(meta.Merged),
		meta.CreatedAt, meta.MergedAt, meta.ClosedAt, meta.Author,
		strconv.Itoa(meta.Additions), strconv.Itoa(meta.Deletions),
		strconv.Itoa(meta.ChangedFiles), strconv.Itoa(meta.CommitCount),
	}
	return writeCSV(path, header, [][]string{row})
}

// ReadMetaCSV loads one PR's metadata.
func ReadMetaCSV(path string) (models.PullRequestMeta, error) {
	rows, err := readCSV(path)
	if err != nil {
		return models.PullRequestMeta{}, err
	}
	if len(rows) != 1 || len(rows[0]) < 15 {
		return models.PullRequestMeta{}, fmt.Errorf("%s: expected a single 15-column row", path)
	}
	row := rows[0]
	number, _ := strconv.Atoi(row[2])
	merged, _ := strconv.ParseBool(row[6])
	additions, _ := strconv.Atoi(row[11])
	deletions, _ := strconv.Atoi(row[12])
	changedFiles, _ := strconv.Atoi(row[13])
	commitCount, _ := strconv.Atoi(row[14])
	return models.PullRequestMeta{
		Ref:          models.PRRef{Owner: row[0], Repo: row[1], Number: number},
		Title:        row[3],
		Body:         row[4],
		State:        row[5],
		Merged:       merged,
		CreatedAt:    row[7],
		MergedAt:     row[8],
		ClosedAt:     row[9],
		Author:       row[10],
		Additions:    additions,
		Deletions:    deletions,
		ChangedFiles: changedFiles,
		CommitCount:  commitCount,
	}, nil
}

// WriteCommentsCSV persists a PR's comments, all three kinds unified.
func WriteCommentsCSV(path string, comments []models.Comment) error {
	header := []string{"comment_id", "owner", "repo", "number", "type", "author", "created_at", "review_state", "path", "body"}
	rows := make([][]string, 0, len(comments))
	for _, c := range comments {
		rows = append(rows, []string{
			c.ID, c.Ref.Owner, c.Ref.Repo, strconv.Itoa(c.Ref.Number),
			string(c.Type), c.Author, c.CreatedAt, c.ReviewState, c.Path, c.Body,
		})
	}
	return writeCSV(path, header, rows)
}

// ReadCommentsCSV loads a PR's comments.
func ReadCommentsCSV(path string) ([]models.Comment, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	comments := make([]models.Comment, 0, len(rows))
	for i, row := range rows {
		if len(row) < 10 {
			return nil, fmt.Errorf("%s row %d: expected 10 columns, got %d", path, i+1, len(row))
		}
		number, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad PR number %q", path, i+1, row[3])
		}
		comments = append(comments, models.Comment{
			ID:          row[0],
			Ref:         models.PRRef{Owner: row[1], Repo: row[2], Number: number},
			Type:        models.CommentType(row[4]),
			Author:      row[5],
			CreatedAt:   row[6],
			ReviewState: row[7],
			Path:        row[8],
			Body:        row[9],
		})
	}
	return comments, nil
}

// WriteFilesCSV persists a PR's changed-file list.
func WriteFilesCSV(path string, files []models.FileChange) error {
	header := []string{"filename", "status", "additions", "deletions", "changes"}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{
			f.Filename, f.Status, strconv.Itoa(f.Additions), strconv.Itoa(f.Deletions), strconv.Itoa(f.Changes),
		})
	}
	return writeCSV(path, header, rows)
}

// ReadFilesCSV loads a PR's changed-file list.
func ReadFilesCSV(path string) ([]models.FileChange, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	files := make([]models.FileChange, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("%s row %d: expected 5 columns, got %d", path, i+1, len(row))
		}
		additions, _ := strconv.Atoi(row[2])
		deletions, _ := strconv.Atoi(row[3])
		changes, _ := strconv.Atoi(row[4])
		files = append(files, models.FileChange{
			Filename:  row[0],
			Status:    row[1],
			Additions: additions,
			Deletions: deletions,
			Changes:   changes,
		})
	}
	return files, nil
}

// WriteMappingsCSV persists the goal attribution verdicts for a user's
// PR set.
func WriteMappingsCSV(path string, mappings []models.GoalMapping) error {
	header := []string{
		"owner", "repo", "number", "match", "goal_key", "goal_title", "fallback",
		"score_semantic", "score_lexical", "score_acronym", "score_total",
	}
	rows := make([][]string, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, []string{
			m.Ref.Owner, m.Ref.Repo, strconv.Itoa(m.Ref.Number),
			string(m.Match), m.GoalKey, m.GoalTitle, string(m.Fallback),
			formatScore(m.Score.Semantic), formatScore(m.Score.Lexical),
			formatScore(m.Score.Acronym), formatScore(m.Score.Total),
		})
	}
	return writeCSV(path, header, rows)
}

// ReadMappingsCSV loads a user's goal attribution artifact.
func ReadMappingsCSV(path string) ([]models.GoalMapping, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	mappings := make([]models.GoalMapping, 0, len(rows))
	for i, row := range rows {
		if len(row) < 11 {
			return nil, fmt.Errorf("%s row %d: expected 11 columns, got %d", path, i+1, len(row))
		}
		number, err := strconv.Atoi(row[2])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: bad number %q", path, i+1, row[2])
		}
		mappings = append(mappings, models.GoalMapping{
			Ref:       models.PRRef{Owner: row[0], Repo: row[1], Number: number},
			Match:     models.MatchType(row[3]),
			GoalKey:   row[4],
			GoalTitle: row[5],
			Fallback:  models.FallbackCategory(row[6]),
			Score: models.ScoreBreakdown{
				Semantic: parseScore(row[7]),
				Lexical:  parseScore(row[8]),
				Acronym:  parseScore(row[9]),
				Total:    parseScore(row[10]),
			},
		})
	}
	return mappings, nil
}

// WriteClassifiedCSV persists classifier verdicts for a user's comment
// set. Multi-valued columns are pipe-separated.
func WriteClassifiedCSV(path string, verdicts []models.Classification) error {
	header := []string{
		"comment_id", "category", "secondary_categories", "severity",
		"actionable", "signals", "rationale", "source",
	}
	rows := make([][]string, 0, len(verdicts))
	for _, v := range verdicts {
		secondary := make([]string, 0, len(v.SecondaryCategories))
		for _, c := range v.SecondaryCategories {
			secondary = append(secondary, string(c))
		}
		rows = append(rows, []string{
			v.CommentID, string(v.Category), strings.Join(secondary, "|"),
			string(v.Severity), strconv.FormatBool(v.Actionable),
			strings.Join(v.Signals, "|"), v.Rationale, v.Source,
		})
	}
	return writeCSV(path, header, rows)
}

// ReadClassifiedCSV loads a user's classifier verdict artifact.
func ReadClassifiedCSV(path string) ([]models.Classification, error) {
	rows, err := readCSV(path)
	if err != nil {
		return nil, err
	}
	verdicts := make([]models.Classification, 0, len(rows))
	for i, row := range rows {
		if len(row) < 8 {
			return nil, fmt.Errorf("%s row %d: expected 8 columns, got %d", path, i+1, len(row))
		}
		var secondary []models.Category
		for _, c := range splitPiped(row[2]) {
			secondary = append(secondary, models.Category(c))
		}
		actionable, _ := strconv.ParseBool(row[4])
		verdicts = append(verdicts, models.Classification{
			CommentID:           row[0],
			Category:            models.Category(row[1]),
			SecondaryCategories: secondary,
			Severity:            models.Severity(row[3]),
			Actionable:          actionable,
			Signals:             splitPiped(row[5]),
			Rationale:           row[6],
			Source:              row[7],
		})
	}
	return verdicts, nil
}

func splitPiped(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "|")
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

func parseScore(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// WriteIndexCSV persists the per-run audit index, one row per PR seen.
func WriteIndexCSV(path string, rows []IndexRow) error {
	header := []string{"owner", "repo", "number", "state"}
	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{r.Ref.Owner, r.Ref.Repo, strconv.Itoa(r.Ref.Number), r.State})
	}
	return writeCSV(path, header, data)
}

// WriteFailuresCSV persists the per-run failure list.
func WriteFailuresCSV(path string, failures []Failure) error {
	header := []string{"owner", "repo", "number", "url", "error"}
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.Ref.Owner, f.Ref.Repo, strconv.Itoa(f.Ref.Number), f.URL, f.Error})
	}
	return writeCSV(path, header, rows)
}
