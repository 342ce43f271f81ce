package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// StatRow is the fully enriched record for one PR and one tracked user,
// as persisted to the pr_stat table.
type StatRow struct {
	ID         surrealmodels.RecordID `json:"id"`
	UserName   string                 `json:"user_name"`
	PRUserName string                 `json:"pr_user_name"`
	Work       WorkType               `json:"work"`
	Ref        PRRef                  `json:"ref"`
	Title      string                 `json:"title"`
	State      string                 `json:"state"`
	Merged     bool                   `json:"merged"`
	CreatedAt  string                 `json:"created_at"`
	ClosedAt   string                 `json:"closed_at,omitempty"`

	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	ChangedFiles int `json:"changed_files"`
	CommitCount  int `json:"commit_count"`

	// Comment tallies, split by surface and by classifier verdict.
	CommentCounts   map[CommentType]int `json:"comment_counts"`
	CategoryCounts  map[Category]int    `json:"category_counts"`
	SeverityCounts  map[Severity]int    `json:"severity_counts"`
	ActionableCount int                 `json:"actionable_count"`

	// OKR attribution, copied from the goal mapping stage.
	Match      MatchType        `json:"match"`
	GoalKey    string           `json:"goal_key,omitempty"`
	Fallback   FallbackCategory `json:"fallback,omitempty"`
	MatchScore float64          `json:"match_score"`

	// IsAIAuthor marks PRs authored by a known bot or agent account.
	IsAIAuthor bool      `json:"is_ai_author"`
	ImportedAt time.Time `json:"imported_at"`
	RunID      string    `json:"run_id"`
}

// CommentDetail is the per-comment record persisted alongside stat rows
// so individual verdicts stay queryable after artifact cleanup.
type CommentDetail struct {
	ID         surrealmodels.RecordID `json:"id"`
	PRUserName string                 `json:"pr_user_name"`
	Ref        PRRef                  `json:"ref"`
	CommentID  string                 `json:"comment_id"`
	Type       CommentType            `json:"type"`
	Author     string                 `json:"author"`
	Category   Category               `json:"category"`
	Severity   Severity               `json:"severity"`
	Actionable bool                   `json:"actionable"`
	Source     string                 `json:"source"`
	CreatedAt  string                 `json:"created_at"`
}
