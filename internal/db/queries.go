// Package db provides SurrealDB query functions for pipeline records.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"

	"github.com/falconiq/prsync/internal/models"
)

// GoalCount pairs a goal key with the number of stat rows attributed to it.
type GoalCount struct {
	GoalKey string `json:"goal_key"`
	Count   int    `json:"count"`
}

// statRowID builds the deterministic record id for one stat row, so
// re-imports update in place instead of duplicating.
func statRowID(row models.StatRow) string {
	return fmt.Sprintf("%s:%s:%s:%s:%d", row.PRUserName, row.Work, row.Ref.Owner, row.Ref.Repo, row.Ref.Number)
}

// QueryUpsertUser writes one roster entry, keyed by PR handle.
func (c *Client) QueryUpsertUser(ctx context.Context, u models.User) error {
	defer c.recordQuery(time.Now())

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("user", $id) SET
			first_name = $first_name,
			last_name = $last_name,
			user_name = $user_name,
			pr_user_name = $pr_user_name
	`, map[string]any{
		"id":           u.PRUserName,
		"first_name":   u.FirstName,
		"last_name":    u.LastName,
		"user_name":    u.UserName,
		"pr_user_name": u.PRUserName,
	})
	if err != nil {
		return fmt.Errorf("upsert user: %w", wrapQueryError(err))
	}
	return nil
}

// QueryListUsers returns the stored roster.
func (c *Client) QueryListUsers(ctx context.Context) ([]models.User, error) {
	defer c.recordQuery(time.Now())

	results, err := surrealdb.Query[[]models.User](ctx, c.db, `
		SELECT first_name, last_name, user_name, pr_user_name FROM user ORDER BY pr_user_name
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.User{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryUpsertGoal writes one OKR goal, keyed by its stable key.
func (c *Client) QueryUpsertGoal(ctx context.Context, g models.Goal) error {
	defer c.recordQuery(time.Now())

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("goal", $id) SET
			key = $key,
			title = $title,
			description = $description,
			category = $category,
			start_date = $start_date,
			end_date = $end_date,
			active = $active
	`, map[string]any{
		"id":          g.Key,
		"key":         g.Key,
		"title":       g.Title,
		"description": g.Description,
		"category":    g.Category,
		"start_date":  g.StartDate,
		"end_date":    g.EndDate,
		"active":      g.Active,
	})
	if err != nil {
		return fmt.Errorf("upsert goal: %w", wrapQueryError(err))
	}
	return nil
}

// QueryGoalsOverlapping returns active goals whose window contains the
// given YYYY-MM-DD date, ordered by start date.
func (c *Client) QueryGoalsOverlapping(ctx context.Context, date string) ([]models.Goal, error) {
	defer c.recordQuery(time.Now())

	results, err := surrealdb.Query[[]models.Goal](ctx, c.db, `
		SELECT * FROM goal
		WHERE active AND start_date <= $date AND end_date >= $date
		ORDER BY start_date
	`, map[string]any{"date": date})
	if err != nil {
		return nil, fmt.Errorf("goals overlapping %s: %w", date, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.Goal{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryListGoals returns every goal ordered by start date.
func (c *Client) QueryListGoals(ctx context.Context) ([]models.Goal, error) {
	defer c.recordQuery(time.Now())

	results, err := surrealdb.Query[[]models.Goal](ctx, c.db, `
		SELECT * FROM goal ORDER BY start_date
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.Goal{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryUpsertStatRow writes one enriched PR row. The record id derives
// from (user, work, owner, repo, number), so repeated imports of the same
// artifact overwrite rather than duplicate. Returns whether the row was
// newly created.
func (c *Client) QueryUpsertStatRow(ctx context.Context, row models.StatRow) (bool, error) {
	defer c.recordQuery(time.Now())

	id := statRowID(row)
	existsResult, err := surrealdb.Query[[]struct{ C int }](ctx, c.db,
		`SELECT count() AS c FROM type::record("pr_stat", $id)`,
		map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("check stat row exists: %w", wrapQueryError(err))
	}
	wasCreated := true
	if existsResult != nil && len(*existsResult) > 0 && len((*existsResult)[0].Result) > 0 {
		wasCreated = (*existsResult)[0].Result[0].C == 0
	}

	_, err = surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("pr_stat", $id) SET
			user_name = $user_name,
			pr_user_name = $pr_user_name,
			work = $work,
			ref = $ref,
			title = $title,
			state = $state,
			merged = $merged,
			created_at = $created_at,
			closed_at = $closed_at,
			additions = $additions,
			deletions = $deletions,
			changed_files = $changed_files,
			commit_count = $commit_count,
			comment_counts = $comment_counts,
			category_counts = $category_counts,
			severity_counts = $severity_counts,
			actionable_count = $actionable_count,
			match = $match,
			goal_key = $goal_key,
			fallback = $fallback,
			match_score = $match_score,
			is_ai_author = $is_ai_author,
			imported_at = time::now(),
			run_id = $run_id
	`, map[string]any{
		"id":               id,
		"user_name":        row.UserName,
		"pr_user_name":     row.PRUserName,
		"work":             row.Work,
		"ref":              row.Ref,
		"title":            row.Title,
		"state":            row.State,
		"merged":           row.Merged,
		"created_at":       row.CreatedAt,
		"closed_at":        optional(row.ClosedAt),
		"additions":        row.Additions,
		"deletions":        row.Deletions,
		"changed_files":    row.ChangedFiles,
		"commit_count":     row.CommitCount,
		"comment_counts":   row.CommentCounts,
		"category_counts":  row.CategoryCounts,
		"severity_counts":  row.SeverityCounts,
		"actionable_count": row.ActionableCount,
		"match":            row.Match,
		"goal_key":         optional(row.GoalKey),
		"fallback":         optional(string(row.Fallback)),
		"match_score":      row.MatchScore,
		"is_ai_author":     row.IsAIAuthor,
		"run_id":           row.RunID,
	})
	if err != nil {
		return false, fmt.Errorf("upsert stat row: %w", wrapQueryError(err))
	}
	return wasCreated, nil
}

// QueryUpsertCommentDetail writes one per-comment verdict, keyed by
// (user, comment id).
func (c *Client) QueryUpsertCommentDetail(ctx context.Context, d models.CommentDetail) error {
	defer c.recordQuery(time.Now())

	_, err := surrealdb.Query[any](ctx, c.db, `
		UPSERT type::record("pr_comment_detail", $id) SET
			pr_user_name = $pr_user_name,
			ref = $ref,
			comment_id = $comment_id,
			type = $type,
			author = $author,
			category = $category,
			severity = $severity,
			actionable = $actionable,
			source = $source,
			created_at = $created_at
	`, map[string]any{
		"id":           fmt.Sprintf("%s:%s", d.PRUserName, d.CommentID),
		"pr_user_name": d.PRUserName,
		"ref":          d.Ref,
		"comment_id":   d.CommentID,
		"type":         d.Type,
		"author":       d.Author,
		"category":     d.Category,
		"severity":     d.Severity,
		"actionable":   d.Actionable,
		"source":       d.Source,
		"created_at":   d.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("upsert comment detail: %w", wrapQueryError(err))
	}
	return nil
}

// QueryStatsForUser returns every stored stat row for a PR handle.
func (c *Client) QueryStatsForUser(ctx context.Context, prUser string) ([]models.StatRow, error) {
	defer c.recordQuery(time.Now())

	results, err := surrealdb.Query[[]models.StatRow](ctx, c.db, `
		SELECT * FROM pr_stat WHERE pr_user_name = $user ORDER BY created_at
	`, map[string]any{"user": prUser})
	if err != nil {
		return nil, fmt.Errorf("stats for %s: %w", prUser, wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []models.StatRow{}, nil
	}
	return (*results)[0].Result, nil
}

// QueryGoalAttribution tallies stat rows per goal key, most-attributed
// first. Fallback rows are excluded.
func (c *Client) QueryGoalAttribution(ctx context.Context) ([]GoalCount, error) {
	defer c.recordQuery(time.Now())

	results, err := surrealdb.Query[[]GoalCount](ctx, c.db, `
		SELECT goal_key, count() AS count FROM pr_stat
		WHERE goal_key != NONE
		GROUP BY goal_key
		ORDER BY count DESC
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("goal attribution: %w", wrapQueryError(err))
	}
	if results == nil || len(*results) == 0 {
		return []GoalCount{}, nil
	}
	return (*results)[0].Result, nil
}

// optional maps "" to nil so option<string> fields store NONE instead of
// an empty string.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
