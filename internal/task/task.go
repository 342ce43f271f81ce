// Package task tracks per-user, per-work-type sync progress as a small
// durable state machine.
package task

import (
	"fmt"
	"time"

	"github.com/falconiq/prsync/internal/models"
)

// Status is the closed set of task states. Transitions are linear and
// forward-only.
type Status string

const (
	StatusNotStarted        Status = "not_started"
	StatusInProgress        Status = "in_progress"
	StatusSearchDownloaded  Status = "pr-search-file-downloaded"
	StatusDetailsDownloaded Status = "pr-details-downloaded"
	StatusCompleted         Status = "completed"
)

var statusRank = map[Status]int{
	StatusNotStarted:        0,
	StatusInProgress:        1,
	StatusSearchDownloaded:  2,
	StatusDetailsDownloaded: 3,
	StatusCompleted:         4,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Before reports whether s precedes other in the state machine.
func (s Status) Before(other Status) bool {
	return statusRank[s] < statusRank[other]
}

// Task is one unit of sync work: a user, a direction, and a date window.
type Task struct {
	PRUserName string          `json:"pr_user_name"`
	Work       models.WorkType `json:"work"`
	StartDate  string          `json:"start_date"`
	EndDate    string          `json:"end_date"`
	Status     Status          `json:"status"`
	CurrentRow int             `json:"current_row"`
	UpdatedAt  time.Time       `json:"updated_at,omitempty"`
}

// Advance moves the task to next if next is strictly later in the state
// machine. Setting an earlier or equal status is a no-op, so replayed
// stages can't move a task backwards.
func (t *Task) Advance(next Status) bool {
	if !next.Valid() || !t.Status.Before(next) {
		return false
	}
	t.Status = next
	t.UpdatedAt = time.Now().UTC()
	return true
}

// SetCursor records batch progress through the search artifact.
func (t *Task) SetCursor(row int) {
	t.CurrentRow = row
	t.UpdatedAt = time.Now().UTC()
}

// NextWindow derives the date window for a follow-up task from a
// completed predecessor. Incremental runs continue the day after the
// previous end date; lowering minStart below the previous window forces
// a backfill from minStart. Returns ok=false when there is nothing new
// to sync.
func NextWindow(prev *Task, today, minStart string) (start, end string, ok bool) {
	if prev == nil {
		if minStart == "" || minStart > today {
			return "", "", false
		}
		return minStart, today, true
	}
	if prev.Status != StatusCompleted {
		return "", "", false
	}
	if minStart != "" && minStart < prev.StartDate {
		return minStart, today, true
	}
	next, err := nextDay(prev.EndDate)
	if err != nil || next > today {
		return "", "", false
	}
	return next, today, true
}

func nextDay(date string) (string, error) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return "", fmt.Errorf("bad date %q: %w", date, err)
	}
	return d.AddDate(0, 0, 1).Format("2006-01-02"), nil
}
