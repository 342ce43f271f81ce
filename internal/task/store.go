package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/models"
)

// WriteRecord persists v as JSON via write-to-temp-then-rename, so a
// crash mid-write never leaves a half-written record behind.
func WriteRecord(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// ReadRecord loads a JSON record into v. A missing file returns
// found=false. An unparsable file is moved aside with a timestamp
// suffix and also reported as not found, never as a fatal error.
func ReadRecord(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading record %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		backup := fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405"))
		if mvErr := os.Rename(path, backup); mvErr != nil {
			return false, fmt.Errorf("backing up corrupt record %s: %w", path, mvErr)
		}
		slog.Warn("backed up corrupt record", "path", path, "backup", backup, "error", err)
		return false, nil
	}
	return true, nil
}

// Registry reads and writes task records under the artifact tree.
type Registry struct {
	paths config.Paths
}

// NewRegistry creates a registry rooted at the given artifact layout.
func NewRegistry(paths config.Paths) *Registry {
	return &Registry{paths: paths}
}

// CreateOrGet loads the task for (user, work) or creates it at
// not_started with the given window. An existing record keeps its own
// window and progress.
func (r *Registry) CreateOrGet(prUser string, work models.WorkType, startDate, endDate string) (*Task, error) {
	path := r.paths.StatusFile(prUser, work)
	var t Task
	found, err := ReadRecord(path, &t)
	if err != nil {
		return nil, err
	}
	if found && t.Status.Valid() {
		// Older records carry no identity fields.
		t.PRUserName = prUser
		t.Work = work
		return &t, nil
	}
	t = Task{
		PRUserName: prUser,
		Work:       work,
		StartDate:  startDate,
		EndDate:    endDate,
		Status:     StatusNotStarted,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := WriteRecord(path, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Save persists the task record.
func (r *Registry) Save(t *Task) error {
	return WriteRecord(r.paths.StatusFile(t.PRUserName, t.Work), t)
}

// OpenNextWindow replaces a completed task with a fresh one covering the
// follow-up window from NextWindow. The previous window's stage records
// and derived artifacts are removed so every stage runs again for the
// new window; per-PR artifacts and the classification cache are keyed
// independently of the window and stay. Returns ok=false when there is
// no new window to open.
func (r *Registry) OpenNextWindow(prev *Task, today, minStart string) (*Task, bool, error) {
	start, end, ok := NextWindow(prev, today, minStart)
	if !ok {
		return nil, false, nil
	}
	prUser, work := prev.PRUserName, prev.Work
	for _, path := range []string{
		r.paths.OKRStatusFile(prUser, work),
		r.paths.ClassifyStatusFile(prUser, work),
		r.paths.ImportStatusFile(prUser, work),
		r.paths.SearchFile(prUser, work),
		r.paths.OKRFile(prUser, work),
		r.paths.ClassifiedFile(prUser, work),
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, false, fmt.Errorf("clearing %s: %w", path, err)
		}
	}
	t := &Task{
		PRUserName: prUser,
		Work:       work,
		StartDate:  start,
		EndDate:    end,
		Status:     StatusNotStarted,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := r.Save(t); err != nil {
		return nil, false, err
	}
	return t, true, nil
}
