package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/llm"
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/task"
)

const testRoster = `users:
  - first_name: Jane
    last_name: Doe
    user_name: jdoe
    pr_user_name: jdoe_acme
  - first_name: Arun
    last_name: Lee
    user_name: alee
    pr_user_name: alee_acme
`

// setupRunGlobals points the package wiring at a temp tree for the
// duration of one test.
func setupRunGlobals(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	rosterPath := filepath.Join(dir, "users.yaml")
	require.NoError(t, os.WriteFile(rosterPath, []byte(testRoster), 0644))

	prevCfg, prevPaths, prevRegistry, prevLogger := cfg, paths, registry, logger
	t.Cleanup(func() {
		cfg, paths, registry, logger = prevCfg, prevPaths, prevRegistry, prevLogger
	})
	cfg = config.Config{RosterFile: rosterPath, StartDate: "2025-11-01", EndDate: "2025-11-30"}
	paths = config.Paths{Base: dir}
	registry = task.NewRegistry(paths)
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestForEachTaskContinuesPastFailingTask(t *testing.T) {
	setupRunGlobals(t)

	visited := 0
	err := forEachTask(func(tk *task.Task, u models.User) error {
		visited++
		if u.PRUserName == "jdoe_acme" {
			return errors.New("search result cap exceeded")
		}
		return nil
	})
	require.NoError(t, err, "one broken task must not abort the roster")
	assert.Equal(t, 4, visited, "both directions of both users still run")
}

func TestForEachTaskStopsOnFatalErrors(t *testing.T) {
	setupRunGlobals(t)

	tests := []struct {
		name string
		err  error
	}{
		{"cancellation", context.Canceled},
		{"deadline", context.DeadlineExceeded},
		{"fatal llm api error", llm.ErrFatalAPI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visited := 0
			err := forEachTask(func(tk *task.Task, u models.User) error {
				visited++
				return tt.err
			})
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, visited, "remaining tasks are doomed too, stop immediately")
		})
	}
}
