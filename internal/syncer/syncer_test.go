package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/github"
	"github.com/falconiq/prsync/internal/metrics"
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/task"
)

type fixture struct {
	engine   *Engine
	registry *task.Registry
	paths    config.Paths
	requests *atomic.Int64
}

// newFixture wires an engine against a stub API serving `total` PRs,
// with one PR number per search row.
func newFixture(t *testing.T, total, batchSize int, fail map[int]bool) *fixture {
	t.Helper()
	var requests atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var items []string
		// Served in reverse order so the engine has to sort.
		for i := total; i >= 1; i-- {
			items = append(items, fmt.Sprintf(`{"number": %d, "title": "pr %d", "state": "closed",
				"created_at": "2025-11-%02dT00:00:00Z", "user": {"login": "jdoe"},
				"repository_url": "https://api.github.com/repos/acme/widgets"}`, i, i, i))
		}
		fmt.Fprintf(w, `{"total_count": %d, "items": [%s]}`, total, strings.Join(items, ","))
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var number int
		fmt.Sscanf(r.URL.Path, "/repos/acme/widgets/pulls/%d", &number)
		if fail[number] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch {
		case strings.HasSuffix(r.URL.Path, "/comments"):
			fmt.Fprintf(w, `[{"id": %d, "user": {"login": "alee"}, "body": "tighten this", "path": "a.go", "created_at": "2025-11-10T00:00:00Z"}]`, number*10)
		case strings.HasSuffix(r.URL.Path, "/reviews"):
			fmt.Fprint(w, `[]`)
		case strings.HasSuffix(r.URL.Path, "/files"):
			fmt.Fprint(w, `[{"filename": "a.go", "status": "modified", "additions": 5, "deletions": 1, "changes": 6}]`)
		default:
			fmt.Fprintf(w, `{"number": %d, "title": "pr %d", "state": "closed", "merged": true,
				"created_at": "2025-11-%02dT00:00:00Z", "user": {"login": "jdoe"},
				"additions": 10, "deletions": 2, "changed_files": 1, "commits": 3}`, number, number, number)
		}
	})
	mux.HandleFunc("/repos/acme/widgets/issues/", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, `[]`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := github.NewClient(config.Config{GitHubBaseURL: srv.URL, GitHubToken: "t"}, logger, metrics.NewCollector())

	paths := config.Paths{Base: t.TempDir()}
	registry := task.NewRegistry(paths)
	return &fixture{
		engine:   NewEngine(client, registry, paths, "acme", batchSize, logger),
		registry: registry,
		paths:    paths,
		requests: &requests,
	}
}

func (f *fixture) newTask(t *testing.T) *task.Task {
	t.Helper()
	tk, err := f.registry.CreateOrGet("jdoe", models.WorkAuthored, "2025-11-01", "2025-11-30")
	require.NoError(t, err)
	return tk
}

func TestSearchWritesSortedArtifact(t *testing.T) {
	f := newFixture(t, 5, 10, nil)
	tk := f.newTask(t)

	require.NoError(t, f.engine.Search(context.Background(), tk))
	assert.Equal(t, task.StatusSearchDownloaded, tk.Status)
	assert.Equal(t, 0, tk.CurrentRow)

	hits, err := ReadSearchCSV(f.paths.SearchFile("jdoe", models.WorkAuthored))
	require.NoError(t, err)
	require.Len(t, hits, 5)
	for i, h := range hits {
		assert.Equal(t, i+1, h.Ref.Number, "hits must be sorted by creation date")
	}

	// Re-running the stage is a no-op.
	before := f.requests.Load()
	require.NoError(t, f.engine.Search(context.Background(), tk))
	assert.Equal(t, before, f.requests.Load())
}

func TestDownloadBatchesAndCheckpoints(t *testing.T) {
	f := newFixture(t, 5, 2, nil)
	tk := f.newTask(t)
	require.NoError(t, f.engine.Search(context.Background(), tk))

	require.NoError(t, f.engine.Download(context.Background(), tk, "run-1"))
	assert.Equal(t, 2, tk.CurrentRow)
	assert.Equal(t, task.StatusSearchDownloaded, tk.Status)

	require.NoError(t, f.engine.Download(context.Background(), tk, "run-2"))
	assert.Equal(t, 4, tk.CurrentRow)

	require.NoError(t, f.engine.Download(context.Background(), tk, "run-3"))
	assert.Equal(t, 5, tk.CurrentRow)
	assert.Equal(t, task.StatusDetailsDownloaded, tk.Status)

	// The persisted record reflects the final state.
	reloaded, err := f.registry.CreateOrGet("jdoe", models.WorkAuthored, "", "")
	require.NoError(t, err)
	assert.Equal(t, task.StatusDetailsDownloaded, reloaded.Status)
	assert.Equal(t, 5, reloaded.CurrentRow)
}

func TestDownloadSkipsExistingArtifacts(t *testing.T) {
	f := newFixture(t, 3, 10, nil)
	tk := f.newTask(t)
	require.NoError(t, f.engine.Search(context.Background(), tk))

	// Artifacts already on disk for every PR: no detail calls at all.
	for n := 1; n <= 3; n++ {
		ref := models.PRRef{Owner: "acme", Repo: "widgets", Number: n}
		require.NoError(t, WriteMetaCSV(f.paths.MetaFile("jdoe", models.WorkAuthored, ref), models.PullRequestMeta{Ref: ref}))
		require.NoError(t, WriteCommentsCSV(f.paths.CommentsFile("jdoe", models.WorkAuthored, ref), nil))
		require.NoError(t, WriteFilesCSV(f.paths.FilesFile("jdoe", models.WorkAuthored, ref), nil))
	}

	before := f.requests.Load()
	require.NoError(t, f.engine.Download(context.Background(), tk, "run-1"))
	assert.Equal(t, before, f.requests.Load(), "existing artifacts must not trigger network calls")
	assert.Equal(t, task.StatusDetailsDownloaded, tk.Status)

	// Second invocation remains a no-op with status unchanged.
	require.NoError(t, f.engine.Download(context.Background(), tk, "run-2"))
	assert.Equal(t, before, f.requests.Load())
	assert.Equal(t, task.StatusDetailsDownloaded, tk.Status)
}

func TestDownloadFollowUpWindowFetchesNewPRs(t *testing.T) {
	f := newFixture(t, 1, 10, nil)
	tk := f.newTask(t)
	require.NoError(t, f.engine.Search(context.Background(), tk))
	require.NoError(t, f.engine.Download(context.Background(), tk, "run-1"))

	firstRef := models.PRRef{Owner: "acme", Repo: "widgets", Number: 1}
	require.FileExists(t, f.paths.MetaFile("jdoe", models.WorkAuthored, firstRef))

	// A later window lists a different PR in the same search position.
	newRef := models.PRRef{Owner: "acme", Repo: "widgets", Number: 42}
	require.NoError(t, WriteSearchCSV(f.paths.SearchFile("jdoe", models.WorkAuthored), []models.SearchHit{
		{Ref: newRef, Title: "pr 42", State: "closed", CreatedAt: "2025-12-05T00:00:00Z", Author: "jdoe"},
	}))
	next := &task.Task{
		PRUserName: "jdoe",
		Work:       models.WorkAuthored,
		StartDate:  "2025-12-01",
		EndDate:    "2025-12-31",
		Status:     task.StatusSearchDownloaded,
	}
	require.NoError(t, f.registry.Save(next))

	before := f.requests.Load()
	require.NoError(t, f.engine.Download(context.Background(), next, "run-2"))
	assert.Greater(t, f.requests.Load(), before, "a PR unseen in earlier windows must be fetched")

	meta, err := ReadMetaCSV(f.paths.MetaFile("jdoe", models.WorkAuthored, newRef))
	require.NoError(t, err)
	assert.Equal(t, newRef, meta.Ref)
	require.FileExists(t, f.paths.MetaFile("jdoe", models.WorkAuthored, firstRef))
}

func TestDownloadRecordsFailureAndContinues(t *testing.T) {
	f := newFixture(t, 3, 10, map[int]bool{2: true})
	tk := f.newTask(t)
	require.NoError(t, f.engine.Search(context.Background(), tk))

	require.NoError(t, f.engine.Download(context.Background(), tk, "run-1"))
	assert.Equal(t, task.StatusDetailsDownloaded, tk.Status, "one bad PR must not abort the batch")
	assert.Equal(t, 3, tk.CurrentRow)

	// The failing PR produced no artifacts but is recorded.
	badRef := models.PRRef{Owner: "acme", Repo: "widgets", Number: 2}
	_, err := os.Stat(f.paths.MetaFile("jdoe", models.WorkAuthored, badRef))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(f.paths.FailuresFile("jdoe", models.WorkAuthored, "run-1"))
	assert.NoError(t, err)
}
