package comments

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/syncer"
	"github.com/falconiq/prsync/internal/task"
)

var testUser = models.User{
	FirstName:  "Jane",
	LastName:   "Doe",
	UserName:   "jdoe",
	PRUserName: "jdoe_acme",
}

func newTask(work models.WorkType) *task.Task {
	return &task.Task{
		PRUserName: testUser.PRUserName,
		Work:       work,
		StartDate:  "2025-11-01",
		EndDate:    "2025-11-30",
		Status:     task.StatusDetailsDownloaded,
	}
}

func writeFixture(t *testing.T, paths config.Paths, work models.WorkType, rows [][]models.Comment) {
	t.Helper()
	hits := make([]models.SearchHit, len(rows))
	for row := range rows {
		hits[row] = models.SearchHit{Ref: models.PRRef{Owner: "acme", Repo: "shop", Number: row + 1}}
	}
	require.NoError(t, syncer.WriteSearchCSV(paths.SearchFile(testUser.PRUserName, work), hits))
	for row, prComments := range rows {
		require.NoError(t, syncer.WriteCommentsCSV(paths.CommentsFile(testUser.PRUserName, work, hits[row].Ref), prComments))
	}
}

func comment(id, author string) models.Comment {
	return models.Comment{
		ID:     id,
		Ref:    models.PRRef{Owner: "acme", Repo: "shop", Number: 1},
		Type:   models.IssueComment,
		Author: author,
		Body:   "body of " + id,
	}
}

func TestExtractAuthoredKeepsAllComments(t *testing.T) {
	paths := config.Paths{Base: t.TempDir()}
	tk := newTask(models.WorkAuthored)
	writeFixture(t, paths, models.WorkAuthored, [][]models.Comment{
		{comment("issue-1", "reviewer1"), comment("issue-2", "jdoe_acme")},
		{comment("issue-3", "reviewer2")},
	})

	e := NewExtractor(paths, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := e.Extract(tk, testUser)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	extracted, err := syncer.ReadCommentsCSV(paths.ExtractedFile(testUser.PRUserName, models.WorkAuthored, tk.StartDate, tk.EndDate))
	require.NoError(t, err)
	require.Len(t, extracted, 3)
	assert.Equal(t, "issue-1", extracted[0].ID, "comments keep file order")
	assert.Equal(t, "issue-3", extracted[2].ID)
}

func TestExtractReviewedKeepsOnlyUserComments(t *testing.T) {
	paths := config.Paths{Base: t.TempDir()}
	tk := newTask(models.WorkReviewed)
	writeFixture(t, paths, models.WorkReviewed, [][]models.Comment{
		{comment("issue-1", "someone"), comment("inline-2", "jdoe_acme")},
		{comment("review-3", "JDOE"), comment("issue-4", "bot[bot]")},
	})

	e := NewExtractor(paths, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := e.Extract(tk, testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	extracted, err := syncer.ReadCommentsCSV(paths.ExtractedFile(testUser.PRUserName, models.WorkReviewed, tk.StartDate, tk.EndDate))
	require.NoError(t, err)
	require.Len(t, extracted, 2)
	assert.Equal(t, "inline-2", extracted[0].ID)
	assert.Equal(t, "review-3", extracted[1].ID, "bare username matches case-insensitively")
}

func TestExtractSkipsWhenOutputExists(t *testing.T) {
	paths := config.Paths{Base: t.TempDir()}
	tk := newTask(models.WorkAuthored)
	writeFixture(t, paths, models.WorkAuthored, [][]models.Comment{{comment("issue-1", "reviewer1")}})

	e := NewExtractor(paths, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := e.Extract(tk, testUser)
	require.NoError(t, err)

	// New per-PR data appears, but the windowed artifact is final.
	require.NoError(t, syncer.WriteCommentsCSV(paths.CommentsFile(testUser.PRUserName, models.WorkAuthored, models.PRRef{Owner: "acme", Repo: "shop", Number: 1}),
		[]models.Comment{comment("issue-1", "reviewer1"), comment("issue-9", "reviewer9")}))

	n, err := e.Extract(tk, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExtractSkipsMissingCommentArtifacts(t *testing.T) {
	paths := config.Paths{Base: t.TempDir()}
	tk := newTask(models.WorkAuthored)

	hits := []models.SearchHit{
		{Ref: models.PRRef{Owner: "acme", Repo: "shop", Number: 1}},
		{Ref: models.PRRef{Owner: "acme", Repo: "shop", Number: 2}},
	}
	require.NoError(t, syncer.WriteSearchCSV(paths.SearchFile(testUser.PRUserName, models.WorkAuthored), hits))
	// Only PR #2 downloaded.
	require.NoError(t, syncer.WriteCommentsCSV(paths.CommentsFile(testUser.PRUserName, models.WorkAuthored, hits[1].Ref),
		[]models.Comment{comment("issue-5", "reviewer1")}))

	e := NewExtractor(paths, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := e.Extract(tk, testUser)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExtractRequiresDownloadedDetails(t *testing.T) {
	paths := config.Paths{Base: t.TempDir()}
	tk := newTask(models.WorkAuthored)
	tk.Status = task.StatusSearchDownloaded

	e := NewExtractor(paths, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := e.Extract(tk, testUser)
	require.Error(t, err)
}

func TestMatchesHandle(t *testing.T) {
	assert.True(t, MatchesHandle("jdoe_acme", testUser))
	assert.True(t, MatchesHandle("JDoe_Acme", testUser))
	assert.True(t, MatchesHandle("jdoe", testUser))
	assert.False(t, MatchesHandle("jdoering", testUser))
	assert.False(t, MatchesHandle("", testUser))
}
