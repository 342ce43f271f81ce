package classify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/llm"
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/syncer"
	"github.com/falconiq/prsync/internal/task"
)

// stubModel classifies every comment it is given into one fixed
// category and counts calls.
type stubModel struct {
	calls    int
	category string
	severity string
	err      error
}

func (m *stubModel) GenerateJSON(_ context.Context, _, user string) (string, llm.Usage, error) {
	m.calls++
	if m.err != nil {
		return "", llm.Usage{}, m.err
	}
	var in struct {
		Comments []struct {
			ID string `json:"comment_id"`
		} `json:"comments"`
	}
	if err := json.Unmarshal([]byte(user), &in); err != nil {
		return "", llm.Usage{}, err
	}
	verdicts := make([]wireVerdict, 0, len(in.Comments))
	for _, c := range in.Comments {
		verdicts = append(verdicts, wireVerdict{
			CommentID:  c.ID,
			Category:   m.category,
			Severity:   m.severity,
			Actionable: true,
			Rationale:  "stubbed",
		})
	}
	out, err := json.Marshal(map[string]any{"classifications": verdicts})
	if err != nil {
		return "", llm.Usage{}, err
	}
	return string(out), llm.Usage{InputTokens: 100, OutputTokens: 25}, nil
}

type classifyFixture struct {
	paths config.Paths
	task  *task.Task
}

func newFixture(t *testing.T, comments []models.Comment) *classifyFixture {
	t.Helper()
	f := &classifyFixture{
		paths: config.Paths{Base: t.TempDir()},
		task: &task.Task{
			PRUserName: "jdoe",
			Work:       models.WorkAuthored,
			StartDate:  "2025-11-01",
			EndDate:    "2025-11-30",
			Status:     task.StatusDetailsDownloaded,
		},
	}
	path := f.paths.ExtractedFile("jdoe", models.WorkAuthored, "2025-11-01", "2025-11-30")
	require.NoError(t, syncer.WriteCommentsCSV(path, comments))
	return f
}

func testComment(id, author, body string) models.Comment {
	return models.Comment{
		ID:     id,
		Ref:    models.PRRef{Owner: "acme", Repo: "shop", Number: 1},
		Type:   models.IssueComment,
		Author: author,
		Body:   body,
	}
}

func newTestClassifier(f *classifyFixture, model Generator, batchSize int, singleBatch bool) *Classifier {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClassifier(model, f.paths, batchSize, singleBatch, BotPrefixes([]string{"coderabbit", "dependabot"}), logger)
}

func TestClassifyUserLLMPath(t *testing.T) {
	f := newFixture(t, []models.Comment{
		testComment("issue-1", "reviewer1", "This condition is inverted."),
		testComment("issue-2", "reviewer2", "Nit: rename this helper."),
	})
	model := &stubModel{category: "BUG_CORRECTNESS", severity: "HIGH"}
	c := newTestClassifier(f, model, 10, false)

	sum, err := c.ClassifyUser(context.Background(), f.task)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 2, sum.Classified)
	assert.Equal(t, 0, sum.Remaining)
	assert.Equal(t, 1, model.calls, "both comments fit one batch")
	assert.Equal(t, int64(100), sum.InputTokens)

	verdicts, err := syncer.ReadClassifiedCSV(f.paths.ClassifiedFile("jdoe", models.WorkAuthored))
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	assert.Equal(t, models.CategoryBugCorrectness, verdicts[0].Category)
	assert.Equal(t, "llm", verdicts[0].Source)

	done, err := task.StageCompleted(f.paths.ClassifyStatusFile("jdoe", models.WorkAuthored))
	require.NoError(t, err)
	assert.True(t, done)
}

func TestBotShortCircuitMakesNoLLMCalls(t *testing.T) {
	f := newFixture(t, []models.Comment{
		testComment("issue-1", "coderabbitai[bot]", "Consider extracting this into a helper."),
		testComment("issue-2", "dependabot[bot]", "Bumps lodash from 4.17.20 to 4.17.21."),
	})
	model := &stubModel{category: "OTHER", severity: "LOW"}
	c := newTestClassifier(f, model, 10, false)

	sum, err := c.ClassifyUser(context.Background(), f.task)
	require.NoError(t, err)
	assert.Equal(t, 0, model.calls)
	assert.Equal(t, 2, sum.Bots)
	assert.Zero(t, sum.InputTokens)
	assert.Zero(t, sum.OutputTokens)

	verdicts, err := syncer.ReadClassifiedCSV(f.paths.ClassifiedFile("jdoe", models.WorkAuthored))
	require.NoError(t, err)
	require.Len(t, verdicts, 2)
	for _, v := range verdicts {
		assert.Equal(t, models.CategoryPraiseAck, v.Category)
		assert.Equal(t, "bot", v.Source)
		assert.False(t, v.Actionable)
	}
}

func TestEmptyBodyShortCircuit(t *testing.T) {
	f := newFixture(t, []models.Comment{testComment("review-1", "reviewer1", "  ")})
	model := &stubModel{category: "OTHER", severity: "LOW"}
	c := newTestClassifier(f, model, 10, false)

	sum, err := c.ClassifyUser(context.Background(), f.task)
	require.NoError(t, err)
	assert.Equal(t, 0, model.calls)
	assert.Equal(t, 1, sum.Empty)

	verdicts, err := syncer.ReadClassifiedCSV(f.paths.ClassifiedFile("jdoe", models.WorkAuthored))
	require.NoError(t, err)
	assert.Equal(t, models.CategoryPraiseAck, verdicts[0].Category)
	assert.Equal(t, "empty", verdicts[0].Source)
}

func TestCachePreventsResubmission(t *testing.T) {
	f := newFixture(t, []models.Comment{testComment("issue-1", "reviewer1", "Missing nil check.")})
	model := &stubModel{category: "EDGE_CASES", severity: "MEDIUM"}

	sum, err := newTestClassifier(f, model, 10, false).ClassifyUser(context.Background(), f.task)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Classified)
	require.Equal(t, 1, model.calls)

	// Force a rerun by clearing the status and output; the cache alone
	// must prevent a second submission.
	require.NoError(t, task.WriteRecord(f.paths.ClassifyStatusFile("jdoe", models.WorkAuthored), &task.StageStatus{}))
	sum, err = newTestClassifier(f, model, 10, false).ClassifyUser(context.Background(), f.task)
	require.NoError(t, err)
	assert.Equal(t, 1, model.calls, "cached comment id is never re-submitted")
	assert.Equal(t, 1, sum.FromCache)
	assert.Equal(t, 0, sum.Classified)
}

func TestSingleBatchModeStopsEarly(t *testing.T) {
	f := newFixture(t, []models.Comment{
		testComment("issue-1", "reviewer1", "a"),
		testComment("issue-2", "reviewer1", "b"),
		testComment("issue-3", "reviewer1", "c"),
	})
	model := &stubModel{category: "TESTING", severity: "LOW"}
	c := newTestClassifier(f, model, 1, true)

	sum, err := c.ClassifyUser(context.Background(), f.task)
	require.NoError(t, err)
	assert.Equal(t, 1, model.calls)
	assert.Equal(t, 1, sum.Classified)
	assert.Equal(t, 2, sum.Remaining)

	done, err := task.StageCompleted(f.paths.ClassifyStatusFile("jdoe", models.WorkAuthored))
	require.NoError(t, err)
	assert.False(t, done, "incomplete run leaves the stage open")

	// Two more single-batch invocations finish the backlog.
	_, err = c.ClassifyUser(context.Background(), f.task)
	require.NoError(t, err)
	sum, err = c.ClassifyUser(context.Background(), f.task)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Remaining)
	assert.Equal(t, 3, model.calls)
}

func TestClassifyErrorPreservesProgress(t *testing.T) {
	f := newFixture(t, []models.Comment{testComment("issue-1", "reviewer1", "text")})
	model := &stubModel{err: llm.ErrFatalAPI}
	c := newTestClassifier(f, model, 10, false)

	sum, err := c.ClassifyUser(context.Background(), f.task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrFatalAPI))
	assert.Equal(t, 1, sum.Remaining)

	var st task.StageStatus
	found, err := task.ReadRecord(f.paths.ClassifyStatusFile("jdoe", models.WorkAuthored), &st)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, st.Completed)
	assert.Equal(t, 1, st.Remaining)
}

func TestApplyGuardrails(t *testing.T) {
	v := applyGuardrails(wireVerdict{
		CommentID:           "issue-1",
		Category:            "MADE_UP",
		Severity:            "CATASTROPHIC",
		SecondaryCategories: []string{"TESTING", "NOT_REAL", "CODING_STANDARDS", "SECURITY_PRIVACY", "PERFORMANCE"},
		Signals:             []string{"", "suggests test"},
	})
	assert.Equal(t, models.CategoryOther, v.Category)
	assert.Equal(t, models.SeverityLow, v.Severity)
	assert.Equal(t, []models.Category{models.CategoryTesting, models.CategoryCodingStandards, models.CategorySecurityPrivacy}, v.SecondaryCategories)
	assert.Equal(t, []string{"suggests test"}, v.Signals)
	assert.Equal(t, "llm", v.Source)
}

func TestParseResponseBareArray(t *testing.T) {
	wire, err := parseResponse(`[{"comment_id":"issue-1","category":"CODING_STANDARDS","severity":"LOW"}]`)
	require.NoError(t, err)
	require.Len(t, wire, 1)
	assert.Equal(t, "issue-1", wire[0].CommentID)

	_, err = parseResponse("not json at all")
	require.Error(t, err)
}

func TestBotPrefixes(t *testing.T) {
	isBot := BotPrefixes([]string{"coderabbit", "Copilot"})
	assert.True(t, isBot("coderabbitai[bot]"))
	assert.True(t, isBot("copilot-pull-request-reviewer"))
	assert.False(t, isBot("jdoe"))
	assert.False(t, isBot(""))
	assert.False(t, BotPrefixes(nil)("coderabbitai[bot]"))
}
