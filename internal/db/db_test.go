// Package db provides integration tests for SurrealDB operations.
package db

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/falconiq/prsync/internal/models"
)

var testDB *Client
var testContainer testcontainers.Container

// TestMain sets up and tears down the SurrealDB container for all tests.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		// Individual tests skip when no container was started.
		os.Exit(m.Run())
	}

	// Disable ryuk (cleanup container) as it can cause issues in some environments
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	var err error
	testContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := testContainer.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	// Workaround: testcontainers may return "null" as host in some environments
	if host == "" || host == "null" {
		host = "localhost"
	}
	mappedPort, err := testContainer.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, mappedPort.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}

	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = testContainer.Terminate(ctx)

	os.Exit(code)
}

func requireDB(t *testing.T) {
	t.Helper()
	if testDB == nil {
		t.Skip("skipping integration test in short mode")
	}
}

func sampleStatRow(number int) models.StatRow {
	return models.StatRow{
		UserName:   "Jane Doe",
		PRUserName: "jdoe",
		Work:       models.WorkAuthored,
		Ref:        models.PRRef{Owner: "acme", Repo: "widgets", Number: number},
		Title:      "Add retry logic",
		State:      "closed",
		Merged:     true,
		CreatedAt:  "2025-11-03T10:00:00Z",
		Additions:  120,
		Deletions:  14,
		CommentCounts: map[models.CommentType]int{
			models.IssueComment:        2,
			models.ReviewInlineComment: 5,
		},
		CategoryCounts: map[models.Category]int{
			models.CategoryBugCorrectness: 3,
			models.CategoryPraiseAck:      2,
		},
		SeverityCounts:  map[models.Severity]int{models.SeverityMedium: 3},
		ActionableCount: 3,
		Match:           models.MatchDirect,
		GoalKey:         "Q4-PLAT-01",
		MatchScore:      0.71,
		RunID:           "run-1",
	}
}

func TestUserRoundTrip(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	require.NoError(t, testDB.QueryUpsertUser(ctx, models.User{
		FirstName: "Jane", LastName: "Doe", UserName: "jane.doe", PRUserName: "jdoe",
	}))
	require.NoError(t, testDB.QueryUpsertUser(ctx, models.User{
		FirstName: "Ash", LastName: "Lee", UserName: "ash.lee", PRUserName: "alee",
	}))
	// Upserting the same handle twice must not duplicate.
	require.NoError(t, testDB.QueryUpsertUser(ctx, models.User{
		FirstName: "Jane", LastName: "Doe", UserName: "jane.d", PRUserName: "jdoe",
	}))

	users, err := testDB.QueryListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alee", users[0].PRUserName)
	assert.Equal(t, "jane.d", users[1].UserName, "second upsert should win")
}

func TestGoalsOverlapping(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	goals := []models.Goal{
		{Key: "Q3-ADS-01", Title: "Reserved Ads Q3", StartDate: "2025-07-01", EndDate: "2025-09-30", Active: true},
		{Key: "Q4-PLAT-01", Title: "Platform reliability", StartDate: "2025-10-01", EndDate: "2025-12-31", Active: true},
		{Key: "Q4-OLD-01", Title: "Retired goal", StartDate: "2025-10-01", EndDate: "2025-12-31", Active: false},
	}
	for _, g := range goals {
		require.NoError(t, testDB.QueryUpsertGoal(ctx, g))
	}

	overlapping, err := testDB.QueryGoalsOverlapping(ctx, "2025-11-15")
	require.NoError(t, err)
	require.Len(t, overlapping, 1)
	assert.Equal(t, "Q4-PLAT-01", overlapping[0].Key)

	all, err := testDB.QueryListGoals(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "Q3-ADS-01", all[0].Key, "ordered by start date")
}

func TestStatRowUpsertIsIdempotent(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	row := sampleStatRow(12)
	created, err := testDB.QueryUpsertStatRow(ctx, row)
	require.NoError(t, err)
	assert.True(t, created)

	row.Title = "Add retry logic (amended)"
	created, err = testDB.QueryUpsertStatRow(ctx, row)
	require.NoError(t, err)
	assert.False(t, created, "same (user, work, ref) must update in place")

	rows, err := testDB.QueryStatsForUser(ctx, "jdoe")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Add retry logic (amended)", rows[0].Title)
	assert.Equal(t, 3, rows[0].CategoryCounts[models.CategoryBugCorrectness])
	assert.Equal(t, "Q4-PLAT-01", rows[0].GoalKey)
}

func TestGoalAttribution(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	second := sampleStatRow(13)
	_, err := testDB.QueryUpsertStatRow(ctx, second)
	require.NoError(t, err)

	fallback := sampleStatRow(14)
	fallback.Match = models.MatchFallback
	fallback.GoalKey = ""
	fallback.Fallback = models.FallbackDependencies
	_, err = testDB.QueryUpsertStatRow(ctx, fallback)
	require.NoError(t, err)

	counts, err := testDB.QueryGoalAttribution(ctx)
	require.NoError(t, err)
	require.Len(t, counts, 1, "fallback rows carry no goal key")
	assert.Equal(t, "Q4-PLAT-01", counts[0].GoalKey)
	assert.Equal(t, 2, counts[0].Count)
}

func TestCommentDetailRoundTrip(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	detail := models.CommentDetail{
		PRUserName: "jdoe",
		Ref:        models.PRRef{Owner: "acme", Repo: "widgets", Number: 12},
		CommentID:  "inline-42",
		Type:       models.ReviewInlineComment,
		Author:     "alee",
		Category:   models.CategoryCodingStandards,
		Severity:   models.SeverityLow,
		Actionable: true,
		Source:     "llm",
		CreatedAt:  "2025-11-03T11:00:00Z",
	}
	require.NoError(t, testDB.QueryUpsertCommentDetail(ctx, detail))
	// Re-import is an update, not a duplicate.
	require.NoError(t, testDB.QueryUpsertCommentDetail(ctx, detail))

	results, err := testDB.Query(ctx, `SELECT count() AS c FROM pr_comment_detail GROUP ALL`, nil)
	require.NoError(t, err)
	require.NotNil(t, results)
}

func TestWipeData(t *testing.T) {
	requireDB(t)
	ctx := context.Background()

	require.NoError(t, testDB.WipeData(ctx))
	users, err := testDB.QueryListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}
