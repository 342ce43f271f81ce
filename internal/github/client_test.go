package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/metrics"
	"github.com/falconiq/prsync/internal/models"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{GitHubBaseURL: srv.URL, GitHubToken: "test-token"}
	c := NewClient(cfg, slog.New(slog.NewTextHandler(testWriter{t}, nil)), metrics.NewCollector())
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	c.retryPolicy = func(ctx context.Context) backoff.BackOff {
		return backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), maxRetries), ctx)
	}
	return c, srv
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestSearchQuery(t *testing.T) {
	got := SearchQuery("acme", "jdoe", models.WorkAuthored, "2025-11-01", "2025-11-30")
	assert.Equal(t, "org:acme is:pr author:jdoe created:2025-11-01..2025-11-30", got)

	got = SearchQuery("acme", "jdoe", models.WorkReviewed, "2025-11-01", "2025-11-30")
	assert.Equal(t, "org:acme is:pr -author:jdoe reviewed-by:jdoe created:2025-11-01..2025-11-30", got)
}

func TestSearchPRsPaginates(t *testing.T) {
	total := 150
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		count := 100
		offset := 0
		if page == "2" {
			count, offset = 50, 100
		}
		fmt.Fprintf(w, `{"total_count": %d, "items": [`, total)
		for i := 0; i < count; i++ {
			if i > 0 {
				fmt.Fprint(w, ",")
			}
			fmt.Fprintf(w, `{"number": %d, "title": "pr %d", "state": "closed",
				"created_at": "2025-11-01T00:00:00Z", "user": {"login": "jdoe"},
				"repository_url": "https://api.github.com/repos/acme/widgets"}`, offset+i+1, offset+i+1)
		}
		fmt.Fprint(w, "]}")
	}))

	hits, err := c.SearchPRs(context.Background(), "org:acme is:pr")
	require.NoError(t, err)
	assert.Len(t, hits, total)
	assert.Equal(t, models.PRRef{Owner: "acme", Repo: "widgets", Number: 1}, hits[0].Ref)
	assert.Equal(t, "jdoe", hits[0].Author)
}

func TestSearchPRsHardCap(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count": 1042, "items": []}`)
	}))

	_, err := c.SearchPRs(context.Background(), "org:acme is:pr")
	var tooMany *TooManyResultsError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 1042, tooMany.Total)
	assert.Contains(t, tooMany.Error(), "shard the date range")
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	attempts := 0
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"number": 7, "title": "fix", "state": "open", "user": {"login": "jdoe"}}`)
	}))

	meta, err := c.PullRequest(context.Background(), models.PRRef{Owner: "acme", Repo: "widgets", Number: 7})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, "fix", meta.Title)
}

func TestGetJSONNotFoundIsPermanent(t *testing.T) {
	attempts := 0
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.PullRequest(context.Background(), models.PRRef{Owner: "acme", Repo: "widgets", Number: 404})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, attempts, "404 must not be retried")
}

func TestPrimaryRateLimitWaitsForReset(t *testing.T) {
	var waited time.Duration
	attempts := 0
	reset := time.Now().Add(30 * time.Second).Unix()
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Reset", fmt.Sprint(reset))
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fmt.Fprint(w, `{"number": 1, "title": "ok", "state": "open", "user": {"login": "jdoe"}}`)
	}))
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waited += d
		return nil
	}

	_, err := c.PullRequest(context.Background(), models.PRRef{Owner: "acme", Repo: "widgets", Number: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Greater(t, waited, 25*time.Second, "should sleep until the announced reset")
}

func TestSecondaryLimitDetection(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "10")
	assert.True(t, isSecondaryLimit(http.StatusForbidden, h, "You have exceeded a secondary rate limit"))

	// Primary exhaustion announces remaining == 0 and is not secondary.
	h = http.Header{}
	h.Set("X-RateLimit-Remaining", "0")
	h.Set("X-RateLimit-Reset", "1700000000")
	assert.False(t, isSecondaryLimit(http.StatusForbidden, h, ""))

	assert.False(t, isSecondaryLimit(http.StatusOK, http.Header{}, ""))
}

func TestCommentsUnifiesThreeKinds(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/repos/acme/widgets/issues/5/comments":
			fmt.Fprint(w, `[{"id": 1, "user": {"login": "alice"}, "body": "lgtm", "created_at": "2025-11-02T10:00:00Z"}]`)
		case r.URL.Path == "/repos/acme/widgets/pulls/5/comments":
			fmt.Fprint(w, `[{"id": 2, "user": {"login": "bob"}, "body": "rename this", "path": "main.go", "created_at": "2025-11-02T11:00:00Z"}]`)
		case r.URL.Path == "/repos/acme/widgets/pulls/5/reviews":
			fmt.Fprint(w, `[{"id": 3, "user": {"login": "alice"}, "body": "", "state": "APPROVED", "submitted_at": "2025-11-02T12:00:00Z"}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	comments, err := c.Comments(context.Background(), models.PRRef{Owner: "acme", Repo: "widgets", Number: 5})
	require.NoError(t, err)
	require.Len(t, comments, 3)
	assert.Equal(t, "issue-1", comments[0].ID)
	assert.Equal(t, models.IssueComment, comments[0].Type)
	assert.Equal(t, "inline-2", comments[1].ID)
	assert.Equal(t, "main.go", comments[1].Path)
	assert.Equal(t, "review-3", comments[2].ID)
	assert.Equal(t, "APPROVED", comments[2].ReviewState)
}

func TestParseRepoRef(t *testing.T) {
	owner, repo, err := parseRepoRef("https://api.github.com/repos/acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widgets", repo)

	_, _, err = parseRepoRef("https://api.github.com/orgs/acme")
	assert.Error(t, err)
}
