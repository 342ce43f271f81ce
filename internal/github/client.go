// Package github is a minimal REST client for PR search and detail
// download, with rate-limit handling and bounded retries.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/metrics"
	"github.com/falconiq/prsync/internal/models"
)

// SearchCap is the hard ceiling on search results per query. The search
// backend refuses to page past it, so larger result sets must be
// sharded by date range by the caller.
const SearchCap = 1000

const perPage = 100

// ErrNotFound marks a PR or resource that no longer exists.
var ErrNotFound = errors.New("resource not found")

// TooManyResultsError is returned when a search query hits the result
// cap. The date range must be sharded into smaller windows.
type TooManyResultsError struct {
	Query string
	Total int
}

func (e *TooManyResultsError) Error() string {
	return fmt.Sprintf("search %q matched %d results (cap %d): shard the date range into smaller windows", e.Query, e.Total, SearchCap)
}

// Client calls the GitHub REST API with auth, rate-limit waits, and
// retry/backoff for transient failures.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger
	collector  *metrics.Collector

	// retryPolicy builds the per-request backoff policy.
	retryPolicy func(ctx context.Context) backoff.BackOff
	// sleep is replaceable in tests so rate-limit waits don't stall.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// maxRetries bounds transient-error retries per request.
const maxRetries = 5

func defaultRetryPolicy(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 2 * time.Second
	policy.MaxInterval = 60 * time.Second
	policy.MaxElapsedTime = 0 // bounded by retry count, not wall clock
	return backoff.WithContext(backoff.WithMaxRetries(policy, maxRetries), ctx)
}

// NewClient builds a client from configuration.
func NewClient(cfg config.Config, logger *slog.Logger, collector *metrics.Collector) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     cfg.GitHubBaseURL,
		token:       cfg.GitHubToken,
		logger:      logger,
		collector:   collector,
		retryPolicy: defaultRetryPolicy,
		sleep:       sleepCtx,
		now:         time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SearchQuery builds the PR search expression for one task.
func SearchQuery(org, author string, work models.WorkType, startDate, endDate string) string {
	switch work {
	case models.WorkReviewed:
		return fmt.Sprintf("org:%s is:pr -author:%s reviewed-by:%s created:%s..%s", org, author, author, startDate, endDate)
	default:
		return fmt.Sprintf("org:%s is:pr author:%s created:%s..%s", org, author, startDate, endDate)
	}
}

// SearchPRs runs a paginated PR search. Hitting the result cap returns
// a TooManyResultsError instead of a silently truncated list.
func (c *Client) SearchPRs(ctx context.Context, query string) ([]models.SearchHit, error) {
	var hits []models.SearchHit
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("q", query)
		q.Set("per_page", fmt.Sprint(perPage))
		q.Set("page", fmt.Sprint(page))
		q.Set("sort", "created")
		q.Set("order", "asc")

		var resp searchResponse
		if err := c.getJSON(ctx, "/search/issues?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("searching page %d: %w", page, err)
		}
		if resp.TotalCount > SearchCap {
			return nil, &TooManyResultsError{Query: query, Total: resp.TotalCount}
		}
		for _, item := range resp.Items {
			hit, err := item.toHit()
			if err != nil {
				return nil, err
			}
			hits = append(hits, hit)
		}
		if len(hits) >= resp.TotalCount || len(resp.Items) < perPage {
			return hits, nil
		}
	}
}

// PullRequest fetches full metadata for one PR.
func (c *Client) PullRequest(ctx context.Context, ref models.PRRef) (models.PullRequestMeta, error) {
	var resp prResponse
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d", ref.Owner, ref.Repo, ref.Number)
	if err := c.getJSON(ctx, path, &resp); err != nil {
		return models.PullRequestMeta{}, fmt.Errorf("fetching %s: %w", ref, err)
	}
	return models.PullRequestMeta{
		Ref:          ref,
		Title:        resp.Title,
		Body:         resp.Body,
		State:        resp.State,
		Merged:       resp.Merged,
		CreatedAt:    resp.CreatedAt,
		MergedAt:     resp.MergedAt,
		ClosedAt:     resp.ClosedAt,
		Author:       resp.User.Login,
		Additions:    resp.Additions,
		Deletions:    resp.Deletions,
		ChangedFiles: resp.ChangedFiles,
		CommitCount:  resp.Commits,
	}, nil
}

// Comments fetches all three comment kinds for a PR in unified form.
func (c *Client) Comments(ctx context.Context, ref models.PRRef) ([]models.Comment, error) {
	var out []models.Comment

	var issues []issueComment
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", ref.Owner, ref.Repo, ref.Number)
	if err := getPaged(ctx, c, path, &issues); err != nil {
		return nil, fmt.Errorf("fetching issue comments for %s: %w", ref, err)
	}
	for _, ic := range issues {
		out = append(out, models.Comment{
			ID:        fmt.Sprintf("issue-%d", ic.ID),
			Ref:       ref,
			Type:      models.IssueComment,
			Author:    ic.User.Login,
			Body:      ic.Body,
			CreatedAt: ic.CreatedAt,
		})
	}

	var inline []reviewComment
	path = fmt.Sprintf("/repos/%s/%s/pulls/%d/comments", ref.Owner, ref.Repo, ref.Number)
	if err := getPaged(ctx, c, path, &inline); err != nil {
		return nil, fmt.Errorf("fetching review comments for %s: %w", ref, err)
	}
	for _, rc := range inline {
		out = append(out, models.Comment{
			ID:        fmt.Sprintf("inline-%d", rc.ID),
			Ref:       ref,
			Type:      models.ReviewInlineComment,
			Author:    rc.User.Login,
			Body:      rc.Body,
			Path:      rc.Path,
			CreatedAt: rc.CreatedAt,
		})
	}

	var reviews []review
	path = fmt.Sprintf("/repos/%s/%s/pulls/%d/reviews", ref.Owner, ref.Repo, ref.Number)
	if err := getPaged(ctx, c, path, &reviews); err != nil {
		return nil, fmt.Errorf("fetching reviews for %s: %w", ref, err)
	}
	for _, rv := range reviews {
		out = append(out, models.Comment{
			ID:          fmt.Sprintf("review-%d", rv.ID),
			Ref:         ref,
			Type:        models.ReviewSummary,
			Author:      rv.User.Login,
			Body:        rv.Body,
			CreatedAt:   rv.SubmittedAt,
			ReviewState: rv.State,
		})
	}
	return out, nil
}

// Files fetches the changed-file list for a PR.
func (c *Client) Files(ctx context.Context, ref models.PRRef) ([]models.FileChange, error) {
	var entries []fileEntry
	path := fmt.Sprintf("/repos/%s/%s/pulls/%d/files", ref.Owner, ref.Repo, ref.Number)
	if err := getPaged(ctx, c, path, &entries); err != nil {
		return nil, fmt.Errorf("fetching files for %s: %w", ref, err)
	}
	files := make([]models.FileChange, 0, len(entries))
	for _, e := range entries {
		files = append(files, models.FileChange{
			Filename:  e.Filename,
			Status:    e.Status,
			Additions: e.Additions,
			Deletions: e.Deletions,
			Changes:   e.Changes,
		})
	}
	return files, nil
}

// getPaged fetches every page of a list endpoint into out, which must
// be a pointer to a slice.
func getPaged[T any](ctx context.Context, c *Client, path string, out *[]T) error {
	for page := 1; ; page++ {
		var batch []T
		if err := c.getJSON(ctx, fmt.Sprintf("%s?per_page=%d&page=%d", path, perPage, page), &batch); err != nil {
			return err
		}
		*out = append(*out, batch...)
		if len(batch) < perPage {
			return nil
		}
	}
}

// getJSON performs one GET with rate-limit waits and bounded retries.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	op := func() error {
		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request %s: %w", path, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		c.collector.RecordTiming(metrics.OpGitHubRequest, time.Since(start))
		if err != nil {
			return fmt.Errorf("reading response for %s: %w", path, err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(body, out); err != nil {
				return backoff.Permanent(fmt.Errorf("decoding response for %s: %w", path, err))
			}
			// Proactively wait out an exhausted primary quota so the
			// next call doesn't bounce off a 403.
			if info := parseRateInfo(resp.Header); info.known && info.remaining == 0 {
				return c.waitPrimary(ctx, info)
			}
			return nil

		case isSecondaryLimit(resp.StatusCode, resp.Header, string(body)):
			// Honor Retry-After if present, then let the backoff policy
			// add its own capped, jittered delay.
			if d := retryAfter(resp.Header); d > 0 {
				c.logger.Warn("secondary rate limit hit", "path", path, "retry_after", d)
				if err := c.wait(ctx, d); err != nil {
					return backoff.Permanent(err)
				}
			}
			return fmt.Errorf("secondary rate limit on %s", path)

		case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
			info := parseRateInfo(resp.Header)
			if err := c.waitPrimary(ctx, info); err != nil {
				return backoff.Permanent(err)
			}
			return fmt.Errorf("primary rate limit on %s", path)

		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("%s: %w", path, ErrNotFound))

		case resp.StatusCode >= 500:
			return fmt.Errorf("server error %d on %s", resp.StatusCode, path)

		default:
			return backoff.Permanent(fmt.Errorf("unexpected status %d on %s: %s", resp.StatusCode, path, truncate(string(body), 200)))
		}
	}

	return backoff.Retry(op, c.retryPolicy(ctx))
}

// waitPrimary sleeps until the primary quota resets.
func (c *Client) waitPrimary(ctx context.Context, info rateInfo) error {
	if !info.known {
		return nil
	}
	d := info.untilReset(c.now())
	if d <= 0 {
		return nil
	}
	c.logger.Info("primary rate limit exhausted, waiting for reset", "wait", d, "reset", info.reset)
	start := time.Now()
	err := c.wait(ctx, d)
	c.collector.RecordTiming(metrics.OpGitHubWait, time.Since(start))
	return err
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	return c.sleep(ctx, d)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
