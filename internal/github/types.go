package github

import (
	"fmt"
	"strings"

	"github.com/falconiq/prsync/internal/models"
)

// Wire shapes for the REST responses we consume. Only the fields the
// pipeline reads are declared.

type searchResponse struct {
	TotalCount        int          `json:"total_count"`
	IncompleteResults bool         `json:"incomplete_results"`
	Items             []searchItem `json:"items"`
}

type searchItem struct {
	Number        int    `json:"number"`
	Title         string `json:"title"`
	HTMLURL       string `json:"html_url"`
	State         string `json:"state"`
	CreatedAt     string `json:"created_at"`
	ClosedAt      string `json:"closed_at"`
	User          actor  `json:"user"`
	RepositoryURL string `json:"repository_url"`
}

type actor struct {
	Login string `json:"login"`
}

type prResponse struct {
	Number       int    `json:"number"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	State        string `json:"state"`
	Merged       bool   `json:"merged"`
	CreatedAt    string `json:"created_at"`
	MergedAt     string `json:"merged_at"`
	ClosedAt     string `json:"closed_at"`
	User         actor  `json:"user"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	ChangedFiles int    `json:"changed_files"`
	Commits      int    `json:"commits"`
}

type issueComment struct {
	ID        int64  `json:"id"`
	User      actor  `json:"user"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

type reviewComment struct {
	ID        int64  `json:"id"`
	User      actor  `json:"user"`
	Body      string `json:"body"`
	Path      string `json:"path"`
	CreatedAt string `json:"created_at"`
}

type review struct {
	ID          int64  `json:"id"`
	User        actor  `json:"user"`
	Body        string `json:"body"`
	State       string `json:"state"`
	SubmittedAt string `json:"submitted_at"`
}

type fileEntry struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
}

// parseRepoRef extracts (owner, repo) from a repository_url like
// https://api.github.com/repos/acme/widgets.
func parseRepoRef(repositoryURL string) (owner, repo string, err error) {
	idx := strings.Index(repositoryURL, "/repos/")
	if idx < 0 {
		return "", "", fmt.Errorf("repository url %q has no /repos/ segment", repositoryURL)
	}
	parts := strings.Split(strings.Trim(repositoryURL[idx+len("/repos/"):], "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository url %q is not owner/repo shaped", repositoryURL)
	}
	return parts[0], parts[1], nil
}

func (s searchItem) toHit() (models.SearchHit, error) {
	owner, repo, err := parseRepoRef(s.RepositoryURL)
	if err != nil {
		return models.SearchHit{}, err
	}
	return models.SearchHit{
		Ref:       models.PRRef{Owner: owner, Repo: repo, Number: s.Number},
		Title:     s.Title,
		URL:       s.HTMLURL,
		State:     s.State,
		CreatedAt: s.CreatedAt,
		ClosedAt:  s.ClosedAt,
		Author:    s.User.Login,
	}, nil
}
