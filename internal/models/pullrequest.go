package models

import "fmt"

// PRRef identifies a pull request by repository coordinates.
type PRRef struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
}

// String renders the ref in "owner/repo#number" form.
func (r PRRef) String() string {
	return fmt.Sprintf("%s/%s#%d", r.Owner, r.Repo, r.Number)
}

// SearchHit is one row of a PR search result, as persisted in the
// per-user search artifact.
type SearchHit struct {
	Ref       PRRef  `json:"ref"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
	ClosedAt  string `json:"closed_at,omitempty"`
	Author    string `json:"author"`
}

// PullRequestMeta carries the detail fields downloaded per PR.
type PullRequestMeta struct {
	Ref          PRRef  `json:"ref"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	State        string `json:"state"`
	Merged       bool   `json:"merged"`
	CreatedAt    string `json:"created_at"`
	MergedAt     string `json:"merged_at,omitempty"`
	ClosedAt     string `json:"closed_at,omitempty"`
	Author       string `json:"author"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	ChangedFiles int    `json:"changed_files"`
	CommitCount  int    `json:"commit_count"`
}

// FileChange is one changed file within a PR.
type FileChange struct {
	Filename  string `json:"filename"`
	Status    string `json:"status"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Changes   int    `json:"changes"`
}
