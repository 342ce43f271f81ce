package models

// CommentType identifies which GitHub surface a comment came from.
type CommentType string

const (
	// IssueComment is a top-level conversation comment on the PR.
	IssueComment CommentType = "ISSUE_COMMENT"
	// ReviewInlineComment is attached to a diff line inside a review.
	ReviewInlineComment CommentType = "REVIEW_INLINE_COMMENT"
	// ReviewSummary is the body of a submitted review.
	ReviewSummary CommentType = "REVIEW_SUMMARY"
)

// Valid reports whether t is a known comment type.
func (t CommentType) Valid() bool {
	switch t {
	case IssueComment, ReviewInlineComment, ReviewSummary:
		return true
	}
	return false
}

// Comment is a single review comment in unified form, regardless of
// which GitHub surface it originated on.
type Comment struct {
	ID        string      `json:"id"` // unique within the repo, prefixed by type
	Ref       PRRef       `json:"ref"`
	Type      CommentType `json:"type"`
	Author    string      `json:"author"`
	Body      string      `json:"body"`
	Path      string      `json:"path,omitempty"` // inline comments only
	CreatedAt string      `json:"created_at"`
	// ReviewState holds APPROVED/CHANGES_REQUESTED/COMMENTED for review
	// summaries, empty otherwise.
	ReviewState string `json:"review_state,omitempty"`
}
