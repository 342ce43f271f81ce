package models

// MatchType records how a PR was attributed to work.
type MatchType string

const (
	// MatchDirect means the PR scored above threshold against an OKR goal.
	MatchDirect MatchType = "direct"
	// MatchFallback means no goal cleared the threshold and a heuristic
	// bucket was assigned instead.
	MatchFallback MatchType = "fallback"
)

// FallbackCategory buckets PRs that match no OKR goal.
type FallbackCategory string

const (
	FallbackCleanup       FallbackCategory = "cleanup"
	FallbackRefactoring   FallbackCategory = "refactoring"
	FallbackDependencies  FallbackCategory = "dependency-updates"
	FallbackTooling       FallbackCategory = "tooling"
	FallbackDocumentation FallbackCategory = "documentation"
	FallbackOther         FallbackCategory = "other"
)

// ScoreBreakdown carries the weighted components of a goal match.
// All values are in [0, 1].
type ScoreBreakdown struct {
	Semantic float64 `json:"semantic"`
	Lexical  float64 `json:"lexical"`
	Acronym  float64 `json:"acronym"`
	Total    float64 `json:"total"`
}

// GoalMapping is the attribution verdict for one PR.
type GoalMapping struct {
	Ref       PRRef            `json:"ref"`
	Match     MatchType        `json:"match"`
	GoalKey   string           `json:"goal_key,omitempty"` // set when Match == MatchDirect
	GoalTitle string           `json:"goal_title,omitempty"`
	Fallback  FallbackCategory `json:"fallback,omitempty"` // set when Match == MatchFallback
	Score     ScoreBreakdown   `json:"score"`
}
