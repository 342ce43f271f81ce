package models

// Category is the closed review-comment taxonomy used by the classifier.
type Category string

const (
	CategoryNitpickStyle          Category = "NITPICK_STYLE"
	CategoryCodingStandards       Category = "CODING_STANDARDS"
	CategoryTesting               Category = "TESTING"
	CategoryDocsComment           Category = "DOCS_COMMENT"
	CategoryBugCorrectness        Category = "BUG_CORRECTNESS"
	CategoryEdgeCases             Category = "EDGE_CASES"
	CategoryReliabilityResilience Category = "RELIABILITY_RESILIENCE"
	CategoryPerformance           Category = "PERFORMANCE"
	CategorySecurityPrivacy       Category = "SECURITY_PRIVACY"
	CategoryDesignArchitecture    Category = "DESIGN_ARCHITECTURE"
	CategoryDependencyBuild       Category = "DEPENDENCY_BUILD"
	CategoryProcessRelease        Category = "PROCESS_RELEASE"
	CategoryProductBehavior       Category = "PRODUCT_BEHAVIOR"
	CategoryQuestionClarification Category = "QUESTION_CLARIFICATION"
	CategoryPraiseAck             Category = "PRAISE_ACK"
	CategoryAIGenerated           Category = "AI_GENERATED"
	CategoryOther                 Category = "OTHER"
)

// Categories lists every classifier category in prompt order.
var Categories = []Category{
	CategoryNitpickStyle,
	CategoryCodingStandards,
	CategoryTesting,
	CategoryDocsComment,
	CategoryBugCorrectness,
	CategoryEdgeCases,
	CategoryReliabilityResilience,
	CategoryPerformance,
	CategorySecurityPrivacy,
	CategoryDesignArchitecture,
	CategoryDependencyBuild,
	CategoryProcessRelease,
	CategoryProductBehavior,
	CategoryQuestionClarification,
	CategoryPraiseAck,
	CategoryAIGenerated,
	CategoryOther,
}

// Valid reports whether c is part of the taxonomy.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Severity grades how consequential a review comment is.
type Severity string

const (
	SeverityTrivial Severity = "TRIVIAL"
	SeverityLow     Severity = "LOW"
	SeverityMedium  Severity = "MEDIUM"
	SeverityHigh    Severity = "HIGH"
	SeverityBlocker Severity = "BLOCKER"
)

// Severities lists the scale from least to most consequential.
var Severities = []Severity{SeverityTrivial, SeverityLow, SeverityMedium, SeverityHigh, SeverityBlocker}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	for _, k := range Severities {
		if s == k {
			return true
		}
	}
	return false
}

// Classification is the model's verdict on a single comment.
type Classification struct {
	CommentID           string     `json:"comment_id"`
	Category            Category   `json:"category"`
	SecondaryCategories []Category `json:"secondary_categories,omitempty"`
	Severity            Severity   `json:"severity"`
	Actionable          bool       `json:"actionable"`
	// Signals are short free-text cues the model extracted, e.g.
	// "suggests test" or "links external doc".
	Signals []string `json:"signals,omitempty"`
	// Rationale is a one-sentence justification from the model.
	Rationale string `json:"rationale,omitempty"`
	// Source records how the verdict was produced: "llm", "bot" for the
	// bot short-circuit, "empty" for bodyless comments, "cache" on reuse.
	Source string `json:"source"`
}
