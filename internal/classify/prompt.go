package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/falconiq/prsync/internal/models"
)

var categoryDescriptions = map[models.Category]string{
	models.CategoryNitpickStyle:          "Minor style/readability tweaks; naming, formatting, small refactors, spelling.",
	models.CategoryCodingStandards:       "Enforcing conventions/best practices; patterns, consistency, logging style, error handling norms.",
	models.CategoryTesting:               "Requests tests/coverage; test correctness; flaky tests; missing assertions.",
	models.CategoryDocsComment:           "Requests documentation changes; code comments; READMEs; clarifications in docs.",
	models.CategoryBugCorrectness:        "Logic errors; incorrect behavior; wrong conditions; potential functional bugs.",
	models.CategoryEdgeCases:             "Missing edge case handling; input validation; boundaries; nulls; unexpected states.",
	models.CategoryReliabilityResilience: "Timeouts/retries/failure modes/idempotency; error paths; resilience concerns.",
	models.CategoryPerformance:           "Perf concerns; latency; allocations; expensive calls; scalability.",
	models.CategorySecurityPrivacy:       "Secrets/auth/data exposure; injection; permissions; PII; security posture.",
	models.CategoryDesignArchitecture:    "API design; boundaries; abstractions; tradeoffs; long-term maintainability.",
	models.CategoryDependencyBuild:       "Build/dependency/config/tooling issues; CI; versions; packaging.",
	models.CategoryProcessRelease:        "Rollout/migration/backwards compatibility; deprecation; monitoring/alerts; release process.",
	models.CategoryProductBehavior:       "User impact/semantics/requirements; UX expectations; product correctness.",
	models.CategoryQuestionClarification: "Asks author intent; requests more context; clarifying questions.",
	models.CategoryPraiseAck:             "Thanks/LGTM/nice work without actionable content.",
	models.CategoryAIGenerated:           "Automated comments from AI/bot reviewers.",
	models.CategoryOther:                 "Doesn't fit or ambiguous.",
}

// systemPrompt instructs the model on the taxonomy and the JSON shape
// it must return.
func systemPrompt() string {
	var taxonomy strings.Builder
	for _, c := range models.Categories {
		fmt.Fprintf(&taxonomy, "- %s: %s\n", c, categoryDescriptions[c])
	}
	severities := make([]string, 0, len(models.Severities))
	for _, s := range models.Severities {
		severities = append(severities, string(s))
	}

	return fmt.Sprintf(`You are classifying GitHub PR review comments into engineering feedback categories.
Return ONLY valid JSON (no markdown, no extra text).

Taxonomy:
%s
Severity scale (choose one): %s

Rules:
- Pure praise/LGTM/thanks without an actionable request => PRAISE_ACK, not actionable.
- Formatting/naming/readability with low impact => NITPICK_STYLE or CODING_STANDARDS, severity TRIVIAL/LOW.
- Production behavior might be wrong => BUG_CORRECTNESS / EDGE_CASES / RELIABILITY_RESILIENCE.
- Structure/tradeoffs/interfaces => DESIGN_ARCHITECTURE.
- Asking intent or context => QUESTION_CLARIFICATION.
- Include up to 3 secondary categories when relevant.
- Signals are short free-text cues such as "suggests test" or "links external doc".

Output JSON schema:
{"classifications": [{
  "comment_id": "<id from input>",
  "category": "<one taxonomy key>",
  "secondary_categories": ["<0-3 taxonomy keys>"],
  "severity": "<one severity>",
  "actionable": <true|false>,
  "signals": ["<0-3 short cues>"],
  "rationale": "<1-2 short sentences>"
}]}

Classify every input comment exactly once.`, taxonomy.String(), strings.Join(severities, ", "))
}

type promptComment struct {
	ID     string `json:"comment_id"`
	Type   string `json:"type"`
	Author string `json:"author"`
	Path   string `json:"path,omitempty"`
	Body   string `json:"body"`
}

// userPrompt renders one batch of comments as the JSON input document.
func userPrompt(batch []models.Comment) (string, error) {
	input := make([]promptComment, 0, len(batch))
	for _, c := range batch {
		input = append(input, promptComment{
			ID:     c.ID,
			Type:   string(c.Type),
			Author: c.Author,
			Path:   c.Path,
			Body:   c.Body,
		})
	}
	data, err := json.MarshalIndent(map[string]any{"comments": input}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding prompt batch: %w", err)
	}
	return string(data), nil
}

type wireVerdict struct {
	CommentID           string   `json:"comment_id"`
	Category            string   `json:"category"`
	SecondaryCategories []string `json:"secondary_categories"`
	Severity            string   `json:"severity"`
	Actionable          bool     `json:"actionable"`
	Signals             []string `json:"signals"`
	Rationale           string   `json:"rationale"`
}

// parseResponse decodes a model response, tolerating either the wrapped
// object form or a bare array.
func parseResponse(raw string) ([]wireVerdict, error) {
	var wrapped struct {
		Classifications []wireVerdict `json:"classifications"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err == nil && len(wrapped.Classifications) > 0 {
		return wrapped.Classifications, nil
	}
	var bare []wireVerdict
	if err := json.Unmarshal([]byte(raw), &bare); err == nil {
		return bare, nil
	}
	return nil, fmt.Errorf("unparsable classification response: %.200s", raw)
}

// applyGuardrails clamps a raw verdict into the closed taxonomy. An
// unknown category becomes OTHER, an unknown severity LOW, and invalid
// secondary categories are dropped.
func applyGuardrails(w wireVerdict) models.Classification {
	v := models.Classification{
		CommentID:  w.CommentID,
		Category:   models.Category(w.Category),
		Severity:   models.Severity(w.Severity),
		Actionable: w.Actionable,
		Rationale:  w.Rationale,
		Source:     "llm",
	}
	if !v.Category.Valid() {
		v.Category = models.CategoryOther
	}
	if !v.Severity.Valid() {
		v.Severity = models.SeverityLow
	}
	for _, s := range w.SecondaryCategories {
		if len(v.SecondaryCategories) == 3 {
			break
		}
		if c := models.Category(s); c.Valid() && c != v.Category {
			v.SecondaryCategories = append(v.SecondaryCategories, c)
		}
	}
	for _, s := range w.Signals {
		if s != "" && len(v.Signals) < 3 {
			v.Signals = append(v.Signals, s)
		}
	}
	return v
}
