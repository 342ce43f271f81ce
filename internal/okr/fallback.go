package okr

import (
	"strings"

	"github.com/falconiq/prsync/internal/models"
)

type fallbackRule struct {
	category models.FallbackCategory
	keywords []string
}

// fallbackRules are checked in order; the first rule with a keyword hit
// wins. Dependency bumps and docs-only changes are the most distinctive
// and go first.
var fallbackRules = []fallbackRule{
	{models.FallbackDependencies, []string{
		"bump", "upgrade", "dependenc", "dependabot", "renovate",
		"go.mod", "go.sum", "package.json", "requirements.txt",
	}},
	{models.FallbackDocumentation, []string{
		"docs", "documentation", "readme", "changelog", ".md",
	}},
	{models.FallbackTooling, []string{
		"github actions", ".github/workflows", "pipeline", "workflow",
		"makefile", "dockerfile", "lint", "build script", "tooling",
	}},
	{models.FallbackCleanup, []string{
		"cleanup", "clean up", "remove unused", "remove dead", "typo",
		"delete old", "tidy", "formatting", "gofmt",
	}},
	{models.FallbackRefactoring, []string{
		"refactor", "restructure", "rename", "simplify", "rework",
	}},
}

// ClassifyFallback buckets an unmatched PR by keyword heuristics over
// its title and changed file paths.
func ClassifyFallback(title string, files []models.FileChange) models.FallbackCategory {
	haystack := strings.ToLower(title)
	for _, f := range files {
		haystack += "\n" + strings.ToLower(f.Filename)
	}
	for _, rule := range fallbackRules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return rule.category
			}
		}
	}
	return models.FallbackOther
}
