package models

import (
	"fmt"
	"os"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"gopkg.in/yaml.v3"
)

// Goal is one OKR line item that PR work can be attributed to. Goals are
// read-only input: they are ingested into the store and never mutated by
// the pipeline.
type Goal struct {
	ID          surrealmodels.RecordID `json:"id"`
	Key         string                 `json:"key"` // stable short identifier, e.g. "Q3-PLAT-02"
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Category    string                 `json:"category,omitempty"`
	StartDate   string                 `json:"start_date"` // YYYY-MM-DD, inclusive
	EndDate     string                 `json:"end_date"`   // YYYY-MM-DD, inclusive
	Active      bool                   `json:"active"`
}

// Text returns the concatenated title and description used as the
// embedding input for goal matching.
func (g Goal) Text() string {
	if g.Description == "" {
		return g.Title
	}
	return g.Title + "\n" + g.Description
}

// LoadGoalFile reads goal definitions from a YAML file. Every entry
// must carry a unique key and a valid date window.
func LoadGoalFile(path string) ([]Goal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading goal file %s: %w", path, err)
	}
	var doc struct {
		Goals []struct {
			Key         string `yaml:"key"`
			Title       string `yaml:"title"`
			Description string `yaml:"description"`
			Category    string `yaml:"category"`
			StartDate   string `yaml:"start_date"`
			EndDate     string `yaml:"end_date"`
			Active      *bool  `yaml:"active"`
		} `yaml:"goals"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing goal file %s: %w", path, err)
	}
	if len(doc.Goals) == 0 {
		return nil, fmt.Errorf("goal file %s contains no goals", path)
	}
	seen := make(map[string]bool, len(doc.Goals))
	goals := make([]Goal, 0, len(doc.Goals))
	for i, g := range doc.Goals {
		switch {
		case g.Key == "":
			return nil, fmt.Errorf("goal file %s: entry %d has empty key", path, i)
		case seen[g.Key]:
			return nil, fmt.Errorf("goal file %s: duplicate key %q", path, g.Key)
		case g.Title == "":
			return nil, fmt.Errorf("goal file %s: goal %s has empty title", path, g.Key)
		case g.StartDate == "" || g.EndDate == "":
			return nil, fmt.Errorf("goal file %s: goal %s is missing its date window", path, g.Key)
		case g.StartDate > g.EndDate:
			return nil, fmt.Errorf("goal file %s: goal %s starts after it ends", path, g.Key)
		}
		seen[g.Key] = true
		active := true
		if g.Active != nil {
			active = *g.Active
		}
		goals = append(goals, Goal{
			Key:         g.Key,
			Title:       g.Title,
			Description: g.Description,
			Category:    g.Category,
			StartDate:   g.StartDate,
			EndDate:     g.EndDate,
			Active:      active,
		})
	}
	return goals, nil
}

// Overlaps reports whether the goal's window contains the given
// YYYY-MM-DD date. ISO dates compare correctly as strings.
func (g Goal) Overlaps(date string) bool {
	if date == "" {
		return false
	}
	d := date
	if len(d) > 10 {
		d = d[:10] // timestamps carry the date prefix
	}
	return g.StartDate <= d && d <= g.EndDate
}
