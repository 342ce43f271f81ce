// Package models defines data structures for the PR sync pipeline.
package models

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// User is a roster entry for one engineer whose PR activity is tracked.
type User struct {
	FirstName  string `json:"first_name" yaml:"first_name"`
	LastName   string `json:"last_name" yaml:"last_name"`
	UserName   string `json:"user_name" yaml:"user_name"`       // corporate handle, e.g. "jdoe"
	PRUserName string `json:"pr_user_name" yaml:"pr_user_name"` // GitHub login used on PRs
}

// DisplayName returns "First Last" for reports.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// WorkType distinguishes the two sync directions for a user.
type WorkType string

const (
	WorkAuthored WorkType = "authored"
	WorkReviewed WorkType = "reviewed"
)

// WorkTypes lists both directions in pipeline order.
var WorkTypes = []WorkType{WorkAuthored, WorkReviewed}

// Valid reports whether t is a known work type.
func (t WorkType) Valid() bool {
	return t == WorkAuthored || t == WorkReviewed
}

// LoadRoster reads the user roster from a YAML (or JSON) file.
// Every entry must carry a non-empty pr_user_name; duplicates are rejected.
func LoadRoster(path string) ([]User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster %s: %w", path, err)
	}
	var roster struct {
		Users []User `yaml:"users"`
	}
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}
	if len(roster.Users) == 0 {
		return nil, fmt.Errorf("roster %s contains no users", path)
	}
	seen := make(map[string]bool, len(roster.Users))
	for i, u := range roster.Users {
		if u.PRUserName == "" {
			return nil, fmt.Errorf("roster %s: entry %d has empty pr_user_name", path, i)
		}
		if seen[u.PRUserName] {
			return nil, fmt.Errorf("roster %s: duplicate pr_user_name %q", path, u.PRUserName)
		}
		seen[u.PRUserName] = true
	}
	return roster.Users, nil
}
