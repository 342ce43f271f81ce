// Package classify turns extracted review comments into taxonomy
// verdicts via an LLM, with a bot short-circuit and a per-comment cache
// so spend only ever grows with new comments.
package classify

import (
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/task"
)

// Cache holds classification verdicts keyed by comment ID. A cache hit
// means the comment is never re-submitted to the LLM.
type Cache struct {
	path    string
	entries map[string]models.Classification
}

// LoadCache reads the cache at path. A missing or unreadable file
// yields an empty cache; unparsable files are backed up aside by the
// record layer.
func LoadCache(path string) (*Cache, error) {
	c := &Cache{path: path, entries: make(map[string]models.Classification)}
	if _, err := task.ReadRecord(path, &c.entries); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the cached verdict for a comment ID. The returned copy is
// marked with source "cache" so reuse is visible downstream.
func (c *Cache) Get(commentID string) (models.Classification, bool) {
	v, ok := c.entries[commentID]
	if !ok {
		return models.Classification{}, false
	}
	v.Source = "cache"
	return v, true
}

// Put stores a verdict under its comment ID.
func (c *Cache) Put(v models.Classification) {
	c.entries[v.CommentID] = v
}

// Save persists the cache atomically.
func (c *Cache) Save() error {
	return task.WriteRecord(c.path, c.entries)
}

// Len reports the number of cached verdicts.
func (c *Cache) Len() int {
	return len(c.entries)
}
