package classify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/llm"
	"github.com/falconiq/prsync/internal/models"
	"github.com/falconiq/prsync/internal/syncer"
	"github.com/falconiq/prsync/internal/task"
)

// BotPredicate reports whether a comment author is an automated
// reviewer account.
type BotPredicate func(author string) bool

// BotPrefixes builds a predicate matching handle prefixes
// case-insensitively, e.g. "coderabbit" matches "coderabbitai[bot]".
func BotPrefixes(prefixes []string) BotPredicate {
	lowered := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p != "" {
			lowered = append(lowered, strings.ToLower(p))
		}
	}
	return func(author string) bool {
		a := strings.ToLower(author)
		if a == "" {
			return false
		}
		for _, p := range lowered {
			if strings.HasPrefix(a, p) {
				return true
			}
		}
		return false
	}
}

// Generator is the slice of the LLM layer the classifier needs.
type Generator interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, llm.Usage, error)
}

// Classifier assigns taxonomy verdicts to extracted comments in
// batches, consulting the cache and the bot predicate before spending
// any tokens.
type Classifier struct {
	model       Generator
	paths       config.Paths
	batchSize   int
	singleBatch bool
	isBot       BotPredicate
	logger      *slog.Logger
}

// NewClassifier builds a classifier. singleBatch limits a run to one
// LLM batch so cron-style invocations make bounded progress.
func NewClassifier(model Generator, paths config.Paths, batchSize int, singleBatch bool, isBot BotPredicate, logger *slog.Logger) *Classifier {
	if batchSize < 1 {
		batchSize = 1
	}
	if isBot == nil {
		isBot = func(string) bool { return false }
	}
	return &Classifier{
		model:       model,
		paths:       paths,
		batchSize:   batchSize,
		singleBatch: singleBatch,
		isBot:       isBot,
		logger:      logger,
	}
}

// Summary reports what one classification run did.
type Summary struct {
	Total        int
	FromCache    int
	Bots         int
	Empty        int
	Classified   int
	Remaining    int
	Batches      int
	InputTokens  int64
	OutputTokens int64
}

// ClassifyUser classifies the extracted comments of one task. Cached
// comment IDs are never re-submitted; bot and empty comments are
// short-circuited without an LLM call. Progress survives interruption:
// the cache and status record are saved after every batch.
func (c *Classifier) ClassifyUser(ctx context.Context, t *task.Task) (Summary, error) {
	if t.Status.Before(task.StatusDetailsDownloaded) {
		return Summary{}, fmt.Errorf("task %s/%s: details not downloaded yet (status %s)", t.PRUserName, t.Work, t.Status)
	}
	statusPath := c.paths.ClassifyStatusFile(t.PRUserName, t.Work)
	outPath := c.paths.ClassifiedFile(t.PRUserName, t.Work)
	if done, err := task.StageCompleted(statusPath); err != nil {
		return Summary{}, err
	} else if done {
		if _, err := os.Stat(outPath); err == nil {
			c.logger.Info("classification already complete", "user", t.PRUserName, "work", t.Work)
			return Summary{}, nil
		}
	}

	extracted, err := syncer.ReadCommentsCSV(c.paths.ExtractedFile(t.PRUserName, t.Work, t.StartDate, t.EndDate))
	if err != nil {
		return Summary{}, err
	}
	cache, err := LoadCache(c.paths.CacheFile(t.PRUserName, t.Work))
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Total: len(extracted)}
	verdicts := make(map[string]models.Classification, len(extracted))
	var pending []models.Comment
	for _, comment := range extracted {
		switch {
		case c.cached(cache, comment, verdicts):
			sum.FromCache++
		case c.isBot(comment.Author):
			c.shortCircuit(cache, verdicts, botVerdict(comment.ID))
			sum.Bots++
		case strings.TrimSpace(comment.Body) == "":
			c.shortCircuit(cache, verdicts, emptyVerdict(comment.ID))
			sum.Empty++
		default:
			pending = append(pending, comment)
		}
	}

	runErr := c.runBatches(ctx, cache, verdicts, pending, &sum)

	sum.Remaining = sum.Total - len(verdicts)
	if saveErr := cache.Save(); saveErr != nil && runErr == nil {
		runErr = saveErr
	}
	if sum.Remaining == 0 && runErr == nil {
		ordered := make([]models.Classification, 0, len(extracted))
		for _, comment := range extracted {
			ordered = append(ordered, verdicts[comment.ID])
		}
		if err := syncer.WriteClassifiedCSV(outPath, ordered); err != nil {
			return sum, err
		}
	}
	st := task.StageStatus{
		PRUserName: t.PRUserName,
		Work:       t.Work,
		Completed:  sum.Remaining == 0 && runErr == nil,
		Processed:  len(verdicts),
		Remaining:  sum.Remaining,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := task.WriteRecord(statusPath, &st); err != nil && runErr == nil {
		runErr = err
	}
	c.logger.Info("classification run finished",
		"user", t.PRUserName, "work", t.Work,
		"total", sum.Total, "cached", sum.FromCache, "bots", sum.Bots,
		"classified", sum.Classified, "remaining", sum.Remaining)
	return sum, runErr
}

func (c *Classifier) runBatches(ctx context.Context, cache *Cache, verdicts map[string]models.Classification, pending []models.Comment, sum *Summary) error {
	for start := 0; start < len(pending); start += c.batchSize {
		batch := pending[start:min(start+c.batchSize, len(pending))]
		user, err := userPrompt(batch)
		if err != nil {
			return err
		}
		raw, usage, err := c.model.GenerateJSON(ctx, systemPrompt(), user)
		if err != nil {
			return fmt.Errorf("classifying batch of %d: %w", len(batch), err)
		}
		sum.Batches++
		sum.InputTokens += usage.InputTokens
		sum.OutputTokens += usage.OutputTokens

		inBatch := make(map[string]bool, len(batch))
		for _, comment := range batch {
			inBatch[comment.ID] = true
		}
		wire, err := parseResponse(raw)
		if err != nil {
			return err
		}
		for _, w := range wire {
			if !inBatch[w.CommentID] {
				c.logger.Warn("dropping verdict for unknown comment", "comment_id", w.CommentID)
				continue
			}
			if _, seen := verdicts[w.CommentID]; seen {
				continue
			}
			v := applyGuardrails(w)
			cache.Put(v)
			verdicts[w.CommentID] = v
			sum.Classified++
		}
		if err := cache.Save(); err != nil {
			return err
		}
		if c.singleBatch {
			return nil
		}
	}
	return nil
}

func (c *Classifier) cached(cache *Cache, comment models.Comment, verdicts map[string]models.Classification) bool {
	v, ok := cache.Get(comment.ID)
	if ok {
		verdicts[comment.ID] = v
	}
	return ok
}

func (c *Classifier) shortCircuit(cache *Cache, verdicts map[string]models.Classification, v models.Classification) {
	cache.Put(v)
	verdicts[v.CommentID] = v
}

func botVerdict(commentID string) models.Classification {
	return models.Classification{
		CommentID:           commentID,
		Category:            models.CategoryPraiseAck,
		SecondaryCategories: []models.Category{models.CategoryAIGenerated},
		Severity:            models.SeverityTrivial,
		Actionable:          false,
		Rationale:           "Automated reviewer account, skipped LLM classification.",
		Source:              "bot",
	}
}

func emptyVerdict(commentID string) models.Classification {
	return models.Classification{
		CommentID:  commentID,
		Category:   models.CategoryPraiseAck,
		Severity:   models.SeverityTrivial,
		Actionable: false,
		Rationale:  "Empty comment body, likely an approval.",
		Source:     "empty",
	}
}
