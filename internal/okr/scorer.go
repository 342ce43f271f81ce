// Package okr links pull requests to OKR goals with a hybrid
// semantic/lexical scoring strategy and keyword fallback buckets.
package okr

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/falconiq/prsync/internal/models"
)

// Weights combines the three score components. They should sum to 1 so
// the total stays in [0, 1].
type Weights struct {
	Semantic float64
	Lexical  float64
	Acronym  float64
}

// DefaultWeights favor semantic similarity, with lexical overlap and the
// acronym bonus rescuing matches that embeddings miss.
var DefaultWeights = Weights{Semantic: 0.6, Lexical: 0.3, Acronym: 0.1}

// Scorer scores a PR text against one goal.
type Scorer interface {
	Score(ctx context.Context, prText string, goal models.Goal) (models.ScoreBreakdown, error)
}

// EmbeddingClient is the slice of the LLM layer the scorer needs.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// HybridScorer computes weighted semantic + lexical + acronym scores.
// Embeddings are cached by text for the scorer's lifetime, so one
// mapping run embeds each PR and each goal once.
type HybridScorer struct {
	embedder EmbeddingClient
	weights  Weights
	cache    map[string][]float32
}

// NewHybridScorer builds a scorer with the given weights.
func NewHybridScorer(embedder EmbeddingClient, weights Weights) *HybridScorer {
	return &HybridScorer{
		embedder: embedder,
		weights:  weights,
		cache:    make(map[string][]float32),
	}
}

// Score computes the hybrid score breakdown for one PR/goal pair. The
// total is always in [0, 1].
func (s *HybridScorer) Score(ctx context.Context, prText string, goal models.Goal) (models.ScoreBreakdown, error) {
	prVec, err := s.embed(ctx, prText)
	if err != nil {
		return models.ScoreBreakdown{}, err
	}
	goalVec, err := s.embed(ctx, goal.Text())
	if err != nil {
		return models.ScoreBreakdown{}, err
	}

	breakdown := models.ScoreBreakdown{
		Semantic: semanticScore(prVec, goalVec),
		Lexical:  lexicalOverlap(prText, goal.Text()),
		Acronym:  acronymBonus(prText, goal.Title),
	}
	breakdown.Total = clamp01(s.weights.Semantic*breakdown.Semantic +
		s.weights.Lexical*breakdown.Lexical +
		s.weights.Acronym*breakdown.Acronym)
	return breakdown, nil
}

func (s *HybridScorer) embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := s.cache[text]; ok {
		return vec, nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.cache[text] = vec
	return vec, nil
}

// semanticScore is cosine similarity clamped to [0, 1]. Negative
// similarity carries no signal for matching, so it floors at zero.
func semanticScore(a, b []float32) float64 {
	return clamp01(cosineSimilarity(a, b))
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// stopwords excluded from lexical tokens and acronym building.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"this": true, "that": true, "are": true, "was": true, "will": true,
	"have": true, "has": true, "not": true, "our": true, "all": true,
	"its": true, "via": true, "per": true, "into": true, "onto": true,
}

// tokenize lowercases and splits on non-alphanumerics, dropping
// stopwords and tokens shorter than three characters.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(field) < 3 || stopwords[field] {
			continue
		}
		tokens[field] = true
	}
	return tokens
}

// lexicalOverlap is the overlap coefficient of the two token sets:
// |intersection| / min(|a|, |b|), in [0, 1].
func lexicalOverlap(prText, goalText string) float64 {
	a := tokenize(prText)
	b := tokenize(goalText)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for tok := range a {
		if b[tok] {
			shared++
		}
	}
	return float64(shared) / float64(min(len(a), len(b)))
}

// goalName extracts the significant name words of a goal title,
// lowercased. Stopwords and tokens carrying digits (quarter markers
// like "Q1", version numbers) are not part of the name.
func goalName(title string) []string {
	var words []string
	for _, word := range strings.Fields(title) {
		lower := strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r)
		}))
		if lower == "" || stopwords[lower] || strings.ContainsFunc(word, unicode.IsDigit) {
			continue
		}
		words = append(words, lower)
	}
	return words
}

// goalAcronym is the uppercase acronym of the goal's name words, e.g.
// "Reserved Ads Q1" yields "RA". Names under two words have none.
func goalAcronym(title string) string {
	words := goalName(title)
	if len(words) < 2 {
		return ""
	}
	var sb strings.Builder
	for _, w := range words {
		sb.WriteRune(unicode.ToUpper([]rune(w)[0]))
	}
	return sb.String()
}

// acronymBonus is 1 when the PR text names the goal, either by its
// acronym verbatim as a standalone uppercase word or by spelling out
// the name words in sequence, else 0.
func acronymBonus(prText, goalTitle string) float64 {
	acr := goalAcronym(goalTitle)
	if acr == "" {
		return 0
	}
	for _, field := range strings.FieldsFunc(prText, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if field == acr {
			return 1
		}
	}
	phrase := strings.Join(goalName(goalTitle), " ")
	if strings.Contains(strings.Join(strings.Fields(strings.ToLower(prText)), " "), phrase) {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
