// Package llm provides embedding and chat-classification services using
// langchaingo, with per-call token metering.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/embeddings"
	embeddingsbedrock "github.com/tmc/langchaingo/embeddings/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/metrics"
)

// Embedder wraps langchaingo embeddings and meters token usage.
type Embedder struct {
	model     embeddings.Embedder
	modelName string
	collector *metrics.Collector
}

// NewEmbedder creates an embedder based on configuration.
func NewEmbedder(ctx context.Context, cfg config.Config, collector *metrics.Collector) (*Embedder, error) {
	var model embeddings.Embedder
	var modelName string

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		llm, err := ollama.New(
			ollama.WithModel(cfg.OllamaEmbeddingModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}
		modelName = cfg.OllamaEmbeddingModel

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		llm, err := openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithEmbeddingModel(cfg.OpenAIEmbeddingModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		model, err = embeddings.NewEmbedder(llm)
		if err != nil {
			return nil, fmt.Errorf("create openai embedder: %w", err)
		}
		modelName = cfg.OpenAIEmbeddingModel

	case config.ProviderBedrock:
		awscfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load AWS config: %w", err)
		}
		model, err = embeddingsbedrock.NewBedrock(
			embeddingsbedrock.WithClient(bedrockruntime.NewFromConfig(awscfg)),
			embeddingsbedrock.WithModel(cfg.BedrockModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock embedder: %w", err)
		}
		modelName = cfg.BedrockModel

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.LLMProvider)
	}

	return &Embedder{
		model:     model,
		modelName: modelName,
		collector: collector,
	}, nil
}

// Embed generates an embedding vector for text and meters its cost.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	start := time.Now()
	vectors, err := e.model.EmbedDocuments(ctx, texts)
	duration := time.Since(start)

	if err != nil {
		slog.Warn("embedding failed", "model", e.modelName, "count", len(texts), "duration_ms", duration.Milliseconds(), "error", err)
		return nil, wrapFatalError(fmt.Errorf("embed batch: %w", err))
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("count mismatch: got %d, want %d", len(vectors), len(texts))
	}

	tokens := int64(0)
	for _, t := range texts {
		tokens += EstimateTokens(t)
	}
	e.collector.RecordLLMUsage(metrics.OpEmbedding, duration, tokens, 0)

	slog.Debug("embedding complete", "model", e.modelName, "count", len(texts), "tokens", tokens, "duration_ms", duration.Milliseconds())
	return vectors, nil
}

// Model returns the embedding model name.
func (e *Embedder) Model() string {
	return e.modelName
}

// EstimateTokens approximates token count for billing when the provider
// doesn't return usage (roughly 4 characters per token for English).
func EstimateTokens(text string) int64 {
	n := int64(len(text)+3) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}
