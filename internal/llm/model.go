package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/falconiq/prsync/internal/config"
	"github.com/falconiq/prsync/internal/metrics"
)

// Usage reports billed tokens for one generation call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Model wraps a langchaingo chat model for classification calls.
type Model struct {
	llm       llms.Model
	modelName string
	collector *metrics.Collector
}

// NewModel creates an LLM model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, collector *metrics.Collector) (*Model, error) {
	var model llms.Model
	var modelName string
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.OllamaModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		modelName = cfg.OllamaModel

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.OpenAIModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		modelName = cfg.OpenAIModel

	case config.ProviderBedrock:
		awscfg, awsErr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if awsErr != nil {
			return nil, fmt.Errorf("load AWS config: %w", awsErr)
		}
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awscfg)),
			bedrock.WithModel(cfg.BedrockModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}
		modelName = cfg.BedrockModel

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:       model,
		modelName: modelName,
		collector: collector,
	}, nil
}

// GenerateJSON sends a system+user prompt pair in JSON mode and returns
// the raw response text plus billed token usage.
func (m *Model) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages, llms.WithJSONMode())
	duration := time.Since(start)
	if err != nil {
		return "", Usage{}, wrapFatalError(fmt.Errorf("generate: %w", err))
	}
	if len(response.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("no response choices")
	}

	choice := response.Choices[0]
	usage := usageFromInfo(choice.GenerationInfo)
	if usage.InputTokens == 0 {
		// Providers that omit usage still need cost accounting.
		usage.InputTokens = EstimateTokens(systemPrompt) + EstimateTokens(userPrompt)
		usage.OutputTokens = EstimateTokens(choice.Content)
	}
	m.collector.RecordLLMUsage(metrics.OpLLMClassify, duration, usage.InputTokens, usage.OutputTokens)

	return choice.Content, usage, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// usageFromInfo pulls token counts out of GenerationInfo. Providers
// disagree on key names and numeric types.
func usageFromInfo(info map[string]any) Usage {
	var u Usage
	for _, key := range []string{"PromptTokens", "prompt_tokens", "input_tokens"} {
		if n, ok := asInt64(info[key]); ok {
			u.InputTokens = n
			break
		}
	}
	for _, key := range []string{"CompletionTokens", "completion_tokens", "output_tokens"} {
		if n, ok := asInt64(info[key]); ok {
			u.OutputTokens = n
			break
		}
	}
	return u
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	}
	return 0, false
}
