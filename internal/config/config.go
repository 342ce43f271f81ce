// Package config loads pipeline configuration from the environment and
// an optional YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LLM provider names accepted by PRSYNC_LLM_PROVIDER.
const (
	ProviderOpenAI  = "openai"
	ProviderOllama  = "ollama"
	ProviderBedrock = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// GitHub
	GitHubToken   string
	GitHubBaseURL string
	GitHubOrg     string

	// LLM provider selection
	LLMProvider string

	// OpenAI
	OpenAIAPIKey         string
	OpenAIModel          string
	OpenAIEmbeddingModel string

	// Ollama
	OllamaHost           string
	OllamaModel          string
	OllamaEmbeddingModel string

	// Bedrock
	BedrockModel string
	AWSRegion    string

	// Pipeline
	BaseDir         string
	RosterFile      string
	StartDate       string // YYYY-MM-DD, inclusive
	EndDate         string // YYYY-MM-DD, inclusive
	MinStartDate    string // floor for incremental window extension
	BatchSize       int
	SingleBatch     bool
	StepTimeout     time.Duration
	DeleteArtifacts bool

	// Scoring
	MatchThreshold float64

	// BotPrefixes are handle prefixes treated as automated accounts.
	BotPrefixes []string

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "prsync"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "activity"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		GitHubToken:   getEnv("GITHUB_TOKEN", ""),
		GitHubBaseURL: getEnv("PRSYNC_GITHUB_API", "https://api.github.com"),
		GitHubOrg:     getEnv("PRSYNC_GITHUB_ORG", ""),

		LLMProvider: getEnv("PRSYNC_LLM_PROVIDER", ProviderOpenAI),

		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:          getEnv("PRSYNC_OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIEmbeddingModel: getEnv("PRSYNC_OPENAI_EMBEDDING_MODEL", "text-embedding-3-large"),

		OllamaHost:           getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:          getEnv("PRSYNC_OLLAMA_MODEL", "llama3.1"),
		OllamaEmbeddingModel: getEnv("PRSYNC_OLLAMA_EMBEDDING_MODEL", "all-minilm:l6-v2"),

		BedrockModel: getEnv("PRSYNC_BEDROCK_MODEL", "anthropic.claude-3-haiku-20240307-v1:0"),
		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),

		BaseDir:         getEnv("PRSYNC_BASE_DIR", "data"),
		RosterFile:      getEnv("PRSYNC_ROSTER_FILE", "users.yaml"),
		StartDate:       getEnv("PRSYNC_START_DATE", ""),
		EndDate:         getEnv("PRSYNC_END_DATE", ""),
		MinStartDate:    getEnv("PRSYNC_MIN_START_DATE", ""),
		BatchSize:       getEnvInt("PRSYNC_BATCH_SIZE", 10),
		SingleBatch:     getEnv("PRSYNC_SINGLE_BATCH", "false") == "true",
		StepTimeout:     getEnvDuration("PRSYNC_STEP_TIMEOUT", 900*time.Second),
		DeleteArtifacts: getEnv("PRSYNC_DELETE_ARTIFACTS", "false") == "true",

		MatchThreshold: getEnvFloat("PRSYNC_MATCH_THRESHOLD", 0.55),

		BotPrefixes: splitList(getEnv("PRSYNC_BOT_PREFIXES", "dependabot,renovate,coderabbit,copilot,github-actions")),

		LogFile:  getEnv("PRSYNC_LOG_FILE", "prsync.log"),
		LogLevel: parseLogLevel(getEnv("PRSYNC_LOG_LEVEL", "INFO")),
	}
}

// fileConfig mirrors the YAML overlay. Pointer fields distinguish
// "absent" from zero values.
type fileConfig struct {
	GitHubOrg       *string  `yaml:"github_org"`
	LLMProvider     *string  `yaml:"llm_provider"`
	BaseDir         *string  `yaml:"base_dir"`
	RosterFile      *string  `yaml:"roster_file"`
	StartDate       *string  `yaml:"start_date"`
	EndDate         *string  `yaml:"end_date"`
	MinStartDate    *string  `yaml:"min_start_date"`
	BatchSize       *int     `yaml:"batch_size"`
	SingleBatch     *bool    `yaml:"single_batch"`
	StepTimeoutSecs *int     `yaml:"step_timeout_seconds"`
	DeleteArtifacts *bool    `yaml:"delete_artifacts"`
	MatchThreshold  *float64 `yaml:"match_threshold"`
	BotPrefixes     []string `yaml:"bot_prefixes"`
	LogFile         *string  `yaml:"log_file"`
	LogLevel        *string  `yaml:"log_level"`
}

// ApplyFile overlays values from a YAML config file onto cfg. Keys not
// present in the file keep their environment-derived values.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	setIf(&c.GitHubOrg, fc.GitHubOrg)
	setIf(&c.LLMProvider, fc.LLMProvider)
	setIf(&c.BaseDir, fc.BaseDir)
	setIf(&c.RosterFile, fc.RosterFile)
	setIf(&c.StartDate, fc.StartDate)
	setIf(&c.EndDate, fc.EndDate)
	setIf(&c.MinStartDate, fc.MinStartDate)
	setIf(&c.BatchSize, fc.BatchSize)
	setIf(&c.SingleBatch, fc.SingleBatch)
	setIf(&c.DeleteArtifacts, fc.DeleteArtifacts)
	setIf(&c.MatchThreshold, fc.MatchThreshold)
	if len(fc.BotPrefixes) > 0 {
		c.BotPrefixes = fc.BotPrefixes
	}
	setIf(&c.LogFile, fc.LogFile)
	if fc.StepTimeoutSecs != nil {
		c.StepTimeout = time.Duration(*fc.StepTimeoutSecs) * time.Second
	}
	if fc.LogLevel != nil {
		c.LogLevel = parseLogLevel(*fc.LogLevel)
	}
	return nil
}

// Validate checks the fields every pipeline run depends on.
func (c Config) Validate() error {
	if c.GitHubOrg == "" {
		return fmt.Errorf("github_org is required (PRSYNC_GITHUB_ORG)")
	}
	if c.GitHubToken == "" {
		return fmt.Errorf("GITHUB_TOKEN is required")
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderOllama, ProviderBedrock:
	default:
		return fmt.Errorf("unknown LLM provider %q", c.LLMProvider)
	}
	for name, v := range map[string]string{
		"start_date": c.StartDate,
		"end_date":   c.EndDate,
	} {
		if v == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := time.Parse("2006-01-02", v); err != nil {
			return fmt.Errorf("%s %q is not YYYY-MM-DD: %w", name, v, err)
		}
	}
	if c.MinStartDate != "" {
		if _, err := time.Parse("2006-01-02", c.MinStartDate); err != nil {
			return fmt.Errorf("min_start_date %q is not YYYY-MM-DD: %w", c.MinStartDate, err)
		}
	}
	if c.StartDate > c.EndDate {
		return fmt.Errorf("start_date %s is after end_date %s", c.StartDate, c.EndDate)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1, got %d", c.BatchSize)
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("match_threshold must be in [0,1], got %g", c.MatchThreshold)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func setIf[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
