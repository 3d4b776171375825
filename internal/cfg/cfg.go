package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// LLM provider backends selectable via -llm-provider.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
)

// Config adds service-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	LLMProvider           string
	ClaudeAPIKey          string
	ClaudeModel           string
	OpenAIAPIKey          string
	OpenAIChatModel       string
	OpenAIEmbedModel      string
	EmbeddingDim          int
	CorpusDir             string
	DatabaseURL           string
	SlackWebhookURL       string
	MaxTurns              int
	RetrievalK            int
	ContextBudgetChars    int
	APIToken              string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.LLMProvider, "llm-provider", ProviderClaude, "LLM backend for generation: claude or openai")
	fs.StringVar(&c.ClaudeAPIKey, "claude-api-key", "", "API key for accessing the Claude LLM provider")
	fs.StringVar(&c.ClaudeModel, "claude-model", "claude-sonnet-4-20250514", "Claude model to use")
	fs.StringVar(&c.OpenAIAPIKey, "openai-api-key", "", "API key for the OpenAI provider (embeddings always; generation when llm-provider=openai)")
	fs.StringVar(&c.OpenAIChatModel, "openai-chat-model", "gpt-4o", "OpenAI chat model to use when llm-provider=openai")
	fs.StringVar(&c.OpenAIEmbedModel, "openai-embed-model", "text-embedding-3-small", "OpenAI embedding model for corpus and query embeddings")
	fs.IntVar(&c.EmbeddingDim, "embedding-dim", 768, "embedding vector dimension; must match the embedding model output")
	fs.StringVar(&c.CorpusDir, "corpus-dir", "", "directory of JSONL medical reference documents to index at startup")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for escalation notifications")
	fs.IntVar(&c.MaxTurns, "max-turns", 10, "patient turn ceiling before a session is force-finalized (1..50)")
	fs.IntVar(&c.RetrievalK, "retrieval-k", 5, "number of reference chunks retrieved per turn (1..50)")
	fs.IntVar(&c.ContextBudgetChars, "context-budget-chars", 6000, "character budget for retrieved context in the prompt (1..100000)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API requests (empty = no auth)")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Generation backend selection and its credentials
	switch c.LLMProvider {
	case ProviderClaude:
		if c.ClaudeAPIKey == "" {
			errs = append(errs, errors.New("CLAUDE_API_KEY is required when LLM_PROVIDER is claude"))
		}
		if c.ClaudeModel == "" {
			errs = append(errs, errors.New("CLAUDE_MODEL is required when LLM_PROVIDER is claude"))
		}
	case ProviderOpenAI:
		if c.OpenAIChatModel == "" {
			errs = append(errs, errors.New("OPENAI_CHAT_MODEL is required when LLM_PROVIDER is openai"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid LLM_PROVIDER %q (must be claude or openai)", c.LLMProvider))
	}

	// Embeddings always go through OpenAI regardless of the generation backend
	if c.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}
	if c.OpenAIEmbedModel == "" {
		errs = append(errs, errors.New("OPENAI_EMBED_MODEL is required"))
	}
	if c.EmbeddingDim <= 0 || c.EmbeddingDim > 8192 {
		errs = append(errs, fmt.Errorf("invalid EMBEDDING_DIM %d (must be 1..8192)", c.EmbeddingDim))
	}

	if c.MaxTurns <= 0 || c.MaxTurns > 50 {
		errs = append(errs, fmt.Errorf("invalid MAX_TURNS %d (must be 1..50)", c.MaxTurns))
	}
	if c.RetrievalK <= 0 || c.RetrievalK > 50 {
		errs = append(errs, fmt.Errorf("invalid RETRIEVAL_K %d (must be 1..50)", c.RetrievalK))
	}
	if c.ContextBudgetChars <= 0 || c.ContextBudgetChars > 100000 {
		errs = append(errs, fmt.Errorf("invalid CONTEXT_BUDGET_CHARS %d (must be 1..100000)", c.ContextBudgetChars))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
