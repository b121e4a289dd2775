package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// GitHub
	GitHubToken    string
	GitHubRepo     string // owner/name
	GitHubMaxPages int
	GitHubRPS      float64

	// Pipeline
	DataDir  string
	LogLevel string

	// Storage
	StorageType string // "sqlite" or "postgres"
	SQLitePath  string
	PostgresURL string

	// API Server
	APIPort string
	APIHost string

	// CLI
	APIEndpoint string

	LLM LLMConfig

	Relabel   TaskConfig
	Summarize TaskConfig
	Insights  TaskConfig
}

// LLMConfig holds provider credentials and models
type LLMConfig struct {
	Provider        string // default provider when a task does not name one
	GoogleAPIKey    string
	GeminiModel     string
	HFToken         string
	HFModelURL      string
	OllamaURL       string
	OllamaModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	RequestTimeout  time.Duration
}

// TaskConfig holds the batch settings of one LLM stage
type TaskConfig struct {
	Provider        string
	BatchSize       int
	WindowLimit     int           // soft cap per Window
	Window          time.Duration // rolling window for WindowLimit
	PerDay          int           // hard daily quota, 0 for none
	MaxAttempts     int
	InitialDelay    time.Duration
	Cooldown        time.Duration // extra wait after HTTP 429
	InterBatchDelay time.Duration // negative disables the pause
	MaxFailures     int
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom loads envFile before reading the environment. An empty envFile
// means an optional .env in the working directory.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, &ConfigError{Field: "config", Message: fmt.Sprintf("cannot read %s: %v", envFile, err)}
		}
	} else {
		// Load .env file if it exists (ignore error if not found)
		_ = godotenv.Load()
	}

	provider := getEnv("LLM_PROVIDER", "")

	cfg := &Config{
		GitHubToken:    getEnv("GITHUB_TOKEN", ""),
		GitHubRepo:     getEnv("GITHUB_REPO", "langchain-ai/langchain"),
		GitHubMaxPages: getEnvInt("GITHUB_MAX_PAGES", 30),
		GitHubRPS:      getEnvFloat("GITHUB_RPS", 5),
		DataDir:        getEnv("DATA_DIR", "./data"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		StorageType:    getEnv("STORAGE_TYPE", "sqlite"),
		SQLitePath:     getEnv("SQLITE_PATH", "./insights.db"),
		PostgresURL:    getEnv("POSTGRES_URL", ""),
		APIPort:        getEnv("API_PORT", "8080"),
		APIHost:        getEnv("API_HOST", "localhost"),
		APIEndpoint:    getEnv("API_ENDPOINT", "http://localhost:8080"),
		LLM: LLMConfig{
			Provider:        provider,
			GoogleAPIKey:    getEnv("GOOGLE_API_KEY", ""),
			GeminiModel:     getEnv("GEMINI_MODEL", ""),
			HFToken:         getEnv("HF_TOKEN", ""),
			HFModelURL:      getEnv("HF_MODEL_URL", ""),
			OllamaURL:       getEnv("OLLAMA_URL", ""),
			OllamaModel:     getEnv("OLLAMA_MODEL", ""),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			AnthropicModel:  getEnv("ANTHROPIC_MODEL", ""),
			RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		},
	}

	cfg.Relabel = loadTask("RELABEL", orDefault(provider, "gemini"), TaskConfig{
		BatchSize:       3,
		WindowLimit:     10,
		Window:          time.Minute,
		PerDay:          1500,
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		Cooldown:        60 * time.Second,
		InterBatchDelay: time.Second,
		MaxFailures:     3,
	})
	cfg.Summarize = loadTask("SUMMARIZE", orDefault(provider, "huggingface"), TaskConfig{
		BatchSize:       1,
		WindowLimit:     100,
		Window:          5 * time.Minute,
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		Cooldown:        60 * time.Second,
		InterBatchDelay: time.Second,
		MaxFailures:     3,
	})
	cfg.Insights = loadTask("INSIGHTS", orDefault(provider, "ollama"), TaskConfig{
		BatchSize:       10,
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		Cooldown:        60 * time.Second,
		InterBatchDelay: time.Second,
		MaxFailures:     3,
	})

	return cfg, nil
}

// loadTask reads PREFIX_* overrides on top of def. PREFIX_RPM sets a
// per-minute window; PREFIX_WINDOW_LIMIT with PREFIX_WINDOW sets any other.
func loadTask(prefix, provider string, def TaskConfig) TaskConfig {
	tc := TaskConfig{
		Provider:        getEnv(prefix+"_PROVIDER", provider),
		BatchSize:       getEnvInt(prefix+"_BATCH_SIZE", def.BatchSize),
		WindowLimit:     getEnvInt(prefix+"_WINDOW_LIMIT", def.WindowLimit),
		Window:          getEnvDuration(prefix+"_WINDOW", def.Window),
		PerDay:          getEnvInt(prefix+"_RPD", def.PerDay),
		MaxAttempts:     getEnvInt(prefix+"_MAX_ATTEMPTS", def.MaxAttempts),
		InitialDelay:    getEnvDuration(prefix+"_INITIAL_DELAY", def.InitialDelay),
		Cooldown:        getEnvDuration(prefix+"_COOLDOWN", def.Cooldown),
		InterBatchDelay: getEnvDuration(prefix+"_INTER_BATCH_DELAY", def.InterBatchDelay),
		MaxFailures:     getEnvInt(prefix+"_MAX_FAILURES", def.MaxFailures),
	}
	if rpm := getEnvInt(prefix+"_RPM", 0); rpm > 0 {
		tc.WindowLimit = rpm
		tc.Window = time.Minute
	}
	return tc
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt parses an integer variable; unparsable values fall back to the default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat parses a float variable
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration parses a duration such as "1500ms" or "5m"; a bare number is seconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

// Validate validates the storage settings shared by every command
func (c *Config) Validate() error {
	if c.StorageType != "sqlite" && c.StorageType != "postgres" {
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'sqlite' or 'postgres'"}
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	if c.DataDir == "" {
		return &ConfigError{Field: "DATA_DIR", Message: "data directory is required"}
	}
	return nil
}

// ValidateIngest checks the settings needed to fetch from GitHub
func (c *Config) ValidateIngest() error {
	if c.GitHubToken == "" {
		return &ConfigError{Field: "GITHUB_TOKEN", Message: "GitHub token is required"}
	}
	if c.GitHubRepo == "" || !strings.Contains(c.GitHubRepo, "/") {
		return &ConfigError{Field: "GITHUB_REPO", Message: "must be owner/name"}
	}
	return nil
}

// ValidateTask checks the batch settings and provider credentials of one stage
func (c *Config) ValidateTask(prefix string, tc TaskConfig) error {
	if tc.BatchSize <= 0 {
		return &ConfigError{Field: prefix + "_BATCH_SIZE", Message: "must be positive"}
	}
	if tc.MaxAttempts <= 0 {
		return &ConfigError{Field: prefix + "_MAX_ATTEMPTS", Message: "must be positive"}
	}
	if tc.WindowLimit > 0 && tc.Window <= 0 {
		return &ConfigError{Field: prefix + "_WINDOW", Message: "must be positive when a window limit is set"}
	}
	switch tc.Provider {
	case "gemini":
		if c.LLM.GoogleAPIKey == "" {
			return &ConfigError{Field: "GOOGLE_API_KEY", Message: "required for the gemini provider"}
		}
	case "huggingface":
		if c.LLM.HFToken == "" {
			return &ConfigError{Field: "HF_TOKEN", Message: "required for the huggingface provider"}
		}
	case "anthropic":
		if c.LLM.AnthropicAPIKey == "" {
			return &ConfigError{Field: "ANTHROPIC_API_KEY", Message: "required for the anthropic provider"}
		}
	case "ollama":
	default:
		return &ConfigError{Field: prefix + "_PROVIDER", Message: "must be gemini, huggingface, ollama or anthropic"}
	}
	return nil
}

// Paths are the pipeline's files under DataDir
type Paths struct {
	RawIssues      string
	RawComments    string
	Classified     string
	Relabeled      string
	Final          string
	Summarized     string
	InsightRecords string
	Insights       string
}

// Paths returns the default file layout under DataDir
func (c *Config) Paths() Paths {
	raw := filepath.Join(c.DataDir, "raw")
	processed := filepath.Join(c.DataDir, "processed")
	return Paths{
		RawIssues:      filepath.Join(raw, "issues.jsonl"),
		RawComments:    filepath.Join(raw, "comments.jsonl"),
		Classified:     filepath.Join(processed, "classified.jsonl"),
		Relabeled:      filepath.Join(processed, "relabeled.jsonl"),
		Final:          filepath.Join(processed, "final.jsonl"),
		Summarized:     filepath.Join(processed, "summarized.jsonl"),
		InsightRecords: filepath.Join(processed, "insight_records.jsonl"),
		Insights:       filepath.Join(processed, "insights.jsonl"),
	}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
