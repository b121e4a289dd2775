package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-issue-insights/internal/config"
	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	"github.com/kurihiro0119/github-issue-insights/internal/llm"
	"github.com/kurihiro0119/github-issue-insights/internal/logging"
	"github.com/kurihiro0119/github-issue-insights/internal/orchestrator"
	"github.com/kurihiro0119/github-issue-insights/internal/ratelimit"
	"github.com/kurihiro0119/github-issue-insights/internal/storage"
	"github.com/kurihiro0119/github-issue-insights/internal/storage/postgres"
	"github.com/kurihiro0119/github-issue-insights/internal/storage/sqlite"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.New(cfg.LogLevel, os.Stderr)
}

func getStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}

// newGenerator builds the provider a stage is configured to use
func newGenerator(cfg *config.Config, tc config.TaskConfig, temperature float64, maxTokens int) (llm.Generator, error) {
	opts := llm.Options{
		Provider:    tc.Provider,
		Timeout:     cfg.LLM.RequestTimeout,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	switch tc.Provider {
	case llm.ProviderGemini:
		opts.APIKey = cfg.LLM.GoogleAPIKey
		opts.Model = cfg.LLM.GeminiModel
	case llm.ProviderHuggingFace:
		opts.APIKey = cfg.LLM.HFToken
		opts.BaseURL = cfg.LLM.HFModelURL
	case llm.ProviderOllama:
		opts.BaseURL = cfg.LLM.OllamaURL
		opts.Model = cfg.LLM.OllamaModel
	case llm.ProviderAnthropic:
		opts.APIKey = cfg.LLM.AnthropicAPIKey
		opts.Model = cfg.LLM.AnthropicModel
	}
	return llm.New(opts)
}

// newLimiter turns a stage's window settings into a limiter: the rolling
// window waits, the daily quota stops the run
func newLimiter(tc config.TaskConfig) *ratelimit.Limiter {
	return ratelimit.New(
		ratelimit.Window{Name: "window", Limit: tc.WindowLimit, Period: tc.Window},
		ratelimit.Window{Name: "day", Limit: tc.PerDay, Period: 24 * time.Hour, Hard: true},
	)
}

func schedulerConfig(tc config.TaskConfig, input, output string) orchestrator.Config {
	return orchestrator.Config{
		InputPath:       input,
		OutputPath:      output,
		BatchSize:       tc.BatchSize,
		InterBatchDelay: tc.InterBatchDelay,
		MaxFailures:     tc.MaxFailures,
		Retry: orchestrator.RetryPolicy{
			MaxAttempts:       tc.MaxAttempts,
			InitialDelay:      tc.InitialDelay,
			RateLimitCooldown: tc.Cooldown,
		},
	}
}

// stageEnv is what every LLM stage command needs
type stageEnv struct {
	cfg   *config.Config
	log   zerolog.Logger
	store storage.Storage
	gen   llm.Generator
}

func (e *stageEnv) Close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

func newStageEnv(prefix string, tc func(*config.Config) config.TaskConfig, temperature float64, maxTokens int) (*stageEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateTask(prefix, tc(cfg)); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	gen, err := newGenerator(cfg, tc(cfg), temperature, maxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", tc(cfg).Provider, err)
	}

	store, err := getStorage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &stageEnv{cfg: cfg, log: newLogger(cfg), store: store, gen: gen}, nil
}

// orDefaultPath lets a --input/--output flag override the data-dir layout
func orDefaultPath(flagValue, def string) string {
	if flagValue != "" {
		return flagValue
	}
	return def
}

func addPathFlags(cmd *cobra.Command, input, output *string) {
	cmd.Flags().StringVarP(input, "input", "i", "", "input JSONL file (default from DATA_DIR)")
	cmd.Flags().StringVarP(output, "output", "o", "", "output JSONL file (default from DATA_DIR)")
}

// reportRun prints the run summary. Stops on quota or gate are reported but
// are not errors; the output written so far stays in place.
func reportRun(run *domain.Run, runErr error) error {
	if run != nil {
		if outputJSON {
			if err := printJSON(run); err != nil {
				return err
			}
		} else {
			printRunTable(run)
		}

		switch run.StopReason {
		case domain.StopQuotaExhausted:
			fmt.Printf("Stopped: daily quota reached, %d records remain. Rerun later to resume.\n", run.Remaining)
		case domain.StopGateFailed:
			fmt.Printf("Stopped: accuracy gate failed (%.1f%%). Nothing was processed.\n", accuracyPercent(run))
		}
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

func printRunTable(run *domain.Run) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Run", run.ID})
	table.Append([]string{"Task", run.Task})
	table.Append([]string{"Provider", run.Provider})
	table.Append([]string{"Status", string(run.Status)})
	table.Append([]string{"Resumed", fmt.Sprintf("%t", run.Resumed)})
	table.Append([]string{"Records", fmt.Sprintf("%d", run.Total)})
	table.Append([]string{"Already Done", fmt.Sprintf("%d", run.Done)})
	table.Append([]string{"Eligible", fmt.Sprintf("%d", run.Eligible)})
	table.Append([]string{"Precomputed", fmt.Sprintf("%d", run.Precomputed)})
	table.Append([]string{"Processed", fmt.Sprintf("%d", run.Processed)})
	table.Append([]string{"Failed", fmt.Sprintf("%d", run.Failed)})
	table.Append([]string{"Remaining", fmt.Sprintf("%d", run.Remaining)})
	table.Append([]string{"Batches", fmt.Sprintf("%d", run.Batches)})
	table.Append([]string{"API Requests", fmt.Sprintf("%d", run.Requests)})
	if run.GateAccuracy != nil {
		table.Append([]string{"Gate Accuracy", fmt.Sprintf("%.1f%%", accuracyPercent(run))})
	}
	table.Append([]string{"Elapsed", orchestrator.Elapsed(run).Round(time.Millisecond).String()})
	table.Render()
}

func accuracyPercent(run *domain.Run) float64 {
	if run.GateAccuracy == nil {
		return 0
	}
	return *run.GateAccuracy * 100
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
