package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-issue-insights/internal/config"
	"github.com/kurihiro0119/github-issue-insights/internal/orchestrator"
	"github.com/kurihiro0119/github-issue-insights/internal/pipeline"
)

var (
	relabelAll    bool
	relabelSeed   int64
	relabelInput  string
	relabelOutput string

	summarizeInput  string
	summarizeOutput string

	insightsInput  string
	insightsOutput string
	insightsFile   string
)

var relabelCmd = &cobra.Command{
	Use:   "relabel",
	Short: "Classify issues with an LLM",
	Long: `Classify issues into bug, feature, question or other. By default only
issues with no label, several labels or the "other" category are sent.

A fresh run first checks the model against 20 rule-labeled issues and stops
when fewer than 80% agree.`,
	Args: cobra.NoArgs,
	RunE: runRelabel,
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize each issue with an LLM",
	Args:  cobra.NoArgs,
	RunE:  runSummarize,
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Extract business and technical insights from batches of issues",
	Args:  cobra.NoArgs,
	RunE:  runInsights,
}

func init() {
	relabelCmd.Flags().BoolVar(&relabelAll, "all", false, "classify every issue, not only uncertain ones")
	relabelCmd.Flags().Int64Var(&relabelSeed, "seed", 42, "seed for the accuracy gate sample")
	addPathFlags(relabelCmd, &relabelInput, &relabelOutput)

	addPathFlags(summarizeCmd, &summarizeInput, &summarizeOutput)

	addPathFlags(insightsCmd, &insightsInput, &insightsOutput)
	insightsCmd.Flags().StringVar(&insightsFile, "insights-file", "", "JSONL file insight sets are appended to (default from DATA_DIR)")
}

func runRelabel(cmd *cobra.Command, args []string) error {
	env, err := newStageEnv("RELABEL", func(c *config.Config) config.TaskConfig { return c.Relabel }, 0.1, 0)
	if err != nil {
		return err
	}
	defer env.Close()

	tc := env.cfg.Relabel
	paths := env.cfg.Paths()
	s := orchestrator.New(
		pipeline.NewRelabel(relabelAll),
		env.gen,
		newLimiter(tc),
		schedulerConfig(tc, orDefaultPath(relabelInput, paths.Classified), orDefaultPath(relabelOutput, paths.Relabeled)),
		orchestrator.WithLogger(env.log),
		orchestrator.WithJournal(env.store),
		orchestrator.WithGate(pipeline.NewAccuracyGate(relabelSeed, env.log)),
	)
	return reportRun(s.Run(cmd.Context()))
}

func runSummarize(cmd *cobra.Command, args []string) error {
	env, err := newStageEnv("SUMMARIZE", func(c *config.Config) config.TaskConfig { return c.Summarize }, 0.3, 0)
	if err != nil {
		return err
	}
	defer env.Close()

	tc := env.cfg.Summarize
	paths := env.cfg.Paths()
	s := orchestrator.New(
		pipeline.NewSummarize(),
		env.gen,
		newLimiter(tc),
		schedulerConfig(tc, orDefaultPath(summarizeInput, paths.Final), orDefaultPath(summarizeOutput, paths.Summarized)),
		orchestrator.WithLogger(env.log),
		orchestrator.WithJournal(env.store),
	)
	return reportRun(s.Run(cmd.Context()))
}

func runInsights(cmd *cobra.Command, args []string) error {
	env, err := newStageEnv("INSIGHTS", func(c *config.Config) config.TaskConfig { return c.Insights }, 0.7, 2048)
	if err != nil {
		return err
	}
	defer env.Close()

	tc := env.cfg.Insights
	paths := env.cfg.Paths()
	sink := &pipeline.InsightSink{
		Path:  orDefaultPath(insightsFile, paths.Insights),
		Store: env.store,
		Now:   time.Now,
	}
	s := orchestrator.New(
		pipeline.NewInsights(),
		env.gen,
		newLimiter(tc),
		schedulerConfig(tc, orDefaultPath(insightsInput, paths.Summarized), orDefaultPath(insightsOutput, paths.InsightRecords)),
		orchestrator.WithLogger(env.log),
		orchestrator.WithJournal(env.store),
		orchestrator.WithSink(sink),
	)
	return reportRun(s.Run(cmd.Context()))
}
