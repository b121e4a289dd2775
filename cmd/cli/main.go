package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	outputJSON bool
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "issue-insights",
	Short: "GitHub issue insights pipeline",
	Long: `A CLI tool for turning a repository's GitHub issues into labeled,
summarized and analyzed datasets.

Stages run in order: ingest, prepare, relabel, finalize, summarize and
insights. Each LLM stage is resumable: rerunning it continues from the
records already written to its output file.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "env file to load (default is .env)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(prepareCmd)
	rootCmd.AddCommand(relabelCmd)
	rootCmd.AddCommand(finalizeCmd)
	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(insightsCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(digestCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
