package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-issue-insights/internal/collector"
	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	"github.com/kurihiro0119/github-issue-insights/internal/prepare"
)

var (
	ingestRepo     string
	ingestMaxPages int

	prepareIssues   string
	prepareComments string
	prepareOutput   string

	finalizeInput  string
	finalizeOutput string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Collect issues and comments from GitHub",
	Long:  `Fetch every issue (pull requests excluded) and its comments for GITHUB_REPO and write them under DATA_DIR/raw.`,
	Args:  cobra.NoArgs,
	RunE:  runIngest,
}

var prepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Clean raw issues and assign rule-based categories",
	Args:  cobra.NoArgs,
	RunE:  runPrepare,
}

var finalizeCmd = &cobra.Command{
	Use:   "finalize",
	Short: "Project relabeled issues into the final dataset",
	Args:  cobra.NoArgs,
	RunE:  runFinalize,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestRepo, "repo", "", "repository as owner/name (overrides GITHUB_REPO)")
	ingestCmd.Flags().IntVar(&ingestMaxPages, "max-pages", -1, "issue pages of 100 to fetch, 0 for all (overrides GITHUB_MAX_PAGES)")

	prepareCmd.Flags().StringVar(&prepareIssues, "issues", "", "raw issues JSONL (default from DATA_DIR)")
	prepareCmd.Flags().StringVar(&prepareComments, "comments", "", "raw comments JSONL (default from DATA_DIR)")
	prepareCmd.Flags().StringVarP(&prepareOutput, "output", "o", "", "classified JSONL (default from DATA_DIR)")

	addPathFlags(finalizeCmd, &finalizeInput, &finalizeOutput)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if ingestRepo != "" {
		cfg.GitHubRepo = ingestRepo
	}
	if ingestMaxPages >= 0 {
		cfg.GitHubMaxPages = ingestMaxPages
	}
	if err := cfg.ValidateIngest(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	repo, err := domain.ParseRepository(cfg.GitHubRepo)
	if err != nil {
		return err
	}

	coll, err := collector.NewGitHubCollector(cfg.GitHubToken, collector.Options{
		RequestsPerSecond: cfg.GitHubRPS,
		Logger:            newLogger(cfg),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize collector: %w", err)
	}

	fmt.Printf("Collecting issues for %s\n", repo)
	data, err := coll.CollectRepositoryData(cmd.Context(), repo, cfg.GitHubMaxPages, func(done, total int) {
		fmt.Printf("\rFetching comments: %d/%d", done, total)
	})
	if err != nil {
		return fmt.Errorf("failed to collect data: %w", err)
	}
	fmt.Printf("\nCollected %d issues and %d comments\n", len(data.Issues), len(data.Comments))

	paths := cfg.Paths()
	if err := data.Save(paths.RawIssues, paths.RawComments); err != nil {
		return fmt.Errorf("failed to save data: %w", err)
	}
	fmt.Printf("Saved %s and %s\n", paths.RawIssues, paths.RawComments)
	return nil
}

func runPrepare(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	paths := cfg.Paths()
	output := orDefaultPath(prepareOutput, paths.Classified)

	stats, err := prepare.PrepareFiles(
		orDefaultPath(prepareIssues, paths.RawIssues),
		orDefaultPath(prepareComments, paths.RawComments),
		output,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare issues: %w", err)
	}

	if outputJSON {
		return printJSON(map[string]interface{}{
			"issues":      stats.Issues,
			"comments":    stats.Comments,
			"kept":        stats.Kept,
			"dropped":     stats.Dropped,
			"multi_label": stats.MultiLabel,
			"categories":  stats.Categories.Counts(),
		})
	}

	fmt.Printf("Prepared %d of %d issues (%d dropped, %d comments, %d multi-label)\n",
		stats.Kept, stats.Issues, stats.Dropped, stats.Comments, stats.MultiLabel)
	printDistribution(stats.Categories)
	fmt.Printf("Saved %s\n", output)
	return nil
}

func runFinalize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	paths := cfg.Paths()
	output := orDefaultPath(finalizeOutput, paths.Final)

	dist, err := prepare.FinalizeFile(orDefaultPath(finalizeInput, paths.Relabeled), output)
	if err != nil {
		return fmt.Errorf("failed to finalize: %w", err)
	}

	if outputJSON {
		return printJSON(dist.Counts())
	}
	printDistribution(dist)
	fmt.Printf("Saved %s\n", output)
	return nil
}

func printDistribution(dist prepare.Distribution) {
	total := 0
	for _, n := range dist {
		total += n
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Category", "Issues", "Share"})
	for _, c := range dist.Counts() {
		share := 0.0
		if total > 0 {
			share = float64(c.Count) / float64(total) * 100
		}
		table.Append([]string{c.Category, fmt.Sprintf("%d", c.Count), fmt.Sprintf("%.1f%%", share)})
	}
	table.Render()
}
