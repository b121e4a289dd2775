package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kurihiro0119/github-issue-insights/internal/aggregator"
	"github.com/kurihiro0119/github-issue-insights/internal/domain"
	"github.com/kurihiro0119/github-issue-insights/pkg/client"
)

var (
	runsTask   string
	runsLimit  int
	useRemote  bool
	digestSets int
	digestTop  int
)

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recent runs, or show one run's batches",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Show insights ranked across batches",
	Args:  cobra.NoArgs,
	RunE:  runDigest,
}

func init() {
	runsCmd.Flags().StringVar(&runsTask, "task", "", "filter by task (relabel, summarize, insights)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	runsCmd.Flags().BoolVar(&useRemote, "remote", false, "query the API server at API_ENDPOINT instead of local storage")

	digestCmd.Flags().IntVar(&digestSets, "limit", 0, "newest insight sets to include, 0 for all")
	digestCmd.Flags().IntVar(&digestTop, "top", aggregator.DefaultTop, "insights to show per list")
	digestCmd.Flags().BoolVar(&useRemote, "remote", false, "query the API server at API_ENDPOINT instead of local storage")
}

// reader is the read side shared by local storage and the API client
type reader interface {
	ListRuns(ctx context.Context, task string, limit int) ([]*domain.Run, error)
	GetRunDetail(ctx context.Context, id string) (*domain.RunDetail, error)
	InsightDigest(ctx context.Context, batches, top int) (*domain.InsightDigest, error)
}

type remoteReader struct {
	c *client.Client
}

func (r remoteReader) ListRuns(ctx context.Context, task string, limit int) ([]*domain.Run, error) {
	return r.c.GetRuns(ctx, task, limit)
}

func (r remoteReader) GetRunDetail(ctx context.Context, id string) (*domain.RunDetail, error) {
	return r.c.GetRun(ctx, id)
}

func (r remoteReader) InsightDigest(ctx context.Context, batches, top int) (*domain.InsightDigest, error) {
	return r.c.GetInsightDigest(ctx, batches, top)
}

func openReader(ctx context.Context) (reader, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	if useRemote {
		c := client.NewClient(cfg.APIEndpoint)
		if err := c.HealthCheck(ctx); err != nil {
			return nil, nil, fmt.Errorf("API server at %s is not reachable: %w", cfg.APIEndpoint, err)
		}
		return remoteReader{c: c}, func() {}, nil
	}

	store, err := getStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return aggregator.NewAggregator(store), func() { _ = store.Close() }, nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	r, closeFn, err := openReader(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if len(args) == 1 {
		detail, err := r.GetRunDetail(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get run: %w", err)
		}
		if outputJSON {
			return printJSON(detail)
		}
		printRunTable(detail.Run)
		printBatchTable(detail.Batches)
		return nil
	}

	runs, err := r.ListRuns(ctx, runsTask, runsLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if outputJSON {
		return printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Run", "Task", "Started", "Status", "Processed", "Failed", "Remaining", "Requests"})
	for _, run := range runs {
		status := string(run.Status)
		if run.StopReason != domain.StopNone {
			status += " (" + string(run.StopReason) + ")"
		}
		table.Append([]string{
			run.ID,
			run.Task,
			run.StartedAt.Local().Format(time.DateTime),
			status,
			fmt.Sprintf("%d", run.Processed),
			fmt.Sprintf("%d", run.Failed),
			fmt.Sprintf("%d", run.Remaining),
			fmt.Sprintf("%d", run.Requests),
		})
	}
	table.Render()
	return nil
}

func printBatchTable(batches []*domain.BatchResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Batch", "Size", "Outcome", "Attempts", "Duration", "Error"})
	for _, b := range batches {
		table.Append([]string{
			fmt.Sprintf("%d", b.BatchNumber),
			fmt.Sprintf("%d", b.Size),
			string(b.Outcome),
			fmt.Sprintf("%d", b.Attempts),
			b.Duration.Round(time.Millisecond).String(),
			b.Error,
		})
	}
	table.Render()
}

func runDigest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	r, closeFn, err := openReader(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	digest, err := r.InsightDigest(ctx, digestSets, digestTop)
	if err != nil {
		return fmt.Errorf("failed to build digest: %w", err)
	}
	if outputJSON {
		return printJSON(digest)
	}

	fmt.Printf("%d insight sets covering %d issues\n", digest.Batches, digest.Issues)
	printRanked("Business Insight", digest.Business)
	printRanked("Technical Insight", digest.Technical)
	return nil
}

func printRanked(header string, insights []domain.RankedInsight) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", header, "Batches"})
	table.SetAutoWrapText(true)
	for i, ins := range insights {
		table.Append([]string{fmt.Sprintf("%d", i+1), ins.Text, fmt.Sprintf("%d", ins.Count)})
	}
	table.Render()
}
