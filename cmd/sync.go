package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dt-pm-tools/issuetracker-jira/internal/batchfile"
	"github.com/dt-pm-tools/issuetracker-jira/internal/issuesync"
)

var (
	syncFiles    []string
	syncParallel int
)

var errRequestsFailed = errors.New("one or more requests failed")

var syncCmd = &cobra.Command{
	Use:   "sync -f BATCH [-f BATCH...]",
	Short: "Apply batches of issue requests to JIRA",
	Long: `Reads request batches from YAML, TOML or JSON files and applies each one to
JIRA. Files are independent batches and may run in parallel; requests inside a
batch always run in order. Exits non-zero if any request failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(syncFiles) == 0 {
			return fmt.Errorf("at least one batch file is required (-f)")
		}
		if syncParallel < 1 {
			return fmt.Errorf("--parallel must be at least 1")
		}

		batches := make([][]issuesync.Request, len(syncFiles))
		for i, path := range syncFiles {
			requests, err := batchfile.Load(path)
			if err != nil {
				return err
			}
			batches[i] = requests
		}

		if err := loadConfig(); err != nil {
			return err
		}
		svc := newService()
		cfg, err := validConfiguration(cmd.Context(), svc)
		if err != nil {
			return err
		}

		results := make([]*issuesync.Result, len(batches))
		g, ctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(syncParallel)
		for i := range batches {
			g.Go(func() error {
				logger.Info("syncing batch", "file", syncFiles[i], "requests", len(batches[i]))
				result, err := svc.Sync(ctx, cfg, batches[i])
				if err != nil {
					return fmt.Errorf("%s: %w", syncFiles[i], err)
				}
				results[i] = result
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		failed := false
		for i, result := range results {
			fmt.Println(renderMuted(syncFiles[i]))
			for _, o := range result.Outcomes {
				fmt.Println("  " + formatOutcome(o))
			}
			fmt.Println("  " + result.StatusMessage)
			failed = failed || result.Failed()
		}
		if failed {
			return errRequestsFailed
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().StringArrayVarP(&syncFiles, "file", "f", nil, "batch file (.yaml, .toml or .json); repeatable")
	syncCmd.Flags().IntVar(&syncParallel, "parallel", 1, "number of batch files to sync concurrently")
	rootCmd.AddCommand(syncCmd)
}
