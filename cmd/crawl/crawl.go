// Package crawl implements the one-shot local crawl command.
package crawl

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesrussell/docspasta/cmd/common"
	"github.com/jonesrussell/docspasta/internal/domain"
	"github.com/jonesrussell/docspasta/internal/frontier"
)

// pollInterval is how often the command checks the job state while waiting.
const pollInterval = 500 * time.Millisecond

// Command returns the crawl command.
func Command() *cobra.Command {
	var (
		outputFile string
		maxPages   int
		maxDepth   int
	)

	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl a documentation site and write the Markdown result to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch := &domain.JobOptionsPatch{}

			if cmd.Flags().Changed("max-pages") {
				patch.MaxPages = &maxPages
			}

			if cmd.Flags().Changed("max-depth") {
				patch.MaxDepth = &maxDepth
			}

			return run(cmd.Context(), args[0], patch, outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default <host>.md)")
	cmd.Flags().IntVar(&maxPages, "max-pages", domain.DefaultMaxPages, "maximum pages to crawl")
	cmd.Flags().IntVar(&maxDepth, "max-depth", domain.DefaultMaxDepth, "maximum link depth from the seed")

	return cmd
}

func run(ctx context.Context, seedURL string, patch *domain.JobOptionsPatch, outputFile string) error {
	stack, err := common.Build()
	if err != nil {
		return err
	}
	defer stack.Close()

	meta, err := stack.Jobs.Create(ctx, seedURL, patch)
	if err != nil {
		return err
	}

	stack.Log.Info("crawl started", "job_id", meta.ID, "url", meta.URL)

	meta, err = waitForTerminal(ctx, stack, meta.ID)
	if err != nil {
		return err
	}

	if meta.Status != domain.JobStatusCompleted {
		return fmt.Errorf("crawl ended with status %s: %s", meta.Status, meta.Error)
	}

	doc, err := stack.Jobs.Download(ctx, meta.ID)
	if err != nil {
		return err
	}

	if outputFile == "" {
		host, hostErr := frontier.ExtractHost(meta.URL)
		if hostErr != nil {
			host = "docspasta"
		}

		outputFile = host + ".md"
	}

	if err := os.WriteFile(outputFile, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	stack.Log.Info("crawl finished",
		"job_id", meta.ID,
		"processed", meta.TotalsProcessed,
		"output", outputFile,
	)

	return nil
}

// waitForTerminal polls the job until it reaches a terminal status. The
// reaper is not running here, so the timeout check rides on each poll.
func waitForTerminal(ctx context.Context, stack *common.Stack, jobID string) (*domain.JobMeta, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		meta, err := stack.Jobs.State(ctx, jobID)
		if err != nil {
			return nil, err
		}

		if meta.Status.IsTerminal() {
			return meta, nil
		}

		if err := stack.Jobs.CheckCompletion(ctx, jobID); err != nil {
			stack.Log.Warn("completion check failed", "job_id", jobID, "error", err)
		}
	}
}
