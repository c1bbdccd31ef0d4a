// Package jobs implements the active-job listing command.
package jobs

import (
	"context"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/docspasta/cmd/common"
)

// Command returns the jobs command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List active crawl jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context())
		},
	}
}

func run(ctx context.Context) error {
	stack, err := common.Build()
	if err != nil {
		return err
	}
	defer stack.Close()

	metas, err := stack.Jobs.List(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "URL", "STATUS", "AGE", "PROCESSED", "DISCOVERED"})

	now := time.Now().UTC()

	for _, meta := range metas {
		t.AppendRow(table.Row{
			meta.ID,
			meta.URL,
			string(meta.Status),
			meta.Age(now).Round(time.Second).String(),
			meta.TotalsProcessed,
			meta.TotalsDiscovered,
		})
	}

	t.SetStyle(table.StyleLight)
	t.Render()

	return nil
}
