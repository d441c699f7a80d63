package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mikey/mail-sentinel/internal/core"
	"github.com/mikey/mail-sentinel/internal/di"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show monitoring timestamps and the processed message count",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := di.BuildContainer(configPath)
			if err != nil {
				return fmt.Errorf("failed to build container: %w", err)
			}
			return container.Invoke(func(ledger core.Ledger) error {
				defer ledger.Close()
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				defer cancel()
				return printStatus(ctx, cmd, ledger)
			})
		},
	}
}

func printStatus(ctx context.Context, cmd *cobra.Command, ledger core.Ledger) error {
	out := cmd.OutOrStdout()

	start, ok, err := ledger.StartTime(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Monitoring since: %s\n", formatStamp(start, ok))

	last, ok, err := ledger.LastCheck(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Last check:       %s\n", formatStamp(last, ok))

	count, err := ledger.CountProcessed(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Processed:        %d\n", count)
	return nil
}

func formatStamp(t time.Time, ok bool) string {
	if !ok {
		return "never"
	}
	return t.Format(time.RFC3339)
}
