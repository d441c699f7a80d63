package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-sentinel/internal/config"
	"github.com/mikey/mail-sentinel/internal/core"
	"github.com/mikey/mail-sentinel/internal/di"
)

var (
	version    = "0.1.0"
	configPath string
)

func main() {
	root := &cobra.Command{
		Use:           "sentinel",
		Short:         "Mail Sentinel: LLM-assisted mailbox triage",
		Long:          "Mail Sentinel polls mailboxes, classifies new mail with an LLM, files junk and alerts on important messages.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: search standard locations)")

	root.AddCommand(runCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(authCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the monitoring loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := di.BuildContainer(configPath)
			if err != nil {
				return fmt.Errorf("failed to build container: %w", err)
			}

			if err := container.Invoke(func(cfg *config.Config) error {
				return cfg.Validate()
			}); err != nil {
				return err
			}

			return container.Invoke(func(deps di.MonitorDeps) error {
				logger := deps.Logger
				defer logger.Sync()

				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
				defer stop()

				mailboxes, err := core.OpenSources(ctx, logger, deps.Constructors)
				if err != nil {
					logger.Error("No mailbox could be opened", zap.Error(err))
					if cerr := deps.Ledger.Close(); cerr != nil {
						logger.Warn("Failed to close ledger", zap.Error(cerr))
					}
					return err
				}

				monitor := core.NewMonitor(
					mailboxes,
					deps.Classifier,
					deps.Notifier,
					deps.Ledger,
					logger,
					deps.Settings,
				)
				if err := monitor.Run(ctx); err != nil {
					logger.Error("Monitor stopped with error", zap.Error(err))
					return err
				}
				logger.Info("Shutdown complete")
				return nil
			})
		},
	}
}
