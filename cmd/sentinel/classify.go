package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-sentinel/internal/adapters/mimetext"
	"github.com/mikey/mail-sentinel/internal/config"
	"github.com/mikey/mail-sentinel/internal/core"
	"github.com/mikey/mail-sentinel/internal/di"
)

func classifyCmd() *cobra.Command {
	flags := &di.CLIFlags{}
	var inputFile string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "classify [file]",
		Short: "Classify a single RFC 5322 message from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				inputFile = args[0]
			}
			flags.ConfigFile = configPath

			container, err := di.BuildCLIContainer(flags)
			if err != nil {
				return fmt.Errorf("failed to build container: %w", err)
			}
			return container.Invoke(func(cfg *config.Config, classifier core.Classifier, llmClient core.LLMClient, logger *zap.Logger) error {
				defer logger.Sync()
				if closer, ok := llmClient.(io.Closer); ok {
					defer func() {
						if err := closer.Close(); err != nil {
							logger.Error("Failed to close LLM client", zap.Error(err))
						}
					}()
				}

				raw, err := readInput(inputFile, cmd.InOrStdin())
				if err != nil {
					return err
				}
				msg, err := messageFromRaw(raw)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "\n=== Email Summary ===\n")
				fmt.Fprintf(out, "From: %s\n", msg.Sender)
				fmt.Fprintf(out, "To: %s\n", msg.Recipient)
				fmt.Fprintf(out, "Subject: %s\n", msg.Subject)
				fmt.Fprintf(out, "Body length: %d bytes\n\n", len(msg.Body))

				fmt.Fprintf(out, "=== Analysis ===\n")
				fmt.Fprintf(out, "Provider: %s\n", cfg.GetLLM().Provider)
				fmt.Fprintf(out, "Junk threshold: %.2f\n", cfg.GetClassification().JunkThreshold)

				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				start := time.Now()
				result, err := classifier.Classify(ctx, msg)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "\n=== Results ===\n")
				fmt.Fprintf(out, "Priority: %s\n", result.Priority)
				fmt.Fprintf(out, "Confidence: %.4f\n", result.Confidence)
				fmt.Fprintf(out, "Summary: %s\n", result.Summary)
				fmt.Fprintf(out, "Reasoning: %s\n", result.Reasoning)
				fmt.Fprintf(out, "Model used: %s\n", result.Model)
				fmt.Fprintf(out, "Processing time: %v\n", time.Since(start))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.Provider, "provider", "", "LLM provider override (bedrock, gemini, openai)")
	cmd.Flags().StringVar(&flags.Model, "model", "", "model name override for the selected provider")
	cmd.Flags().Float64Var(&flags.Threshold, "threshold", 0, "junk confidence threshold override")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable verbose logging")
	cmd.Flags().BoolVar(&flags.JSONLog, "json-log", false, "output logs in JSON format")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "classification timeout")
	return cmd
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	return data, nil
}

func messageFromRaw(raw []byte) (core.Message, error) {
	parsed, err := mimetext.Parse(raw)
	if err != nil {
		return core.Message{}, err
	}
	id := parsed.MessageID
	if id == "" {
		id = "cli"
	}
	received := parsed.Date
	if received.IsZero() {
		received = time.Now().UTC()
	}
	return core.Message{
		ID:         id,
		Subject:    parsed.Subject,
		Sender:     parsed.From,
		Recipient:  parsed.To,
		Body:       parsed.Body,
		ReceivedAt: received,
		Provider:   "cli",
	}, nil
}
