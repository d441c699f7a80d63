package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-sentinel/internal/config"
	"github.com/mikey/mail-sentinel/internal/logging"
)

// CLIFlags holds the overrides accepted by the one-shot classify command
type CLIFlags struct {
	ConfigFile string
	Provider   string
	Model      string
	Threshold  float64
	Verbose    bool
	JSONLog    bool
}

// ApplyFlags writes non-zero flag values over the loaded configuration
func ApplyFlags(cfg *config.Config, flags *CLIFlags) {
	if flags.Provider != "" {
		cfg.Set("llm.provider", flags.Provider)
	}
	if flags.Model != "" {
		switch cfg.GetLLM().Provider {
		case "bedrock":
			cfg.Set("bedrock.model_id", flags.Model)
		case "gemini":
			cfg.Set("gemini.model_name", flags.Model)
		case "openai":
			cfg.Set("openai.model_name", flags.Model)
		}
	}
	if flags.Threshold > 0 {
		cfg.Set("classification.junk_threshold", flags.Threshold)
	}
}

// BuildCLIContainer creates a container that only knows how to classify.
// Logs go to the console and no ledger, notifier or mailbox is built.
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.New(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}
		ApplyFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	if err := provideClassification(container); err != nil {
		return nil, err
	}

	return container, nil
}
