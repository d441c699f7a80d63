package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-sentinel/internal/config"
	"github.com/mikey/mail-sentinel/internal/core"
	"github.com/mikey/mail-sentinel/internal/credential"
	"github.com/mikey/mail-sentinel/internal/factory"
	"github.com/mikey/mail-sentinel/internal/logging"
	"github.com/mikey/mail-sentinel/internal/utils"
	"github.com/mikey/mail-sentinel/internal/whitelist"
)

// MonitorDeps is everything the run command needs to start a monitor
type MonitorDeps struct {
	dig.In

	Config       *config.Config
	Logger       *zap.Logger
	Classifier   core.Classifier
	Notifier     core.Notifier
	Ledger       core.Ledger
	Constructors []core.SourceConstructor
	Settings     core.MonitorSettings
}

// BuildContainer creates and configures a dependency injection container.
// Providers run lazily, so only what an Invoke asks for is constructed.
// Configuration is loaded but not validated; callers validate what they use.
func BuildContainer(configPath string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.New(configPath)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideClassification(container); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewLedgerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewNotifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewSourceFactory); err != nil {
		return nil, err
	}

	// Register secret store
	if err := container.Provide(func(cfg *config.Config) credential.Store {
		return credential.NewKeyringStore(cfg.GetKeyringService())
	}); err != nil {
		return nil, err
	}

	// Register ledger
	if err := container.Provide(func(f *factory.LedgerFactory) (core.Ledger, error) {
		return f.CreateLedger()
	}); err != nil {
		return nil, err
	}

	// Register notifier
	if err := container.Provide(func(f *factory.NotifierFactory) (core.Notifier, error) {
		return f.CreateNotifier()
	}); err != nil {
		return nil, err
	}

	// Register mailbox constructors
	if err := container.Provide(func(f *factory.SourceFactory) ([]core.SourceConstructor, error) {
		return f.CreateConstructors()
	}); err != nil {
		return nil, err
	}

	// Register loop settings
	if err := container.Provide(func(cfg *config.Config) (core.MonitorSettings, error) {
		m, err := cfg.GetMonitor()
		if err != nil {
			return core.MonitorSettings{}, err
		}
		return core.MonitorSettings{
			PollInterval: m.PollInterval,
			MaxLookback:  m.MaxLookback,
			CallTimeout:  m.CallTimeout,
		}, nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideClassification registers the model client and the classifier. It
// expects *config.Config and *zap.Logger to be provided already.
func provideClassification(container *dig.Container) error {
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}

	// Register LLM client
	if err := container.Provide(func(cfg *config.Config, f *factory.LLMFactory) (core.LLMClient, error) {
		if err := cfg.ValidateLLM(); err != nil {
			return nil, err
		}
		return f.CreateLLMClient(context.Background())
	}); err != nil {
		return err
	}

	// Register important-domain allowlist
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.SenderAllowlist {
		return whitelist.NewChecker(cfg.GetClassification().ImportantDomains, logger)
	}); err != nil {
		return err
	}

	// Register classifier
	return container.Provide(func(
		llmClient core.LLMClient,
		allowlist core.SenderAllowlist,
		cfg *config.Config,
		logger *zap.Logger,
	) core.Classifier {
		return core.NewClassificationService(
			llmClient,
			allowlist,
			logger,
			cfg.GetClassification().JunkThreshold,
		)
	})
}
