package factory

import (
	"context"
	"fmt"

	"github.com/mikey/mail-sentinel/internal/adapters/bedrock"
	"github.com/mikey/mail-sentinel/internal/adapters/gemini"
	"github.com/mikey/mail-sentinel/internal/adapters/openai"
	"github.com/mikey/mail-sentinel/internal/config"
	"github.com/mikey/mail-sentinel/internal/core"
	"github.com/mikey/mail-sentinel/internal/utils"
	"go.uber.org/zap"
)

// LLMFactory creates LLM clients
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateLLMClient creates a new LLM client based on the configuration
func (f *LLMFactory) CreateLLMClient(ctx context.Context) (core.LLMClient, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "bedrock":
		client, err := bedrock.NewFactory(f.cfg.GetBedrock(), f.logger, f.textProcessor).CreateClient(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "gemini":
		client, err := gemini.NewFactory(f.cfg.GetGemini(), f.logger, f.textProcessor).CreateClient(ctx)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "openai":
		return openai.NewFactory(f.cfg.GetOpenAI(), f.logger, f.textProcessor).CreateLLMClient()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
