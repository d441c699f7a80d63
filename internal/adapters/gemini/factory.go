package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/mail-sentinel/internal/adapters/llm"
	"github.com/mikey/mail-sentinel/internal/config"
	"github.com/mikey/mail-sentinel/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Factory creates Gemini clients
type Factory struct {
	cfg           config.GeminiConfig
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewFactory creates a new Gemini factory
func NewFactory(cfg config.GeminiConfig, logger *zap.Logger, textProcessor *utils.TextProcessor) *Factory {
	return &Factory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClient creates a Gemini client that requests JSON output
func (f *Factory) CreateClient(ctx context.Context) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(f.cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(f.cfg.ModelName)
	model.SetTemperature(f.cfg.Temperature)
	model.SetTopP(f.cfg.TopP)
	model.SetMaxOutputTokens(int32(f.cfg.MaxTokens))
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(llm.SystemPrompt)}}

	f.logger.Info("Using Gemini classifier", zap.String("model", f.cfg.ModelName))

	return NewGeminiClient(client, model, f.cfg.ModelName, f.cfg.MaxBodySize, f.logger, f.textProcessor), nil
}
