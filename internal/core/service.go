package core

import (
	"context"

	"go.uber.org/zap"
)

// SenderAllowlist reports whether a sender is always considered important
type SenderAllowlist interface {
	IsWhitelisted(from string) bool
}

// ClassificationService is the Classifier used by the monitor. It consults the
// allowlist before the model and applies the junk confidence threshold.
type ClassificationService struct {
	llmClient     LLMClient
	allowlist     SenderAllowlist
	logger        *zap.Logger
	junkThreshold float64
}

// NewClassificationService creates a new classification service. A nil
// allowlist disables the bypass; a zero threshold accepts every junk verdict.
func NewClassificationService(
	llmClient LLMClient,
	allowlist SenderAllowlist,
	logger *zap.Logger,
	junkThreshold float64,
) *ClassificationService {
	return &ClassificationService{
		llmClient:     llmClient,
		allowlist:     allowlist,
		logger:        logger,
		junkThreshold: junkThreshold,
	}
}

// Classify assigns a priority to the message
func (s *ClassificationService) Classify(ctx context.Context, msg Message) (*ClassificationResult, error) {
	if s.allowlist != nil && s.allowlist.IsWhitelisted(msg.Sender) {
		s.logger.Info("Skipping model for whitelisted sender",
			zap.String("sender", msg.Sender),
			zap.String("action", "whitelist_bypass"))

		return &ClassificationResult{
			Priority:   PriorityImportant,
			Confidence: 1.0,
			Reasoning:  "Sender domain is whitelisted",
			Summary:    msg.Subject,
			Model:      "whitelist",
		}, nil
	}

	result, err := s.llmClient.ClassifyEmail(ctx, msg)
	if err != nil {
		return nil, &ClassifyError{MessageID: msg.ID, Err: err}
	}
	if result == nil {
		return nil, &ClassifyError{MessageID: msg.ID, Err: errEmptyResult}
	}
	if err := result.Validate(); err != nil {
		return nil, &ClassifyError{MessageID: msg.ID, Err: err}
	}

	if result.Priority == PriorityJunk && result.Confidence < s.junkThreshold {
		s.logger.Info("Junk verdict below threshold, treating as normal",
			zap.String("message_id", msg.ID),
			zap.Float64("confidence", result.Confidence),
			zap.Float64("threshold", s.junkThreshold))
		result.Priority = PriorityNormal
	}

	return result, nil
}
