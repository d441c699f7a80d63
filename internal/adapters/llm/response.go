package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mikey/mail-sentinel/internal/core"
)

// ErrNoJSON is returned when a model reply contains no JSON object
var ErrNoJSON = errors.New("no JSON object in model response")

// classificationResponse is the structured reply requested from every model
type classificationResponse struct {
	Priority   string  `json:"priority"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Summary    string  `json:"summary"`
}

// ParseResponse decodes a model reply into a validated ClassificationResult.
// Replies wrapped in prose or code fences are accepted as long as they contain
// a single JSON object.
func ParseResponse(text, model string) (*core.ClassificationResult, error) {
	var resp classificationResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		raw, ok := extractJSON(text)
		if !ok {
			return nil, fmt.Errorf("failed to extract JSON from LLM response: %w", ErrNoJSON)
		}
		if err := json.Unmarshal([]byte(raw), &resp); err != nil {
			return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
		}
	}

	priority, err := core.ParsePriority(resp.Priority)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM response: %w", err)
	}

	result := &core.ClassificationResult{
		Priority:   priority,
		Confidence: resp.Confidence,
		Reasoning:  strings.TrimSpace(resp.Reasoning),
		Summary:    strings.TrimSpace(resp.Summary),
		Model:      model,
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LLM response: %w", err)
	}
	return result, nil
}

// extractJSON returns the text between the first '{' and the last '}'
func extractJSON(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
