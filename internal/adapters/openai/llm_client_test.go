package openai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mikey/mail-sentinel/internal/core"
	"github.com/mikey/mail-sentinel/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap/zaptest"
)

type fakeCompleter struct {
	reply string
	err   error
	req   openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	_ = ctx
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if f.reply == "" {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		ID: "chatcmpl-1",
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: f.reply}},
		},
	}, nil
}

func newTestClient(t *testing.T, fake *fakeCompleter) *OpenAIClient {
	logger := zaptest.NewLogger(t)
	return NewOpenAIClient(fake, "gpt-test", 200, 0.1, 0.9, 16, logger, utils.NewTextProcessor(logger))
}

func TestClassifyEmail(t *testing.T) {
	fake := &fakeCompleter{reply: `{"priority":"junk","confidence":0.92,"reasoning":"promo","summary":"Sale"}`}
	client := newTestClient(t, fake)

	result, err := client.ClassifyEmail(context.Background(), core.Message{
		ID:      "1",
		Sender:  "deals@shop.example",
		Subject: "50% off",
		Body:    strings.Repeat("buy now ", 20),
	})
	if err != nil {
		t.Fatalf("ClassifyEmail failed: %v", err)
	}
	if result.Priority != core.PriorityJunk || result.Model != "gpt-test" {
		t.Fatalf("unexpected result %+v", result)
	}

	if fake.req.ResponseFormat == nil || fake.req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Fatal("expected JSON response format")
	}
	prompt := fake.req.Messages[1].Content
	if !strings.Contains(prompt, "Content truncated") {
		t.Fatal("expected body to be truncated to max body size")
	}
}

func TestClassifyEmailErrors(t *testing.T) {
	if _, err := newTestClient(t, &fakeCompleter{err: errors.New("429")}).ClassifyEmail(context.Background(), core.Message{ID: "1"}); err == nil {
		t.Fatal("expected API error")
	}
	if _, err := newTestClient(t, &fakeCompleter{}).ClassifyEmail(context.Background(), core.Message{ID: "1"}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
