// Package llm holds the prompt and response handling shared by the model adapters.
package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/mikey/mail-sentinel/internal/core"
)

// SystemPrompt is sent as the system role where the provider supports one
const SystemPrompt = "You are an email classification assistant. Respond only with JSON."

const promptFormat = `You are an email classification assistant. Analyze the following email and classify it into one of three categories:

IMPORTANT:
- Addressed to me personally
- Job interview offer
- Legal matter
- Urgent

JUNK:
- Newsletter or updates from an organisation I have no relationship with
- Apparent scam

NORMAL:
- Everything else

EMAIL TO CLASSIFY:
From: %s
To: %s
Subject: %s
Date: %s

%s

Respond with a JSON object containing:
- priority: "important", "normal", or "junk"
- confidence: number between 0.0 and 1.0
- reasoning: brief explanation
- summary: concise summary of at most 140 characters

Respond only with the JSON object and nothing else.`

// BuildPrompt renders the classification prompt. body is the already
// truncated and sanitised message body.
func BuildPrompt(msg core.Message, body string) string {
	date := ""
	if !msg.ReceivedAt.IsZero() {
		date = msg.ReceivedAt.Format(time.RFC1123Z)
	}
	return fmt.Sprintf(promptFormat,
		msg.Sender,
		msg.Recipient,
		msg.Subject,
		date,
		strings.TrimSpace(body))
}
