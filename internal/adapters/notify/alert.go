package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mikey/mail-sentinel/internal/core"
	"github.com/mikey/mail-sentinel/internal/utils"
)

const (
	defaultSummaryLimit = 500
	noSummary           = "No summary available"
)

// Alert is the channel independent content of an important-message notification
type Alert struct {
	MessageID  string
	Account    string
	Sender     string
	Subject    string
	Summary    string
	Confidence float64
}

// NewAlert builds an alert, truncating the summary to limit runes
func NewAlert(msg core.Message, result core.ClassificationResult, limit int) Alert {
	if limit <= 0 {
		limit = defaultSummaryLimit
	}
	summary := strings.TrimSpace(result.Summary)
	if summary == "" {
		summary = noSummary
	}
	return Alert{
		MessageID:  msg.ID,
		Account:    msg.Provider,
		Sender:     msg.Sender,
		Subject:    msg.Subject,
		Summary:    clip(summary, limit),
		Confidence: result.Confidence,
	}
}

// Plain renders the alert as plain text
func (a Alert) Plain() string {
	return fmt.Sprintf("Important Email Alert\n\nFrom: %s\nSubject: %s\n\nSummary: %s",
		a.Sender, a.Subject, a.Summary)
}

// Markdown renders the alert with the common *bold* markdown used by Slack and Discord
func (a Alert) Markdown() string {
	return fmt.Sprintf("📧 *Important Email Alert*\n\n*From:* %s\n*Subject:* %s\n\n*Summary:* %s",
		a.Sender, a.Subject, a.Summary)
}

// MarkdownV2 renders the alert for Telegram's MarkdownV2 parse mode
func (a Alert) MarkdownV2() string {
	return fmt.Sprintf("📧 *Important Email Alert*\n\n*From:* %s\n*Subject:* %s\n\n*Summary:* %s",
		EscapeMarkdownV2(a.Sender), EscapeMarkdownV2(a.Subject), EscapeMarkdownV2(a.Summary))
}

// Short renders a single line suitable for SMS gateways
func (a Alert) Short() string {
	sender := strings.TrimSpace(strings.Split(a.Sender, "<")[0])
	if sender == "" {
		sender = a.Sender
	}
	sender = clip(sender, 20)

	summary := a.Summary
	if summary == noSummary {
		summary = "Important email"
	}
	return fmt.Sprintf("Email from %s: %s", sender, clip(summary, 60))
}

// clip shortens s to at most n runes including a trailing "..."
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return utils.Preview(s, n-3)
}

var markdownV2Replacer = func() *strings.Replacer {
	special := []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	pairs := make([]string, 0, len(special)*2)
	for _, ch := range special {
		pairs = append(pairs, ch, "\\"+ch)
	}
	return strings.NewReplacer(pairs...)
}()

// EscapeMarkdownV2 escapes every character Telegram reserves in MarkdownV2
func EscapeMarkdownV2(s string) string {
	return markdownV2Replacer.Replace(s)
}
