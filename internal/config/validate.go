package config

import (
	"fmt"

	"github.com/mikey/mail-sentinel/internal/core"
)

// Validate checks the settings required to start the monitor
func (c *Config) Validate() error {
	mon, err := c.GetMonitor()
	if err != nil {
		return &core.ConfigError{Key: "monitor", Reason: err.Error()}
	}
	if mon.PollInterval <= 0 {
		return &core.ConfigError{Key: "monitor.poll_interval", Reason: "must be positive"}
	}
	if mon.MaxLookback <= 0 {
		return &core.ConfigError{Key: "monitor.max_lookback", Reason: "must be positive"}
	}
	if mon.CallTimeout <= 0 {
		return &core.ConfigError{Key: "monitor.call_timeout", Reason: "must be positive"}
	}

	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateMailboxes(); err != nil {
		return err
	}
	return c.validateNotify()
}

func (c *Config) validateLedger() error {
	ledger := c.GetLedger()
	switch ledger.Type {
	case "memory":
	case "sqlite":
		if ledger.SQLitePath == "" {
			return &core.ConfigError{Key: "ledger.sqlite_path", Reason: "required for sqlite ledger"}
		}
	case "mysql":
		if ledger.MySQLDSN == "" {
			return &core.ConfigError{Key: "ledger.mysql_dsn", Reason: "required for mysql ledger"}
		}
	default:
		return &core.ConfigError{Key: "ledger.type", Reason: fmt.Sprintf("unsupported ledger type %q", ledger.Type)}
	}
	return nil
}

// ValidateLLM checks only the model settings, for commands that classify without polling
func (c *Config) ValidateLLM() error {
	return c.validateLLM()
}

func (c *Config) validateLLM() error {
	switch provider := c.GetLLM().Provider; provider {
	case "openai":
		if c.GetOpenAI().APIKey == "" {
			return &core.ConfigError{Key: "openai.api_key", Reason: "required for openai provider"}
		}
	case "gemini":
		if c.GetGemini().APIKey == "" {
			return &core.ConfigError{Key: "gemini.api_key", Reason: "required for gemini provider"}
		}
	case "bedrock":
		if c.GetBedrock().ModelID == "" {
			return &core.ConfigError{Key: "bedrock.model_id", Reason: "required for bedrock provider"}
		}
	default:
		return &core.ConfigError{Key: "llm.provider", Reason: fmt.Sprintf("unsupported LLM provider %q", provider)}
	}

	if t := c.GetClassification().JunkThreshold; t < 0 || t > 1 {
		return &core.ConfigError{Key: "classification.junk_threshold", Reason: "must be within [0,1]"}
	}
	return nil
}

func (c *Config) validateMailboxes() error {
	accounts, err := c.GetMailboxes()
	if err != nil {
		return &core.ConfigError{Key: "mailboxes", Reason: err.Error()}
	}

	enabled := 0
	for _, acct := range accounts {
		if !acct.IsEnabled() {
			continue
		}
		enabled++
		prefix := "mailboxes." + acct.Name
		switch acct.Type {
		case "imap":
			if acct.Server == "" {
				return &core.ConfigError{Key: prefix + ".server", Reason: "required for imap accounts"}
			}
			if acct.Username == "" {
				return &core.ConfigError{Key: prefix + ".username", Reason: "required for imap accounts"}
			}
		case "gmail":
			if acct.CredentialsFile == "" {
				return &core.ConfigError{Key: prefix + ".credentials_file", Reason: "required for gmail accounts"}
			}
		default:
			return &core.ConfigError{Key: prefix + ".type", Reason: fmt.Sprintf("unsupported mailbox type %q", acct.Type)}
		}
	}
	if enabled == 0 {
		return &core.ConfigError{Key: "mailboxes", Reason: "at least one enabled mailbox is required"}
	}
	return nil
}

func (c *Config) validateNotify() error {
	notify := c.GetNotify()
	for _, ch := range notify.Channels {
		switch ch {
		case "log":
		case "telegram":
			if notify.Telegram.ChatID == 0 {
				return &core.ConfigError{Key: "notify.telegram.chat_id", Reason: "required for telegram alerts"}
			}
		case "slack":
			if notify.Slack.ChannelID == "" {
				return &core.ConfigError{Key: "notify.slack.channel_id", Reason: "required for slack alerts"}
			}
		case "discord":
			if notify.Discord.ChannelID == "" {
				return &core.ConfigError{Key: "notify.discord.channel_id", Reason: "required for discord alerts"}
			}
		case "smtp":
			if notify.SMTP.Host == "" || notify.SMTP.From == "" || len(notify.SMTP.To) == 0 {
				return &core.ConfigError{Key: "notify.smtp", Reason: "host, from and to are required for smtp alerts"}
			}
		default:
			return &core.ConfigError{Key: "notify.channels", Reason: fmt.Sprintf("unsupported channel %q", ch)}
		}
	}
	return nil
}
