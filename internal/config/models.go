package config

import (
	"fmt"
	"sort"
	"time"
)

const (
	defaultPollInterval = 30 * time.Second
	defaultMaxLookback  = 24 * time.Hour
	defaultCallTimeout  = 60 * time.Second
)

// MonitorConfig represents the polling loop configuration
type MonitorConfig struct {
	PollInterval      time.Duration
	MaxLookback       time.Duration
	CallTimeout       time.Duration
	ProcessOnlyUnread bool
}

// LedgerConfig represents the processed-message store configuration
type LedgerConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// LLMConfig represents the configuration for the LLM provider
type LLMConfig struct {
	Provider string
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI or a compatible endpoint
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// ClassificationConfig tunes the classification service
type ClassificationConfig struct {
	JunkThreshold    float64
	ImportantDomains []string
}

// TelegramConfig configures the Telegram alert channel
type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

// SlackConfig configures the Slack alert channel
type SlackConfig struct {
	Token     string
	ChannelID string
}

// DiscordConfig configures the Discord alert channel
type DiscordConfig struct {
	Token     string
	ChannelID string
}

// SMTPConfig configures alerts delivered by email, including SMS gateways
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	To        []string
	StartTLS  bool
	ShortForm bool
}

// NotifyConfig represents the alert channel configuration
type NotifyConfig struct {
	Channels     []string
	SummaryLimit int
	Telegram     TelegramConfig
	Slack        SlackConfig
	Discord      DiscordConfig
	SMTP         SMTPConfig
}

// AccountConfig describes one mailbox. Pointer fields distinguish unset from false.
type AccountConfig struct {
	Name              string `mapstructure:"-"`
	Type              string `mapstructure:"type"`
	Enabled           *bool  `mapstructure:"enabled"`
	ProcessOnlyUnread *bool  `mapstructure:"process_only_unread"`

	// IMAP
	Server     string `mapstructure:"server"`
	Port       int    `mapstructure:"port"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	TLS        *bool  `mapstructure:"tls"`
	Folder     string `mapstructure:"folder"`
	JunkFolder string `mapstructure:"junk_folder"`

	// Gmail
	CredentialsFile   string  `mapstructure:"credentials_file"`
	TokenFile         string  `mapstructure:"token_file"`
	JunkLabel         string  `mapstructure:"junk_label"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// IsEnabled reports whether the account should be polled
func (a AccountConfig) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// UnreadOnly resolves the per-account override against the global default
func (a AccountConfig) UnreadOnly(global bool) bool {
	if a.ProcessOnlyUnread != nil {
		return *a.ProcessOnlyUnread
	}
	return global
}

// UseTLS reports whether the IMAP connection uses implicit TLS
func (a AccountConfig) UseTLS() bool {
	return a.TLS == nil || *a.TLS
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level       string
	Format      string
	Dir         string
	DisableFile bool
}

// GetMonitor returns the monitor loop configuration
func (c *Config) GetMonitor() (MonitorConfig, error) {
	poll, err := c.durationWithLegacy("monitor.poll_interval", "monitor.poll_interval_seconds", time.Second, defaultPollInterval)
	if err != nil {
		return MonitorConfig{}, err
	}
	lookback, err := c.durationWithLegacy("monitor.max_lookback", "monitor.max_lookback_hours", time.Hour, defaultMaxLookback)
	if err != nil {
		return MonitorConfig{}, err
	}
	timeout := defaultCallTimeout
	if c.IsSet("monitor.call_timeout") {
		if timeout, err = c.GetDuration("monitor.call_timeout"); err != nil {
			return MonitorConfig{}, fmt.Errorf("invalid monitor.call_timeout: %w", err)
		}
	}

	return MonitorConfig{
		PollInterval:      poll,
		MaxLookback:       lookback,
		CallTimeout:       timeout,
		ProcessOnlyUnread: c.GetBool("monitor.process_only_unread"),
	}, nil
}

func (c *Config) durationWithLegacy(key, legacy string, unit, def time.Duration) (time.Duration, error) {
	if c.IsSet(key) {
		d, err := c.GetDuration(key)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return d, nil
	}
	if c.IsSet(legacy) {
		return time.Duration(c.GetInt(legacy)) * unit, nil
	}
	return def, nil
}

// GetLedger returns the ledger configuration
func (c *Config) GetLedger() LedgerConfig {
	return LedgerConfig{
		Type:       c.GetString("ledger.type"),
		SQLitePath: c.GetString("ledger.sqlite_path"),
		MySQLDSN:   c.GetString("ledger.mysql_dsn"),
	}
}

// GetLLM returns the LLM configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider: c.GetString("llm.provider"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		BaseURL:     c.GetString("openai.base_url"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetClassification returns the classification service configuration
func (c *Config) GetClassification() ClassificationConfig {
	return ClassificationConfig{
		JunkThreshold:    c.GetFloat64("classification.junk_threshold"),
		ImportantDomains: c.GetStringSlice("classification.important_domains"),
	}
}

// GetNotify returns the alert channel configuration
func (c *Config) GetNotify() NotifyConfig {
	return NotifyConfig{
		Channels:     c.GetStringSlice("notify.channels"),
		SummaryLimit: c.GetInt("notify.summary_limit"),
		Telegram: TelegramConfig{
			BotToken: c.GetString("notify.telegram.bot_token"),
			ChatID:   c.v.GetInt64("notify.telegram.chat_id"),
		},
		Slack: SlackConfig{
			Token:     c.GetString("notify.slack.token"),
			ChannelID: c.GetString("notify.slack.channel_id"),
		},
		Discord: DiscordConfig{
			Token:     c.GetString("notify.discord.token"),
			ChannelID: c.GetString("notify.discord.channel_id"),
		},
		SMTP: SMTPConfig{
			Host:      c.GetString("notify.smtp.host"),
			Port:      c.GetInt("notify.smtp.port"),
			Username:  c.GetString("notify.smtp.username"),
			Password:  c.GetString("notify.smtp.password"),
			From:      c.GetString("notify.smtp.from"),
			To:        c.GetStringSlice("notify.smtp.to"),
			StartTLS:  c.GetBool("notify.smtp.starttls"),
			ShortForm: c.GetBool("notify.smtp.short_form"),
		},
	}
}

// GetMailboxes returns every configured account sorted by name
func (c *Config) GetMailboxes() ([]AccountConfig, error) {
	raw := map[string]AccountConfig{}
	if err := c.v.UnmarshalKey("mailboxes", &raw); err != nil {
		return nil, fmt.Errorf("failed to parse mailboxes: %w", err)
	}

	accounts := make([]AccountConfig, 0, len(raw))
	for name, acct := range raw {
		acct.Name = name
		accounts = append(accounts, acct)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

// GetKeyringService returns the service name used for keyring lookups
func (c *Config) GetKeyringService() string {
	return c.GetString("credentials.keyring_service")
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:       c.GetString("logging.level"),
		Format:      c.GetString("logging.format"),
		Dir:         c.GetString("logging.dir"),
		DisableFile: c.GetBool("logging.disable_file"),
	}
}
