package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/mail-sentinel/internal/core"
)

const validYAML = `
monitor:
  poll_interval: 45s
  max_lookback: 12h
llm:
  provider: openai
openai:
  api_key: sk-test
ledger:
  type: sqlite
  sqlite_path: /tmp/sentinel.db
notify:
  channels: [telegram]
  telegram:
    chat_id: 12345
mailboxes:
  work:
    type: imap
    server: imap.example.com
    username: me@example.com
    junk_folder: Spam
    process_only_unread: false
  personal:
    type: gmail
    credentials_file: credentials.json
  old:
    type: imap
    enabled: false
`

func writeConfig(t *testing.T, body string) *Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	cfg, err := New(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	return cfg
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := writeConfig(t, validYAML)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}

	mon, err := cfg.GetMonitor()
	if err != nil {
		t.Fatalf("GetMonitor: %v", err)
	}
	if mon.PollInterval != 45*time.Second || mon.MaxLookback != 12*time.Hour {
		t.Fatalf("unexpected monitor config %+v", mon)
	}
	if mon.CallTimeout != defaultCallTimeout || !mon.ProcessOnlyUnread {
		t.Fatalf("expected defaults for timeout and unread, got %+v", mon)
	}
}

func TestGetMonitor_LegacyKeys(t *testing.T) {
	v := NewEmptyViper()
	v.Set("monitor.poll_interval_seconds", 10)
	v.Set("monitor.max_lookback_hours", 2)
	mon, err := NewFromViper(v).GetMonitor()
	if err != nil {
		t.Fatalf("GetMonitor: %v", err)
	}
	if mon.PollInterval != 10*time.Second || mon.MaxLookback != 2*time.Hour {
		t.Fatalf("expected legacy keys to apply, got %+v", mon)
	}
}

func TestGetMonitor_Defaults(t *testing.T) {
	mon, err := NewFromViper(NewEmptyViper()).GetMonitor()
	if err != nil {
		t.Fatalf("GetMonitor: %v", err)
	}
	if mon.PollInterval != 30*time.Second || mon.MaxLookback != 24*time.Hour {
		t.Fatalf("unexpected defaults %+v", mon)
	}
}

func TestGetMailboxes(t *testing.T) {
	cfg := writeConfig(t, validYAML)
	accounts, err := cfg.GetMailboxes()
	if err != nil {
		t.Fatalf("GetMailboxes: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(accounts))
	}
	if accounts[0].Name != "old" || accounts[1].Name != "personal" || accounts[2].Name != "work" {
		t.Fatalf("expected sorted names, got %s %s %s", accounts[0].Name, accounts[1].Name, accounts[2].Name)
	}
	if accounts[0].IsEnabled() {
		t.Fatal("expected old to be disabled")
	}
	work := accounts[2]
	if work.UnreadOnly(true) {
		t.Fatal("expected per-account override to win")
	}
	if !accounts[1].UnreadOnly(true) {
		t.Fatal("expected global default when unset")
	}
	if work.JunkFolder != "Spam" || !work.UseTLS() {
		t.Fatalf("unexpected work account %+v", work)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		set  func(*Config)
	}{
		{"no mailboxes", "mailboxes", func(c *Config) { c.Set("mailboxes", map[string]any{}) }},
		{"missing api key", "openai.api_key", func(c *Config) { c.Set("openai.api_key", "") }},
		{"bad provider", "llm.provider", func(c *Config) { c.Set("llm.provider", "llama") }},
		{"bad ledger", "ledger.type", func(c *Config) { c.Set("ledger.type", "redis") }},
		{"missing chat id", "notify.telegram.chat_id", func(c *Config) { c.Set("notify.telegram.chat_id", 0) }},
		{"bad channel", "notify.channels", func(c *Config) { c.Set("notify.channels", []string{"pager"}) }},
		{"zero poll", "monitor.poll_interval", func(c *Config) { c.Set("monitor.poll_interval", "0s") }},
		{"bad threshold", "classification.junk_threshold", func(c *Config) { c.Set("classification.junk_threshold", 1.5) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeConfig(t, validYAML)
			tt.set(cfg)

			err := cfg.Validate()
			var ce *core.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if ce.Key != tt.key {
				t.Fatalf("expected key %s, got %s", tt.key, ce.Key)
			}
		})
	}
}
