package whitelist

import (
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestIsWhitelisted(t *testing.T) {
	c := NewChecker([]string{" Example.com ", "@corp.io", ""}, zaptest.NewLogger(t))

	tests := []struct {
		from string
		want bool
	}{
		{"alice@example.com", true},
		{"Alice Smith <ALICE@EXAMPLE.COM>", true},
		{`"Ops, Team" <ops@mail.corp.io>`, true},
		{"bob@notexample.com", false},
		{"bob@example.com.evil.net", false},
		{"Unknown Sender", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := c.IsWhitelisted(tt.from); got != tt.want {
			t.Fatalf("IsWhitelisted(%q): expected %v, got %v", tt.from, tt.want, got)
		}
	}
}

func TestEmptyWhitelist(t *testing.T) {
	c := NewChecker(nil, nil)
	if c.IsWhitelisted("a@example.com") {
		t.Fatal("expected empty whitelist to match nothing")
	}
}
