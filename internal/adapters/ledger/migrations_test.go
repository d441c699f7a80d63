package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mikey/mail-sentinel/internal/core"
)

func TestMySQLKeyColumnsAreCaseSensitive(t *testing.T) {
	ddl := strings.Join(mysqlMigrations[0].stmts, "\n")
	for _, col := range []string{"provider", "message_id", "state_key"} {
		found := false
		for _, line := range strings.Split(ddl, "\n") {
			fields := strings.Fields(line)
			if len(fields) > 0 && fields[0] == col {
				found = true
				if !strings.Contains(line, "COLLATE utf8mb4_bin") {
					t.Fatalf("expected %s to use a binary collation, got %q", col, strings.TrimSpace(line))
				}
			}
		}
		if !found {
			t.Fatalf("expected column %s in mysql schema", col)
		}
	}
}

func TestIDsDifferingByCaseAreDistinct(t *testing.T) {
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"AbC", "abc"} {
				if err := l.MarkProcessed(ctx, core.ProcessedRecord{MessageID: id, Provider: "x", ProcessedAt: time.Now()}); err != nil {
					t.Fatalf("mark %s: %v", id, err)
				}
			}
			count, err := l.CountProcessed(ctx)
			if err != nil {
				t.Fatalf("count: %v", err)
			}
			if count != 2 {
				t.Fatalf("expected 2 records, got %d", count)
			}
		})
	}
}
