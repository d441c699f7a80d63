package ledger

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name:         "sqlite",
	schemaExists: "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	insertProcessed: `
		INSERT OR IGNORE INTO processed_messages (provider, message_id, subject, sender, processed_at)
		VALUES (?, ?, ?, ?, ?)`,
	upsertState: `
		INSERT OR REPLACE INTO monitoring_state (state_key, state_value, updated_at)
		VALUES (?, ?, ?)`,
	migrations: sqliteMigrations,
}

// NewSQLiteLedger opens (or creates) the ledger database at dbPath. Writes are
// synced to disk before returning.
func NewSQLiteLedger(dbPath string, logger *zap.Logger) (*SQLLedger, error) {
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// one connection keeps ":memory:" databases and write ordering consistent
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	l, err := newSQLLedger(db, sqliteDialect, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Opened SQLite ledger", zap.String("path", dbPath))
	return l, nil
}
