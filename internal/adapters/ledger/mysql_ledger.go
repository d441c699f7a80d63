package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name: "mysql",
	schemaExists: `SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = 'schema_version'`,
	insertProcessed: `
		INSERT IGNORE INTO processed_messages (provider, message_id, subject, sender, processed_at)
		VALUES (?, ?, ?, ?, ?)`,
	upsertState: `
		REPLACE INTO monitoring_state (state_key, state_value, updated_at)
		VALUES (?, ?, ?)`,
	migrations: mysqlMigrations,
}

// NewMySQLLedger connects to the ledger database described by dsn
func NewMySQLLedger(dsn string, logger *zap.Logger) (*SQLLedger, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MySQL DSN: %w", err)
	}
	cfg.ParseTime = false

	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	l, err := newSQLLedger(db, mysqlDialect, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("Connected to MySQL ledger",
		zap.String("addr", cfg.Addr),
		zap.String("database", cfg.DBName))
	return l, nil
}
