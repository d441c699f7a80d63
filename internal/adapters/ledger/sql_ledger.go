package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mikey/mail-sentinel/internal/core"
	"go.uber.org/zap"
)

const (
	keyStartTime = "monitoring_start_time"
	keyLastCheck = "last_check_time"
)

// dialect captures the statements that differ between SQL backends
type dialect struct {
	name            string
	schemaExists    string
	insertProcessed string
	upsertState     string
	migrations      []migration
}

// SQLLedger is the shared sqlx implementation of core.Ledger
type SQLLedger struct {
	db      *sqlx.DB
	dialect dialect
	logger  *zap.Logger
}

func newSQLLedger(db *sqlx.DB, d dialect, logger *zap.Logger) (*SQLLedger, error) {
	l := &SQLLedger{db: db, dialect: d, logger: logger}
	if err := l.runMigrations(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to run %s migrations: %w", d.name, err)
	}
	return l, nil
}

// runMigrations applies every migration newer than the recorded schema version
func (l *SQLLedger) runMigrations(ctx context.Context) error {
	current := 0

	var tableCount int
	if err := l.db.GetContext(ctx, &tableCount, l.dialect.schemaExists); err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := l.db.GetContext(ctx, &current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range l.dialect.migrations {
		if m.version <= current {
			continue
		}
		tx, err := l.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning migration v%d: %w", m.version, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("applying migration v%d: %w", m.version, err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration v%d: %w", m.version, err)
		}
		l.logger.Info("Applied ledger migration",
			zap.String("dialect", l.dialect.name),
			zap.Int("version", m.version))
	}
	return nil
}

// IsProcessed reports whether a record exists for the key
func (l *SQLLedger) IsProcessed(ctx context.Context, provider, id string) (bool, error) {
	var n int
	err := l.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM processed_messages WHERE provider = ? AND message_id = ?",
		provider, id)
	if err != nil {
		return false, &core.PersistenceError{Op: "is processed", Err: err}
	}
	return n > 0, nil
}

// MarkProcessed inserts the record, ignoring an existing key
func (l *SQLLedger) MarkProcessed(ctx context.Context, rec core.ProcessedRecord) error {
	_, err := l.db.ExecContext(ctx, l.dialect.insertProcessed,
		rec.Provider, rec.MessageID, rec.Subject, rec.Sender, formatTime(rec.ProcessedAt))
	if err != nil {
		return &core.PersistenceError{Op: "mark processed", Err: err}
	}
	l.logger.Debug("Recorded processed email",
		zap.String("provider", rec.Provider),
		zap.String("message_id", rec.MessageID))
	return nil
}

// StartTime returns the first-run timestamp
func (l *SQLLedger) StartTime(ctx context.Context) (time.Time, bool, error) {
	return l.getState(ctx, keyStartTime)
}

// SetStartTime stores the first-run timestamp
func (l *SQLLedger) SetStartTime(ctx context.Context, t time.Time) error {
	return l.setState(ctx, keyStartTime, t)
}

// LastCheck returns the cursor of the last successful cycle
func (l *SQLLedger) LastCheck(ctx context.Context) (time.Time, bool, error) {
	return l.getState(ctx, keyLastCheck)
}

// SetLastCheck overwrites the cursor
func (l *SQLLedger) SetLastCheck(ctx context.Context, t time.Time) error {
	return l.setState(ctx, keyLastCheck, t)
}

// CountProcessed returns the number of records
func (l *SQLLedger) CountProcessed(ctx context.Context) (int64, error) {
	var n int64
	if err := l.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM processed_messages"); err != nil {
		return 0, &core.PersistenceError{Op: "count processed", Err: err}
	}
	return n, nil
}

// Close closes the database connection
func (l *SQLLedger) Close() error {
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("failed to close %s ledger: %w", l.dialect.name, err)
	}
	return nil
}

func (l *SQLLedger) getState(ctx context.Context, key string) (time.Time, bool, error) {
	var raw string
	err := l.db.GetContext(ctx, &raw,
		"SELECT state_value FROM monitoring_state WHERE state_key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, &core.PersistenceError{Op: "read " + key, Err: err}
	}
	t, err := parseTime(raw)
	if err != nil {
		return time.Time{}, false, &core.PersistenceError{Op: "parse " + key, Err: err}
	}
	return t, true, nil
}

func (l *SQLLedger) setState(ctx context.Context, key string, t time.Time) error {
	_, err := l.db.ExecContext(ctx, l.dialect.upsertState,
		key, formatTime(t), formatTime(time.Now()))
	if err != nil {
		return &core.PersistenceError{Op: "write " + key, Err: err}
	}
	return nil
}

// formatTime stores instants as UTC RFC3339 with nanoseconds so that values
// from different offsets compare and round-trip exactly.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
