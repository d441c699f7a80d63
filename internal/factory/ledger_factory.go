package factory

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mikey/mail-sentinel/internal/adapters/ledger"
	"github.com/mikey/mail-sentinel/internal/config"
	"github.com/mikey/mail-sentinel/internal/core"
	"go.uber.org/zap"
)

// LedgerFactory creates processed-message ledgers based on configuration
type LedgerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLedgerFactory creates a new ledger factory
func NewLedgerFactory(cfg *config.Config, logger *zap.Logger) *LedgerFactory {
	return &LedgerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateLedger creates a ledger based on the configuration
func (f *LedgerFactory) CreateLedger() (core.Ledger, error) {
	ledgerCfg := f.cfg.GetLedger()

	switch ledgerCfg.Type {
	case "memory":
		return ledger.NewMemoryLedger(f.logger), nil
	case "sqlite":
		if dir := filepath.Dir(ledgerCfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
			}
		}
		return ledger.NewSQLiteLedger(ledgerCfg.SQLitePath, f.logger)
	case "mysql":
		return ledger.NewMySQLLedger(ledgerCfg.MySQLDSN, f.logger)
	default:
		return nil, fmt.Errorf("unsupported ledger type: %s", ledgerCfg.Type)
	}
}
