package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/mail-sentinel/internal/core"
	"go.uber.org/zap"
)

// MemoryLedger keeps the ledger in process memory. Nothing survives a
// restart, so it is only suitable for dry runs and tests.
type MemoryLedger struct {
	mu        sync.RWMutex
	records   map[string]core.ProcessedRecord
	startTime *time.Time
	lastCheck *time.Time
	logger    *zap.Logger
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger(logger *zap.Logger) *MemoryLedger {
	logger.Warn("Using in-memory ledger, processed state will be lost on restart")
	return &MemoryLedger{
		records: make(map[string]core.ProcessedRecord),
		logger:  logger,
	}
}

func memoryKey(provider, id string) string {
	return provider + "\x00" + id
}

// IsProcessed reports whether a record exists for the key
func (l *MemoryLedger) IsProcessed(ctx context.Context, provider, id string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[memoryKey(provider, id)]
	return ok, nil
}

// MarkProcessed inserts the record, ignoring an existing key
func (l *MemoryLedger) MarkProcessed(ctx context.Context, rec core.ProcessedRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := memoryKey(rec.Provider, rec.MessageID)
	if _, ok := l.records[key]; ok {
		return nil
	}
	rec.ProcessedAt = rec.ProcessedAt.UTC()
	l.records[key] = rec
	return nil
}

// StartTime returns the first-run timestamp
func (l *MemoryLedger) StartTime(ctx context.Context) (time.Time, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.startTime == nil {
		return time.Time{}, false, nil
	}
	return *l.startTime, true, nil
}

// SetStartTime stores the first-run timestamp
func (l *MemoryLedger) SetStartTime(ctx context.Context, t time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t = t.UTC()
	l.startTime = &t
	return nil
}

// LastCheck returns the cursor of the last successful cycle
func (l *MemoryLedger) LastCheck(ctx context.Context) (time.Time, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.lastCheck == nil {
		return time.Time{}, false, nil
	}
	return *l.lastCheck, true, nil
}

// SetLastCheck overwrites the cursor
func (l *MemoryLedger) SetLastCheck(ctx context.Context, t time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t = t.UTC()
	l.lastCheck = &t
	return nil
}

// CountProcessed returns the number of records
func (l *MemoryLedger) CountProcessed(ctx context.Context) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return int64(len(l.records)), nil
}

// Close is a no-op
func (l *MemoryLedger) Close() error {
	return nil
}
