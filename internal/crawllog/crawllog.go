// Package crawllog maintains the bounded, append-only history of
// ingestion runs.
package crawllog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muniwatch/muniwatch/internal/monitor"
)

// DefaultRecentLimit is used when a caller asks for recent entries without
// a limit.
const DefaultRecentLimit = 20

// Log records and reads crawl history through the store, which enforces the
// 100-entry retention cap on append.
type Log struct {
	store  monitor.Store
	clock  monitor.Clock
	logger *zap.Logger
}

// New constructs a Log.
func New(store monitor.Store, clock monitor.Clock, logger *zap.Logger) *Log {
	return &Log{store: store, clock: clock, logger: logger}
}

// Record appends an entry for one ingestion run. Duplicates is derived as
// totalFound - newUnique.
func (l *Log) Record(ctx context.Context, queries []string, totalFound, newUnique int) (monitor.CrawlLogEntry, error) {
	entry := monitor.CrawlLogEntry{
		Timestamp:  l.clock.Now(),
		Queries:    queries,
		TotalFound: totalFound,
		NewUnique:  newUnique,
		Duplicates: totalFound - newUnique,
	}
	if err := l.store.AppendCrawlLog(ctx, entry); err != nil {
		return monitor.CrawlLogEntry{}, fmt.Errorf("append crawl log: %w", err)
	}
	l.logger.Info("crawl recorded",
		zap.Int("total_found", totalFound),
		zap.Int("new_unique", newUnique),
		zap.Int("duplicates", entry.Duplicates),
	)
	return entry, nil
}

// Recent returns the most recent limit entries in chronological order,
// oldest of the returned window first. A non-positive limit means
// DefaultRecentLimit; a limit beyond the available count returns everything.
func (l *Log) Recent(ctx context.Context, limit int) ([]monitor.CrawlLogEntry, error) {
	entries, err := l.store.LoadCrawlLog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load crawl log: %w", err)
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > len(entries) {
		limit = len(entries)
	}
	return entries[len(entries)-limit:], nil
}
