// Package scheduler triggers periodic ingestion runs from a cron spec.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/muniwatch/muniwatch/internal/ingest"
)

// Scheduler owns a cron instance with a single ingestion entry. A tick is
// skipped when the previous run is still in flight.
type Scheduler struct {
	cron    *cron.Cron
	orch    *ingest.Orchestrator
	logger  *zap.Logger
	running atomic.Bool
}

// New parses the spec and registers the ingestion entry. The run uses the
// orchestrator's configured default queries and per-query cap.
func New(spec string, orch *ingest.Orchestrator, logger *zap.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		orch:   orch,
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("parse schedule spec %q: %w", spec, err)
	}
	return s, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.cron.Start()
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tick() {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("skipping scheduled crawl, previous run still in flight")
		return
	}
	defer s.running.Store(false)

	summary, err := s.orch.Run(context.Background(), nil, 0)
	if err != nil {
		s.logger.Error("scheduled crawl failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled crawl complete",
		zap.Int("total_found", summary.TotalFound),
		zap.Int("new_unique", summary.NewMentions),
	)
}
