// Package ingest orchestrates one crawl run: invoke the search
// collaborator, deduplicate its candidates against the store by URL, persist
// the merged collection and record a crawl-log entry.
package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/muniwatch/muniwatch/internal/crawllog"
	"github.com/muniwatch/muniwatch/internal/monitor"
	"github.com/muniwatch/muniwatch/internal/repository"
	"github.com/muniwatch/muniwatch/internal/telemetry"
)

// previewLimit caps the admitted mentions echoed back in the summary.
const previewLimit = 10

// Config carries the ingestion defaults.
type Config struct {
	DefaultQueries     []string
	MaxResultsPerQuery int
	Topic              string
}

// Orchestrator runs ingestion against a store and collaborator.
type Orchestrator struct {
	store     monitor.Store
	searcher  monitor.Searcher
	log       *crawllog.Log
	publisher monitor.Publisher
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator. publisher may be nil when completion
// events are disabled.
func New(
	store monitor.Store,
	searcher monitor.Searcher,
	log *crawllog.Log,
	publisher monitor.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		searcher:  searcher,
		log:       log,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one ingestion run. Empty queries fall back to the configured
// defaults; a non-positive cap falls back to the configured per-query limit.
// A collaborator or persistence failure aborts the run with nothing written
// and a failed summary; there is no retry.
func (o *Orchestrator) Run(ctx context.Context, queries []string, maxPerQuery int) (monitor.IngestSummary, error) {
	if len(queries) == 0 {
		queries = o.cfg.DefaultQueries
	}
	if maxPerQuery <= 0 {
		maxPerQuery = o.cfg.MaxResultsPerQuery
	}
	o.logger.Info("ingestion started",
		zap.Int("queries", len(queries)),
		zap.Int("max_per_query", maxPerQuery),
	)

	candidates, err := o.searcher.Search(ctx, queries, maxPerQuery)
	if err != nil {
		return o.fail(fmt.Errorf("search collaborator: %w", err))
	}

	existing, err := o.store.LoadMentions(ctx)
	if err != nil {
		return o.fail(fmt.Errorf("load mentions: %w", err))
	}

	merged, admitted := repository.DedupeMerge(existing, candidates)

	if err := o.store.SaveMentions(ctx, merged); err != nil {
		return o.fail(fmt.Errorf("save mentions: %w", err))
	}
	telemetry.SetMentionsStored(len(merged))

	if _, err := o.log.Record(ctx, queries, len(candidates), len(admitted)); err != nil {
		// The merge already landed; a failed audit entry is not worth
		// failing the run over.
		o.logger.Warn("crawl log record failed", zap.Error(err))
	}

	summary := monitor.IngestSummary{
		Success:     true,
		NewMentions: len(admitted),
		TotalFound:  len(candidates),
		Duplicates:  len(candidates) - len(admitted),
		Mentions:    preview(admitted),
	}
	telemetry.ObserveIngest("success", summary.TotalFound, summary.NewMentions)
	o.publishCompletion(ctx, summary)

	o.logger.Info("ingestion complete",
		zap.Int("total_found", summary.TotalFound),
		zap.Int("new_unique", summary.NewMentions),
		zap.Int("duplicates", summary.Duplicates),
	)
	return summary, nil
}

func (o *Orchestrator) fail(err error) (monitor.IngestSummary, error) {
	telemetry.ObserveIngest("failure", 0, 0)
	o.logger.Error("ingestion failed", zap.Error(err))
	return monitor.IngestSummary{Success: false, Error: err.Error(), Mentions: []monitor.Mention{}}, err
}

// publishCompletion emits a best-effort completion event; a publish failure
// never fails the run.
func (o *Orchestrator) publishCompletion(ctx context.Context, summary monitor.IngestSummary) {
	if o.publisher == nil {
		return
	}
	payload := map[string]any{
		"event":       "ingestion_complete",
		"new_unique":  summary.NewMentions,
		"total_found": summary.TotalFound,
		"duplicates":  summary.Duplicates,
	}
	if _, err := o.publisher.Publish(ctx, o.cfg.Topic, payload); err != nil {
		o.logger.Warn("completion publish failed", zap.Error(err))
	}
}

func preview(admitted []monitor.Mention) []monitor.Mention {
	if len(admitted) > previewLimit {
		admitted = admitted[:previewLimit]
	}
	out := make([]monitor.Mention, len(admitted))
	copy(out, admitted)
	return out
}
