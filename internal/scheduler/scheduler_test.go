package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muniwatch/muniwatch/internal/crawllog"
	"github.com/muniwatch/muniwatch/internal/ingest"
	"github.com/muniwatch/muniwatch/internal/monitor"
	"github.com/muniwatch/muniwatch/internal/storage/memory"
)

func newTestScheduler(t *testing.T, searcher monitor.Searcher) (*Scheduler, *memory.Store) {
	t.Helper()
	store := memory.New()
	log := crawllog.New(store, realClock{}, zap.NewNop())
	orch := ingest.New(store, searcher, log, nil, ingest.Config{
		DefaultQueries:     []string{"municipal utility"},
		MaxResultsPerQuery: 5,
	}, zap.NewNop())

	s, err := New("@hourly", orch, zap.NewNop())
	require.NoError(t, err)
	return s, store
}

func TestNewRejectsBadSpec(t *testing.T) {
	t.Parallel()

	_, err := New("not a cron spec", nil, zap.NewNop())
	require.Error(t, err)
}

func TestTickRunsIngestion(t *testing.T) {
	t.Parallel()

	searcher := &countingSearcher{}
	s, store := newTestScheduler(t, searcher)

	s.tick()
	require.Equal(t, int32(1), searcher.calls.Load())

	entries, err := store.LoadCrawlLog(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestTickSkipsWhenBusy(t *testing.T) {
	t.Parallel()

	searcher := &countingSearcher{}
	s, _ := newTestScheduler(t, searcher)

	s.running.Store(true)
	s.tick()
	require.Zero(t, searcher.calls.Load(), "tick must skip while a run is in flight")

	s.running.Store(false)
	s.tick()
	require.Equal(t, int32(1), searcher.calls.Load())
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s, _ := newTestScheduler(t, &countingSearcher{})
	s.Start()
	s.Stop()
}

// --- fakes ---

type countingSearcher struct {
	calls atomic.Int32
}

func (c *countingSearcher) Search(context.Context, []string, int) ([]monitor.Mention, error) {
	c.calls.Add(1)
	return []monitor.Mention{{ID: "1", URL: "https://example.com", Status: monitor.StatusPending}}, nil
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
