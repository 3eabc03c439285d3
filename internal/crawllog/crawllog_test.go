package crawllog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muniwatch/muniwatch/internal/storage/memory"
)

func TestRecordDerivesDuplicates(t *testing.T) {
	t.Parallel()

	store := memory.New()
	now := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	log := New(store, fixedClock{now: now}, zap.NewNop())

	entry, err := log.Record(context.Background(), []string{"municipal utility"}, 7, 4)
	require.NoError(t, err)
	require.Equal(t, now, entry.Timestamp)
	require.Equal(t, 7, entry.TotalFound)
	require.Equal(t, 4, entry.NewUnique)
	require.Equal(t, 3, entry.Duplicates)
	require.Equal(t, entry.TotalFound, entry.NewUnique+entry.Duplicates)

	stored, err := store.LoadCrawlLog(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, entry, stored[0])
}

func TestRecentWindow(t *testing.T) {
	t.Parallel()

	store := memory.New()
	log := New(store, fixedClock{now: time.Now()}, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		_, err := log.Record(ctx, nil, i, i)
		require.NoError(t, err)
	}

	recent, err := log.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	require.Equal(t, 25, recent[0].TotalFound, "oldest of the window first")
	require.Equal(t, 29, recent[4].TotalFound)

	defaulted, err := log.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, defaulted, DefaultRecentLimit)

	everything, err := log.Recent(ctx, 1000)
	require.NoError(t, err)
	require.Len(t, everything, 30)
}

func TestRecentEmptyLog(t *testing.T) {
	t.Parallel()

	log := New(memory.New(), fixedClock{now: time.Now()}, zap.NewNop())
	recent, err := log.Recent(context.Background(), 0)
	require.NoError(t, err)
	require.Empty(t, recent)
}

// --- fakes ---

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}
