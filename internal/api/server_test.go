package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muniwatch/muniwatch/internal/config"
	"github.com/muniwatch/muniwatch/internal/crawllog"
	"github.com/muniwatch/muniwatch/internal/ingest"
	"github.com/muniwatch/muniwatch/internal/monitor"
	"github.com/muniwatch/muniwatch/internal/repository"
	"github.com/muniwatch/muniwatch/internal/storage/memory"
)

var testNow = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	server   *Server
	store    *memory.Store
	searcher *fakeSearcher
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Backend = "memory"
	if mutate != nil {
		mutate(&cfg)
	}

	store := memory.New()
	clock := fixedClock{now: testNow}
	logger := zap.NewNop()
	repo := repository.New(store, clock, logger)
	log := crawllog.New(store, clock, logger)
	searcher := &fakeSearcher{}
	orch := ingest.New(store, searcher, log, nil, ingest.Config{
		DefaultQueries:     cfg.Crawl.DefaultQueries,
		MaxResultsPerQuery: cfg.Crawl.MaxResultsPerQuery,
	}, logger)

	return &testEnv{
		server:   NewServer(repo, orch, log, clock, cfg, logger),
		store:    store,
		searcher: searcher,
	}
}

func (e *testEnv) do(t *testing.T, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, stringsReader(body))
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func seedMentions(t *testing.T, store *memory.Store, mentions ...monitor.Mention) {
	t.Helper()
	require.NoError(t, store.SaveMentions(context.Background(), mentions))
}

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/api/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body map[string]string
	decodeBody(t, rec, &body)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, Version, body["version"])
	require.Equal(t, testNow.Format(time.RFC3339), body["timestamp"])
}

func TestListMentionsWithFilters(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	seedMentions(t, env.store,
		monitor.Mention{ID: "1", URL: "https://a", Status: "pending", Priority: "high"},
		monitor.Mention{ID: "2", URL: "https://b", Status: "approved", Priority: "high"},
		monitor.Mention{ID: "3", URL: "https://c", Status: "pending", Priority: "low"},
	)

	rec := env.do(t, http.MethodGet, "/api/mentions?status=pending&priority=high", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var mentions []monitor.Mention
	decodeBody(t, rec, &mentions)
	require.Len(t, mentions, 1)
	require.Equal(t, "1", mentions[0].ID)
}

func TestGetMention(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	seedMentions(t, env.store, monitor.Mention{ID: "m-1", URL: "https://a", Status: "pending"})

	rec := env.do(t, http.MethodGet, "/api/mentions/m-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/mentions/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	require.Equal(t, "Mention not found", body["error"])
}

func TestUpdateMention(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	seedMentions(t, env.store, monitor.Mention{ID: "m-1", URL: "https://a", Status: "pending"})

	// Unknown fields in the patch (url, rank) are silently ignored.
	body := `{"status":"approved","priority":"high","url":"https://hijack","rank":12}`
	rec := env.do(t, http.MethodPatch, "/api/mentions/m-1", body, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated monitor.Mention
	decodeBody(t, rec, &updated)
	require.Equal(t, "approved", updated.Status)
	require.Equal(t, "high", updated.Priority)
	require.Equal(t, "https://a", updated.URL)
	require.Equal(t, testNow.Format(time.RFC3339), updated.UpdatedAt)

	rec = env.do(t, http.MethodPatch, "/api/mentions/m-1", `{not json`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/mentions/ghost", `{"status":"approved"}`, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMention(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	seedMentions(t, env.store, monitor.Mention{ID: "m-1", URL: "https://a"})

	rec := env.do(t, http.MethodDelete, "/api/mentions/m-1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	require.Equal(t, "Mention deleted successfully", body["message"])

	rec = env.do(t, http.MethodDelete, "/api/mentions/m-1", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerCrawl(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.searcher.results = candidateMentions(5)

	rec := env.do(t, http.MethodPost, "/api/crawl", `{"queries":["q1","q2"],"max_results_per_query":5}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary monitor.IngestSummary
	decodeBody(t, rec, &summary)
	require.True(t, summary.Success)
	require.Equal(t, 5, summary.TotalFound)
	require.Equal(t, 5, summary.NewMentions)
	require.Zero(t, summary.Duplicates)
	require.Equal(t, []string{"q1", "q2"}, env.searcher.gotQueries)

	// Identical re-run: everything is a duplicate now.
	rec = env.do(t, http.MethodPost, "/api/crawl", `{"queries":["q1","q2"],"max_results_per_query":5}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &summary)
	require.Zero(t, summary.NewMentions)
	require.Equal(t, 5, summary.Duplicates)
}

func TestTriggerCrawlEmptyBodyUsesDefaults(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/api/crawl", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, config.DefaultQueries, env.searcher.gotQueries)
	require.Equal(t, 10, env.searcher.gotMax)
}

func TestTriggerCrawlCollaboratorFailure(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.searcher.err = errors.New("search engine down")

	rec := env.do(t, http.MethodPost, "/api/crawl", "", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var summary monitor.IngestSummary
	decodeBody(t, rec, &summary)
	require.False(t, summary.Success)
	require.Contains(t, summary.Error, "search engine down")
}

func TestStats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	seedMentions(t, env.store,
		monitor.Mention{ID: "1", URL: "a", Status: "pending", Location: "Maine", CapturedAt: testNow.Format(time.RFC3339)},
		monitor.Mention{ID: "2", URL: "b", Status: "approved", Source: "news"},
	)

	rec := env.do(t, http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats monitor.Statistics
	decodeBody(t, rec, &stats)
	require.Equal(t, 2, stats.Total)
	require.Equal(t, 1, stats.Pending)
	require.Equal(t, 1, stats.Approved)
	require.Equal(t, 1, stats.TodayCaptured)
	require.Equal(t, []string{"Maine"}, stats.Locations)
	require.Equal(t, []string{"news"}, stats.Sources)
}

func TestCrawlLogEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		require.NoError(t, env.store.AppendCrawlLog(ctx, monitor.CrawlLogEntry{TotalFound: i}))
	}

	rec := env.do(t, http.MethodGet, "/api/crawl/log", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []monitor.CrawlLogEntry
	decodeBody(t, rec, &entries)
	require.Len(t, entries, 20, "default limit")
	require.Equal(t, 5, entries[0].TotalFound, "oldest of the window first")

	rec = env.do(t, http.MethodGet, "/api/crawl/log?limit=3", "", nil)
	decodeBody(t, rec, &entries)
	require.Len(t, entries, 3)

	rec = env.do(t, http.MethodGet, "/api/crawl/log?limit=banana", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExport(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	seedMentions(t, env.store,
		monitor.Mention{ID: "1", URL: "a", Status: "approved"},
		monitor.Mention{ID: "2", URL: "b", Status: "pending"},
	)

	rec := env.do(t, http.MethodGet, "/api/export?status=approved", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body exportResponse
	decodeBody(t, rec, &body)
	require.Equal(t, 1, body.Count)
	require.Len(t, body.Mentions, 1)
	require.Equal(t, testNow.Format(time.RFC3339), body.ExportedAt)
}

func TestWriteAuthGatesOnlyMutations(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Auth.Enabled = true
		cfg.Auth.APIKey = "sekret"
	})
	seedMentions(t, env.store, monitor.Mention{ID: "1", URL: "a", Status: "pending"})

	rec := env.do(t, http.MethodGet, "/api/mentions", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, "reads stay open")

	rec = env.do(t, http.MethodPatch, "/api/mentions/1", `{"status":"approved"}`, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPatch, "/api/mentions/1", `{"status":"approved"}`,
		map[string]string{"X-API-Key": "sekret"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/crawl", "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPINotFoundIsJSON(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/api/nonsense", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestStaticFallbackToIndex(t *testing.T) {
	t.Parallel()

	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<html>dashboard</html>"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "app.js"), []byte("console.log(1)"), 0o600))

	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Server.StaticDir = staticDir
	})

	rec := env.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "dashboard")

	rec = env.do(t, http.MethodGet, "/app.js", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "console.log")

	// Client-side route: unknown non-API path serves the index.
	rec = env.do(t, http.MethodGet, "/mentions/view/42", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "dashboard")
}

func TestUpdateThenDeleteScenario(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	env.searcher.results = candidateMentions(1)

	rec := env.do(t, http.MethodPost, "/api/crawl", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary monitor.IngestSummary
	decodeBody(t, rec, &summary)
	id := summary.Mentions[0].ID

	rec = env.do(t, http.MethodPatch, "/api/mentions/"+id, `{"priority":"high"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated monitor.Mention
	decodeBody(t, rec, &updated)
	require.Equal(t, "high", updated.Priority)
	require.NotEmpty(t, updated.UpdatedAt)

	rec = env.do(t, http.MethodDelete, "/api/mentions/"+id, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/mentions/"+id, "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func candidateMentions(n int) []monitor.Mention {
	out := make([]monitor.Mention, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, monitor.Mention{
			ID:         fmt.Sprintf("cand-%d", i),
			URL:        fmt.Sprintf("https://example.com/story-%d", i),
			Status:     monitor.StatusPending,
			CapturedAt: testNow.Format(time.RFC3339),
		})
	}
	return out
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// --- fakes ---

type fakeSearcher struct {
	results    []monitor.Mention
	err        error
	gotQueries []string
	gotMax     int
}

func (f *fakeSearcher) Search(_ context.Context, queries []string, maxPerQuery int) ([]monitor.Mention, error) {
	f.gotQueries = queries
	f.gotMax = maxPerQuery
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}
