// Package staticsearch provides a fixture-backed search collaborator for
// offline development and tests.
package staticsearch

import (
	"context"
	"fmt"
	"time"

	"github.com/muniwatch/muniwatch/internal/monitor"
)

// Result is one canned search hit.
type Result struct {
	URL      string
	Title    string
	Snippet  string
	Location string
	Source   string
	Priority string
}

// defaultResults seed a fresh install with something to look at.
var defaultResults = []Result{
	{
		URL:      "https://news.example.com/boulder-municipal-power",
		Title:    "Boulder explores municipal power takeover",
		Snippet:  "City council votes to fund a municipalization feasibility study.",
		Location: "Boulder",
		Source:   "news.example.com",
		Priority: "high",
	},
	{
		URL:      "https://journal.example.org/maine-referendum",
		Title:    "Maine public power referendum gathers signatures",
		Snippet:  "Advocates push a statewide consumer-owned utility.",
		Location: "Maine",
		Source:   "journal.example.org",
		Priority: "medium",
	},
	{
		URL:      "https://tribune.example.net/franchise-renewal",
		Title:    "Franchise agreement renewal sparks debate",
		Snippet:  "Residents question the value of the current electric franchise.",
		Location: "",
		Source:   "tribune.example.net",
		Priority: "low",
	},
}

// Searcher returns its fixtures for every run, stamping fresh IDs and
// capture timestamps the way the real collaborator would.
type Searcher struct {
	results []Result
	idGen   monitor.IDGenerator
	clock   monitor.Clock
}

// New builds a Searcher over the given fixtures; nil means the built-in set.
func New(results []Result, idGen monitor.IDGenerator, clock monitor.Clock) *Searcher {
	if results == nil {
		results = defaultResults
	}
	return &Searcher{results: results, idGen: idGen, clock: clock}
}

// Search returns at most maxPerQuery*len(queries) fixtures as candidates.
func (s *Searcher) Search(ctx context.Context, queries []string, maxPerQuery int) ([]monitor.Mention, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search canceled: %w", err)
	}
	limit := maxPerQuery * len(queries)
	if limit > len(s.results) {
		limit = len(s.results)
	}
	now := s.clock.Now().Format(time.RFC3339)
	out := make([]monitor.Mention, 0, limit)
	for _, r := range s.results[:limit] {
		id, err := s.idGen.NewID()
		if err != nil {
			return nil, fmt.Errorf("generate mention id: %w", err)
		}
		out = append(out, monitor.Mention{
			ID:         id,
			URL:        r.URL,
			Title:      r.Title,
			Snippet:    r.Snippet,
			Status:     monitor.StatusPending,
			Location:   r.Location,
			Source:     r.Source,
			Priority:   r.Priority,
			CapturedAt: now,
		})
	}
	return out, nil
}
