// Package collysearch implements the search collaborator against an HTML
// search endpoint (a Searx-style results page) using the Colly collector.
//
// Each returned candidate arrives fully populated: fresh ID, capture
// timestamp, pending status and keyword-classified location, priority and
// source. The mention pipeline downstream treats these as opaque.
package collysearch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/muniwatch/muniwatch/internal/monitor"
)

// Config controls collector behavior.
type Config struct {
	Endpoint     string
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Searcher implements monitor.Searcher by scraping search result pages.
type Searcher struct {
	cfg           Config
	idGen         monitor.IDGenerator
	clock         monitor.Clock
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// New builds a Searcher.
func New(cfg Config, idGen monitor.IDGenerator, clock monitor.Clock, logger *zap.Logger) (*Searcher, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("search endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("parse search endpoint: %w", err)
	}
	opts := []colly.CollectorOption{colly.Async(false)}
	if cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(cfg.UserAgent))
	}
	if cfg.MaxBodyBytes > 0 {
		opts = append(opts, colly.MaxBodySize(cfg.MaxBodyBytes))
	}
	c := colly.NewCollector(opts...)
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	c.SetRequestTimeout(timeout)

	return &Searcher{
		cfg:           cfg,
		idGen:         idGen,
		clock:         clock,
		logger:        logger,
		baseCollector: c,
	}, nil
}

// Search runs every query against the endpoint and returns at most
// maxPerQuery candidates per query. Any fetch failure aborts the whole run.
func (s *Searcher) Search(ctx context.Context, queries []string, maxPerQuery int) ([]monitor.Mention, error) {
	var all []monitor.Mention
	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search canceled: %w", err)
		}
		results, err := s.searchOne(query, maxPerQuery)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", query, err)
		}
		all = append(all, results...)
	}
	return all, nil
}

func (s *Searcher) searchOne(query string, maxPerQuery int) ([]monitor.Mention, error) {
	collector := s.baseCollector.Clone()

	var (
		results   []monitor.Mention
		scrapeErr error
	)
	collector.OnHTML(".result", func(e *colly.HTMLElement) {
		if len(results) >= maxPerQuery || scrapeErr != nil {
			return
		}
		link := e.ChildAttr("h3 a", "href")
		if link == "" {
			return
		}
		title := strings.TrimSpace(e.ChildText("h3 a"))
		snippet := strings.TrimSpace(e.ChildText(".content"))

		id, err := s.idGen.NewID()
		if err != nil {
			scrapeErr = fmt.Errorf("generate mention id: %w", err)
			return
		}
		results = append(results, monitor.Mention{
			ID:         id,
			URL:        link,
			Title:      title,
			Snippet:    snippet,
			Status:     monitor.StatusPending,
			Location:   classifyLocation(title + " " + snippet),
			Source:     sourceOf(link),
			Priority:   classifyPriority(title + " " + snippet),
			CapturedAt: s.clock.Now().Format(time.RFC3339),
		})
	})
	collector.OnError(func(resp *colly.Response, err error) {
		if scrapeErr == nil {
			scrapeErr = fmt.Errorf("fetch results (status %d): %w", resp.StatusCode, err)
		}
	})

	target := s.cfg.Endpoint + "?q=" + url.QueryEscape(query)
	s.logger.Debug("searching", zap.String("query", query))
	if err := collector.Visit(target); err != nil {
		return nil, fmt.Errorf("visit endpoint: %w", err)
	}
	if scrapeErr != nil {
		return nil, scrapeErr
	}
	s.logger.Info("query complete", zap.String("query", query), zap.Int("results", len(results)))
	return results, nil
}

// sourceOf reduces a result URL to its hostname.
func sourceOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// highPriorityTerms mark results about concrete municipalization action.
var highPriorityTerms = []string{
	"municipalization", "buyout", "ballot", "takeover", "public power vote",
}

// mediumPriorityTerms mark results about exploratory activity.
var mediumPriorityTerms = []string{
	"feasibility", "study", "franchise agreement", "task force", "referendum",
}

func classifyPriority(text string) string {
	lower := strings.ToLower(text)
	for _, term := range highPriorityTerms {
		if strings.Contains(lower, term) {
			return "high"
		}
	}
	for _, term := range mediumPriorityTerms {
		if strings.Contains(lower, term) {
			return "medium"
		}
	}
	return "low"
}

// knownRegions is a coarse keyword list for tagging a mention with the
// region it talks about. Unmatched text leaves location empty.
var knownRegions = []string{
	"Maine", "California", "Colorado", "New York", "Chicago", "Boulder",
	"San Diego", "San Francisco", "Ann Arbor", "Minneapolis", "Seattle",
	"New Mexico", "Rhode Island",
}

func classifyLocation(text string) string {
	lower := strings.ToLower(text)
	for _, region := range knownRegions {
		if strings.Contains(lower, strings.ToLower(region)) {
			return region
		}
	}
	return ""
}
