// Package memory provides an in-memory store implementation for
// development and testing.
package memory

import (
	"context"
	"sync"

	"github.com/muniwatch/muniwatch/internal/monitor"
)

const crawlLogCap = 100

// Store holds both collections behind a mutex, mirroring the single-writer
// behavior of the file-backed store.
type Store struct {
	mu       sync.RWMutex
	mentions []monitor.Mention
	log      []monitor.CrawlLogEntry
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// LoadMentions returns a copy of the mention collection.
func (s *Store) LoadMentions(_ context.Context) ([]monitor.Mention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]monitor.Mention, len(s.mentions))
	copy(out, s.mentions)
	return out, nil
}

// SaveMentions replaces the mention collection.
func (s *Store) SaveMentions(_ context.Context, mentions []monitor.Mention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mentions = make([]monitor.Mention, len(mentions))
	copy(s.mentions, mentions)
	return nil
}

// LoadCrawlLog returns a copy of the crawl history, oldest first.
func (s *Store) LoadCrawlLog(_ context.Context) ([]monitor.CrawlLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]monitor.CrawlLogEntry, len(s.log))
	copy(out, s.log)
	return out, nil
}

// AppendCrawlLog appends one entry, keeping only the newest hundred.
func (s *Store) AppendCrawlLog(_ context.Context, entry monitor.CrawlLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, entry)
	if len(s.log) > crawlLogCap {
		s.log = s.log[len(s.log)-crawlLogCap:]
	}
	return nil
}
