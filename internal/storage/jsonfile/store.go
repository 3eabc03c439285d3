// Package jsonfile persists mentions and the crawl log as whole-file JSON
// snapshots under a data directory.
//
// Every write replaces the full file via a temp file and rename, and every
// operation holds a single mutex, so the store is a single-writer
// serialization point: concurrent crawl triggers and manual edits cannot
// interleave a read-modify-write against the same file.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/muniwatch/muniwatch/internal/monitor"
)

const (
	mentionsFile = "mentions.json"
	crawlLogFile = "crawl_log.json"

	// crawlLogCap bounds the audit log; appends drop the oldest entries.
	crawlLogCap = 100
)

// Store reads and writes the two snapshot files.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *zap.Logger
}

// New creates the data directory if needed and returns a Store.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// LoadMentions returns the stored mention collection. A missing file yields
// an empty collection; an unparsable file is logged and also yields an empty
// collection so read paths stay available.
func (s *Store) LoadMentions(_ context.Context) ([]monitor.Mention, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return readSnapshot[monitor.Mention](s, mentionsFile), nil
}

// SaveMentions replaces the mentions file with the given collection.
// A write failure is logged and swallowed: callers keep their in-memory
// view and the previous snapshot stays intact on disk.
func (s *Store) SaveMentions(_ context.Context, mentions []monitor.Mention) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mentions == nil {
		mentions = []monitor.Mention{}
	}
	s.write(mentionsFile, mentions)
	return nil
}

// LoadCrawlLog returns the stored crawl history, oldest first.
func (s *Store) LoadCrawlLog(_ context.Context) ([]monitor.CrawlLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return readSnapshot[monitor.CrawlLogEntry](s, crawlLogFile), nil
}

// AppendCrawlLog appends one entry and truncates the log to the most recent
// hundred entries, dropping from the front.
func (s *Store) AppendCrawlLog(_ context.Context, entry monitor.CrawlLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := readSnapshot[monitor.CrawlLogEntry](s, crawlLogFile)
	entries = append(entries, entry)
	if len(entries) > crawlLogCap {
		entries = entries[len(entries)-crawlLogCap:]
	}
	s.write(crawlLogFile, entries)
	return nil
}

// readSnapshot decodes the named file, returning an empty collection when
// the file is missing or corrupt. Any decode error discards the whole
// collection, never just the offending elements, so partially decoded
// entries can never leak back into a later write.
func readSnapshot[T any](s *Store, name string) []T {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("read snapshot failed", zap.String("file", name), zap.Error(err))
		}
		return nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Error("parse snapshot failed, treating as empty",
			zap.String("file", name), zap.Error(err))
		return nil
	}
	return out
}

// write serializes v pretty-indented and atomically replaces the named file.
func (s *Store) write(name string, v any) {
	path := filepath.Join(s.dir, name)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		s.logger.Error("encode snapshot failed", zap.String("file", name), zap.Error(err))
		return
	}
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		s.logger.Error("create temp snapshot failed", zap.String("file", name), zap.Error(err))
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		s.logger.Error("write snapshot failed", zap.String("file", name), zap.Error(err))
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return
	}
	if err := tmp.Close(); err != nil {
		s.logger.Error("close snapshot failed", zap.String("file", name), zap.Error(err))
		_ = os.Remove(tmpName)
		return
	}
	if err := os.Rename(tmpName, path); err != nil {
		s.logger.Error("replace snapshot failed", zap.String("file", name), zap.Error(err))
		_ = os.Remove(tmpName)
	}
}
