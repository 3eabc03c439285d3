package monitor

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a mention lookup, update or delete misses.
var ErrNotFound = errors.New("mention not found")

// Store persists the two record collections as whole snapshots.
//
// Loads never fail on a missing backing file: they return an empty slice.
// The file-backed implementation additionally absorbs parse and write
// failures (logging them and returning empty/nil) so read paths stay
// available when a file is corrupt; stricter backends surface real errors.
type Store interface {
	LoadMentions(ctx context.Context) ([]Mention, error)
	SaveMentions(ctx context.Context, mentions []Mention) error
	LoadCrawlLog(ctx context.Context) ([]CrawlLogEntry, error)
	AppendCrawlLog(ctx context.Context, entry CrawlLogEntry) error
}

// Searcher executes search queries against an external source and returns
// candidate mentions, each already populated with an ID, URL, capture
// timestamp and classification fields.
type Searcher interface {
	Search(ctx context.Context, queries []string, maxPerQuery int) ([]Mention, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces mention IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
