// Package repository implements the operations over the mention collection:
// filtering, lookup, restricted update, deletion, URL deduplication and
// aggregate statistics.
//
// Every operation loads a fresh snapshot from the store and, when it
// mutates, hands back a full replacement. Serialization of concurrent
// writers is the store's concern, not the repository's.
package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muniwatch/muniwatch/internal/monitor"
)

// FilterAll is the sentinel a caller may pass to mean "no restriction",
// equivalent to leaving the filter empty.
const FilterAll = "all"

// Filter restricts List results. Empty (or FilterAll) fields do not
// restrict; present fields compose with logical AND.
type Filter struct {
	Status   string
	Location string
	Priority string
}

func (f Filter) matches(m monitor.Mention) bool {
	if active(f.Status) && m.Status != f.Status {
		return false
	}
	if active(f.Location) && m.Location != f.Location {
		return false
	}
	if active(f.Priority) && m.Priority != f.Priority {
		return false
	}
	return true
}

func active(v string) bool {
	return v != "" && v != FilterAll
}

// Repository operates on the mention collection through a Store.
type Repository struct {
	store  monitor.Store
	clock  monitor.Clock
	logger *zap.Logger
}

// New constructs a Repository.
func New(store monitor.Store, clock monitor.Clock, logger *zap.Logger) *Repository {
	return &Repository{store: store, clock: clock, logger: logger}
}

// List returns the mentions matching the filter, in insertion order.
func (r *Repository) List(ctx context.Context, f Filter) ([]monitor.Mention, error) {
	mentions, err := r.store.LoadMentions(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mentions: %w", err)
	}
	out := make([]monitor.Mention, 0, len(mentions))
	for _, m := range mentions {
		if f.matches(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

// Get returns the first mention with the given ID, or ErrNotFound.
func (r *Repository) Get(ctx context.Context, id string) (monitor.Mention, error) {
	mentions, err := r.store.LoadMentions(ctx)
	if err != nil {
		return monitor.Mention{}, fmt.Errorf("load mentions: %w", err)
	}
	for _, m := range mentions {
		if m.ID == id {
			return m, nil
		}
	}
	return monitor.Mention{}, monitor.ErrNotFound
}

// Update applies the patch to the mention with the given ID and persists the
// collection. Only status, tags, notes and priority can change; updated_at
// is stamped on every successful update. Returns ErrNotFound on a miss.
func (r *Repository) Update(ctx context.Context, id string, patch monitor.MentionPatch) (monitor.Mention, error) {
	mentions, err := r.store.LoadMentions(ctx)
	if err != nil {
		return monitor.Mention{}, fmt.Errorf("load mentions: %w", err)
	}
	for i := range mentions {
		if mentions[i].ID != id {
			continue
		}
		if patch.Status != nil {
			mentions[i].Status = *patch.Status
		}
		if patch.Tags != nil {
			mentions[i].Tags = *patch.Tags
		}
		if patch.Notes != nil {
			mentions[i].Notes = *patch.Notes
		}
		if patch.Priority != nil {
			mentions[i].Priority = *patch.Priority
		}
		mentions[i].UpdatedAt = r.clock.Now().Format(time.RFC3339)
		if err := r.store.SaveMentions(ctx, mentions); err != nil {
			return monitor.Mention{}, fmt.Errorf("save mentions: %w", err)
		}
		r.logger.Info("mention updated", zap.String("id", id))
		return mentions[i], nil
	}
	return monitor.Mention{}, monitor.ErrNotFound
}

// Delete removes the mention with the given ID and persists the remainder.
// This is a hard delete, independent of the soft "deleted" status value.
// Returns ErrNotFound, without writing, when no mention matches.
func (r *Repository) Delete(ctx context.Context, id string) error {
	mentions, err := r.store.LoadMentions(ctx)
	if err != nil {
		return fmt.Errorf("load mentions: %w", err)
	}
	for i := range mentions {
		if mentions[i].ID != id {
			continue
		}
		remaining := append(mentions[:i:i], mentions[i+1:]...)
		if err := r.store.SaveMentions(ctx, remaining); err != nil {
			return fmt.Errorf("save mentions: %w", err)
		}
		r.logger.Info("mention deleted", zap.String("id", id))
		return nil
	}
	return monitor.ErrNotFound
}

// DedupeMerge admits the incoming mentions whose URL is not already present
// in existing, preserving the relative order of both slices. It returns the
// merged collection and the admitted subset. Candidates with an empty URL
// are admitted; among the incoming slice itself a repeated URL is only
// admitted once.
func DedupeMerge(existing, incoming []monitor.Mention) (merged, admitted []monitor.Mention) {
	seen := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		if m.URL != "" {
			seen[m.URL] = struct{}{}
		}
	}
	for _, m := range incoming {
		if m.URL != "" {
			if _, dup := seen[m.URL]; dup {
				continue
			}
			seen[m.URL] = struct{}{}
		}
		admitted = append(admitted, m)
	}
	merged = make([]monitor.Mention, 0, len(existing)+len(admitted))
	merged = append(merged, existing...)
	merged = append(merged, admitted...)
	return merged, admitted
}

// capturedAtLayouts accepts RFC3339 stamps and zone-less ISO-8601 ones, the
// format older records carry.
var capturedAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func capturedOn(m monitor.Mention, day time.Time) bool {
	if m.CapturedAt == "" {
		return false
	}
	for _, layout := range capturedAtLayouts {
		ts, err := time.ParseInLocation(layout, m.CapturedAt, day.Location())
		if err != nil {
			continue
		}
		y1, m1, d1 := ts.In(day.Location()).Date()
		y2, m2, d2 := day.Date()
		return y1 == y2 && m1 == m2 && d1 == d2
	}
	return false
}

// Stats aggregates the collection: totals per status, captures dated today
// in the server's local zone, and the distinct non-empty locations and
// sources. Mentions with missing or unparseable capture stamps simply do
// not count toward today's captures.
func (r *Repository) Stats(ctx context.Context) (monitor.Statistics, error) {
	mentions, err := r.store.LoadMentions(ctx)
	if err != nil {
		return monitor.Statistics{}, fmt.Errorf("load mentions: %w", err)
	}

	stats := monitor.Statistics{
		Total:     len(mentions),
		Locations: []string{},
		Sources:   []string{},
	}
	today := r.clock.Now()
	locations := make(map[string]struct{})
	sources := make(map[string]struct{})
	for _, m := range mentions {
		switch m.Status {
		case monitor.StatusPending:
			stats.Pending++
		case monitor.StatusApproved:
			stats.Approved++
		case monitor.StatusDeleted:
			stats.Deleted++
		}
		if capturedOn(m, today) {
			stats.TodayCaptured++
		}
		if m.Location != "" {
			locations[m.Location] = struct{}{}
		}
		if m.Source != "" {
			sources[m.Source] = struct{}{}
		}
	}
	for loc := range locations {
		stats.Locations = append(stats.Locations, loc)
	}
	for src := range sources {
		stats.Sources = append(stats.Sources, src)
	}
	return stats, nil
}
