// Package monitor defines core types shared across subsystems.
package monitor

import (
	"encoding/json"
	"time"
)

// Mention status values observed in stored data. The status field is an open
// enum: values outside this set are passed through untouched so that records
// written by older or external tooling keep filtering and exporting cleanly.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDeleted  = "deleted"
)

// Mention is one discovered web reference to the monitored topic.
//
// ID, URL and CapturedAt are set at discovery time and never change.
// URL is the deduplication key for ingestion. Timestamps are kept as
// ISO-8601 strings rather than time.Time so that records with missing or
// malformed stamps load without error and degrade gracefully in stats.
type Mention struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	Title      string   `json:"title,omitempty"`
	Snippet    string   `json:"snippet,omitempty"`
	Status     string   `json:"status"`
	Location   string   `json:"location,omitempty"`
	Source     string   `json:"source,omitempty"`
	Priority   string   `json:"priority,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	CapturedAt string   `json:"capturedAt,omitempty"`
	UpdatedAt  string   `json:"updated_at,omitempty"`

	// extra holds JSON fields this version does not interpret, so a
	// read-modify-write cycle never drops data written by newer code.
	extra map[string]json.RawMessage
}

// mentionAlias avoids recursing into the custom JSON methods.
type mentionAlias Mention

// knownMentionFields are the JSON keys owned by the struct fields above.
var knownMentionFields = []string{
	"id", "url", "title", "snippet", "status", "location",
	"source", "priority", "tags", "notes", "capturedAt", "updated_at",
}

// UnmarshalJSON decodes the known fields and retains everything else.
// The id field additionally accepts numeric values, which older tooling
// wrote; they are stored and compared as strings.
func (m *Mention) UnmarshalJSON(data []byte) error {
	var alias struct {
		mentionAlias
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, k := range knownMentionFields {
		delete(raw, k)
	}
	if len(raw) == 0 {
		raw = nil
	}
	*m = Mention(alias.mentionAlias)
	m.ID = stringifyID(alias.ID)
	m.extra = raw
	return nil
}

// stringifyID renders a string or numeric id value as a string. Anything
// else is kept in its raw form so the record still loads.
func stringifyID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}

// MarshalJSON emits the known fields plus any retained unknown fields.
func (m Mention) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(mentionAlias(m))
	if err != nil {
		return nil, err
	}
	if len(m.extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range m.extra {
		if _, owned := merged[k]; owned {
			continue
		}
		merged[k] = v
	}
	return json.Marshal(merged)
}

// Extra returns the value of an uninterpreted JSON field, if present.
func (m Mention) Extra(key string) (json.RawMessage, bool) {
	v, ok := m.extra[key]
	return v, ok
}

// MentionPatch carries the fields a caller may change on a mention.
// Nil means "leave as is". Anything else in the request body is ignored.
type MentionPatch struct {
	Status   *string   `json:"status"`
	Tags     *[]string `json:"tags"`
	Notes    *string   `json:"notes"`
	Priority *string   `json:"priority"`
}

// CrawlLogEntry records one ingestion run. TotalFound is always
// NewUnique + Duplicates.
type CrawlLogEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Queries    []string  `json:"queries"`
	TotalFound int       `json:"total_found"`
	NewUnique  int       `json:"new_unique"`
	Duplicates int       `json:"duplicates"`
}

// Statistics summarizes the mention collection for the dashboard.
// Locations and Sources are distinct non-empty values in no particular order.
type Statistics struct {
	Total         int      `json:"total"`
	Pending       int      `json:"pending"`
	Approved      int      `json:"approved"`
	Deleted       int      `json:"deleted"`
	TodayCaptured int      `json:"today_captured"`
	Locations     []string `json:"locations"`
	Sources       []string `json:"sources"`
}

// IngestSummary is returned from one ingestion run. Mentions holds at most
// the first ten newly admitted records, as a preview for the UI.
type IngestSummary struct {
	Success     bool      `json:"success"`
	NewMentions int       `json:"new_mentions"`
	TotalFound  int       `json:"total_found"`
	Duplicates  int       `json:"duplicates"`
	Mentions    []Mention `json:"mentions"`
	Error       string    `json:"error,omitempty"`
}
