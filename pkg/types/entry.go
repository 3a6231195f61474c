package types

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies the kind of CMS entity an index entry was derived from
type SourceKind string

const (
	SourceContent SourceKind = "content"
	SourceTerm    SourceKind = "term"
	SourceMedia   SourceKind = "media"
)

// KnownSourceKinds lists every source kind the index accepts
var KnownSourceKinds = []SourceKind{SourceContent, SourceTerm, SourceMedia}

// ParseSourceKind validates a raw source type tag
func ParseSourceKind(raw string) (SourceKind, error) {
	kind := SourceKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, k := range KnownSourceKinds {
		if k == kind {
			return kind, nil
		}
	}
	return "", NewValidationError("source_type", "unknown source type %q", raw)
}

// Status is the lifecycle flag of the source entity
type Status string

const (
	StatusPublished Status = "published"
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusPrivate   Status = "private"
	StatusArchived  Status = "archived"
)

// ParseStatus validates a raw status value
func ParseStatus(raw string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPublished, StatusDraft, StatusPending, StatusPrivate, StatusArchived:
		return s, nil
	default:
		return "", NewValidationError("status", "unknown status %q", raw)
	}
}

// DefaultRelevanceBoost is applied when an entry carries no explicit boost
const DefaultRelevanceBoost = 1.0

// Entry is a denormalized, searchable snapshot of one source entity.
// The source entity remains the system of record; entries are rebuilt by reindexing.
type Entry struct {
	// Identification
	ID         int64
	SourceType SourceKind
	SourceID   string

	// Indexed text
	Title    string
	Body     string
	Excerpt  string
	Keywords string // comma-separated

	// Classification
	Category string
	Status   Status
	AuthorID string // empty when the source has no author

	PublishedAt    *time.Time // nil means never published
	RelevanceBoost float64
	Metadata       Metadata

	IndexedAt time.Time
}

// Key returns the (sourceType, sourceId) identity of the entry
func (e *Entry) Key() string {
	return string(e.SourceType) + ":" + e.SourceID
}

// Visible reports whether unprivileged callers may see the entry at the given instant
func (e *Entry) Visible(now time.Time) bool {
	if e.Status != StatusPublished {
		return false
	}
	return e.PublishedAt == nil || !e.PublishedAt.After(now)
}

// KeywordList splits the comma-separated keywords field
func (e *Entry) KeywordList() []string {
	return splitKeywords(e.Keywords)
}

// Normalize trims text fields, canonicalizes keywords and applies the default boost
func (e *Entry) Normalize() {
	e.SourceID = strings.TrimSpace(e.SourceID)
	e.Title = strings.TrimSpace(e.Title)
	e.Excerpt = strings.TrimSpace(e.Excerpt)
	e.Category = strings.TrimSpace(e.Category)
	e.AuthorID = strings.TrimSpace(e.AuthorID)
	e.Keywords = strings.Join(splitKeywords(e.Keywords), ",")
	if e.Status == "" {
		e.Status = StatusDraft
	}
	if e.RelevanceBoost == 0 {
		e.RelevanceBoost = DefaultRelevanceBoost
	}
	if e.PublishedAt != nil {
		t := e.PublishedAt.UTC().Truncate(time.Second)
		e.PublishedAt = &t
	}
}

// Validate performs write-time validation of the entry
func (e *Entry) Validate() error {
	if _, err := ParseSourceKind(string(e.SourceType)); err != nil {
		return err
	}

	if e.SourceID == "" {
		return NewValidationError("source_id", "source id is required")
	}

	if e.Title == "" {
		return NewValidationError("title", "title is required")
	}

	if _, err := ParseStatus(string(e.Status)); err != nil {
		return err
	}

	if !(e.RelevanceBoost > 0) {
		return NewValidationError("relevance_boost", "relevance boost must be greater than 0, got %v", e.RelevanceBoost)
	}

	for key, v := range e.Metadata {
		if strings.TrimSpace(key) == "" {
			return NewValidationError("metadata", "metadata keys cannot be empty")
		}
		if !v.Valid() {
			return NewValidationError("metadata", "metadata value for %q is empty", key)
		}
	}

	return nil
}

// String is used in log fields
func (e *Entry) String() string {
	return fmt.Sprintf("%s (%q)", e.Key(), e.Title)
}

func splitKeywords(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
