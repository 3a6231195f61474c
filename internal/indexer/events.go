package indexer

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/metrics"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// EventType names a content lifecycle notification
type EventType string

const (
	EventCreated     EventType = "created"
	EventUpdated     EventType = "updated"
	EventPublished   EventType = "published"
	EventUnpublished EventType = "unpublished"
	EventDeleted     EventType = "deleted"
)

// ParseEventType validates a raw event type
func ParseEventType(raw string) (EventType, error) {
	switch t := EventType(strings.ToLower(strings.TrimSpace(raw))); t {
	case EventCreated, EventUpdated, EventPublished, EventUnpublished, EventDeleted:
		return t, nil
	default:
		return "", types.NewValidationError("type", "unknown event type %q", raw)
	}
}

// Event is a lifecycle notification from the content subsystem.
// Record carries the entity snapshot and is required for every type except deleted.
type Event struct {
	Type       EventType        `json:"type"`
	SourceType types.SourceKind `json:"source_type"`
	SourceID   string           `json:"source_id"`
	Record     *Record          `json:"record,omitempty"`
}

// Validate checks the event envelope. Entry-level validation happens at upsert time.
func (ev *Event) Validate() error {
	t, err := ParseEventType(string(ev.Type))
	if err != nil {
		return err
	}
	ev.Type = t

	kind, err := types.ParseSourceKind(string(ev.SourceType))
	if err != nil {
		return err
	}
	ev.SourceType = kind

	ev.SourceID = strings.TrimSpace(ev.SourceID)
	if ev.SourceID == "" && ev.Record != nil {
		ev.SourceID = strings.TrimSpace(ev.Record.SourceID)
	}
	if ev.SourceID == "" {
		return types.NewValidationError("source_id", "source id is required")
	}

	if ev.Type != EventDeleted && ev.Record == nil {
		return types.NewValidationError("record", "%s events require a record", ev.Type)
	}
	return nil
}

// HandleEvent applies a lifecycle event to the index. Failures are logged and
// counted but never returned, so the triggering content operation is unaffected.
func (idx *Indexer) HandleEvent(ctx context.Context, ev Event) {
	if err := ev.Validate(); err != nil {
		metrics.IndexOperationsTotal.WithLabelValues("event", "failed").Inc()
		idx.logger.Warn("invalid lifecycle event",
			zap.String("type", string(ev.Type)),
			zap.String("source_type", string(ev.SourceType)),
			zap.String("source_id", ev.SourceID),
			zap.Error(err))
		return
	}

	var err error
	if entry := ev.entry(); entry != nil && searchable(entry) {
		err = idx.Upsert(ctx, entry)
	} else {
		err = idx.Remove(ctx, ev.SourceType, ev.SourceID)
	}

	if err != nil {
		idx.logger.Error("index sync failed",
			zap.String("type", string(ev.Type)),
			zap.String("source_type", string(ev.SourceType)),
			zap.String("source_id", ev.SourceID),
			zap.Error(err))
		return
	}

	idx.logger.Debug("index synced",
		zap.String("type", string(ev.Type)),
		zap.String("source_type", string(ev.SourceType)),
		zap.String("source_id", ev.SourceID))
}

// entry builds the entry to upsert, or nil when the event removes it
func (ev *Event) entry() *types.Entry {
	if ev.Type == EventDeleted || ev.Record == nil {
		return nil
	}

	e := ev.Record.Entry(ev.SourceType)
	e.SourceID = ev.SourceID

	switch ev.Type {
	case EventPublished:
		e.Status = types.StatusPublished
	case EventUnpublished:
		if e.Status == "" || e.Status == types.StatusPublished {
			e.Status = types.StatusDraft
		}
	}
	return e
}

// searchable reports whether an entity belongs in the index at all.
// Drafts and private entries stay indexed for privileged searches.
func searchable(e *types.Entry) bool {
	return e.Status != types.StatusArchived
}
