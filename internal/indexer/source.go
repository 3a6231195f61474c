package indexer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ArtisanPack-UI/cms-framework-sub002/internal/config"
	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// maxRecordSize bounds a single JSON-lines record
const maxRecordSize = 4 << 20

// FetchFunc streams every searchable entity of one source kind to emit.
// Returning an error stops the fetch; a failed fetch never prunes its kind.
type FetchFunc func(ctx context.Context, emit func(*types.Entry) error) error

// Registry maps source kinds to their fetch functions
type Registry struct {
	mu       sync.RWMutex
	fetchers map[types.SourceKind]FetchFunc
}

// NewRegistry creates an empty source registry
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[types.SourceKind]FetchFunc)}
}

// Register binds fn to kind, replacing any previous binding
func (r *Registry) Register(kind types.SourceKind, fn FetchFunc) error {
	if _, err := types.ParseSourceKind(string(kind)); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("nil fetch function for source %s", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[kind] = fn
	return nil
}

// Kinds returns the registered kinds in declaration order
func (r *Registry) Kinds() []types.SourceKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]types.SourceKind, 0, len(r.fetchers))
	for _, k := range types.KnownSourceKinds {
		if _, ok := r.fetchers[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Fetcher returns the fetch function registered for kind
func (r *Registry) Fetcher(kind types.SourceKind) (FetchFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fetchers[kind]
	return fn, ok
}

// RegistryFromConfig registers a JSON-lines source for every configured export
func RegistryFromConfig(sources []config.SourceConfig) (*Registry, error) {
	reg := NewRegistry()
	for _, src := range sources {
		kind, err := types.ParseSourceKind(src.Kind)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(kind, JSONLSource(kind, src.Path)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Record is the wire form of a source entity, used by JSON-lines exports and lifecycle events
type Record struct {
	SourceID       string         `json:"source_id"`
	Title          string         `json:"title"`
	Body           string         `json:"body"`
	Excerpt        string         `json:"excerpt"`
	Keywords       string         `json:"keywords"`
	Category       string         `json:"category"`
	Status         string         `json:"status"`
	AuthorID       string         `json:"author_id"`
	PublishedAt    *time.Time     `json:"published_at"`
	RelevanceBoost float64        `json:"relevance_boost"`
	Metadata       types.Metadata `json:"metadata"`
}

// Entry converts the record into an index entry of the given kind
func (r *Record) Entry(kind types.SourceKind) *types.Entry {
	return &types.Entry{
		SourceType:     kind,
		SourceID:       r.SourceID,
		Title:          r.Title,
		Body:           r.Body,
		Excerpt:        r.Excerpt,
		Keywords:       r.Keywords,
		Category:       r.Category,
		Status:         types.Status(strings.ToLower(strings.TrimSpace(r.Status))),
		AuthorID:       r.AuthorID,
		PublishedAt:    r.PublishedAt,
		RelevanceBoost: r.RelevanceBoost,
		Metadata:       r.Metadata,
	}
}

// JSONLSource reads one Record per line from path. Blank lines are skipped.
func JSONLSource(kind types.SourceKind, path string) FetchFunc {
	return func(ctx context.Context, emit func(*types.Entry) error) error {
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("open source %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), maxRecordSize)

		line := 0
		for scanner.Scan() {
			line++
			if err := ctx.Err(); err != nil {
				return err
			}

			raw := strings.TrimSpace(scanner.Text())
			if raw == "" {
				continue
			}

			var rec Record
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				return fmt.Errorf("%s:%d: %w", path, line, err)
			}
			if err := emit(rec.Entry(kind)); err != nil {
				return err
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read source %s: %w", path, err)
		}
		return nil
	}
}

// SliceSource serves a fixed set of entries, mostly useful in tests and embedding programs
func SliceSource(entries ...*types.Entry) FetchFunc {
	return func(ctx context.Context, emit func(*types.Entry) error) error {
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			cp := *e
			if err := emit(&cp); err != nil {
				return err
			}
		}
		return nil
	}
}
