package searcher

import (
	"time"

	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// Item is the wire form of one search hit
type Item struct {
	ID          int64          `json:"id"`
	SourceType  string         `json:"source_type"`
	SourceID    string         `json:"source_id"`
	Title       string         `json:"title"`
	Excerpt     string         `json:"excerpt,omitempty"`
	Snippet     string         `json:"snippet,omitempty"`
	Category    string         `json:"category,omitempty"`
	Status      string         `json:"status"`
	AuthorID    string         `json:"author_id,omitempty"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	Keywords    []string       `json:"keywords,omitempty"`
	Metadata    types.Metadata `json:"metadata,omitempty"`
	Rank        int            `json:"rank"`
	Score       float64        `json:"score"`
}

// ResultPage is the wire form of a search response
type ResultPage struct {
	Items     []Item                        `json:"items"`
	Total     int                           `json:"total"`
	Page      int                           `json:"page"`
	PerPage   int                           `json:"per_page"`
	Mode      SearchMode                    `json:"mode"`
	Sort      SortField                     `json:"sort"`
	Direction Direction                     `json:"direction"`
	Facets    map[string][]types.FacetValue `json:"facets,omitempty"`
	TookMs    int64                         `json:"took_ms"`
	Cached    bool                          `json:"cached"`
}

// ItemFromResult converts a ranked result into its wire form
func ItemFromResult(r types.SearchResult) Item {
	e := r.Entry
	return Item{
		ID:          e.ID,
		SourceType:  string(e.SourceType),
		SourceID:    e.SourceID,
		Title:       e.Title,
		Excerpt:     e.Excerpt,
		Snippet:     r.Snippet,
		Category:    e.Category,
		Status:      string(e.Status),
		AuthorID:    e.AuthorID,
		PublishedAt: e.PublishedAt,
		Keywords:    e.KeywordList(),
		Metadata:    e.Metadata,
		Rank:        r.Rank,
		Score:       r.Score,
	}
}

// Wire converts the response into its wire form
func (r *SearchResponse) Wire() ResultPage {
	items := make([]Item, 0, len(r.Results))
	for _, res := range r.Results {
		items = append(items, ItemFromResult(res))
	}
	return ResultPage{
		Items:     items,
		Total:     r.Total,
		Page:      r.Page,
		PerPage:   r.PerPage,
		Mode:      r.Mode,
		Sort:      r.Sort,
		Direction: r.Direction,
		Facets:    r.Facets,
		TookMs:    r.Duration.Milliseconds(),
		Cached:    r.CacheHit,
	}
}
