package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// Field weights for bm25(): title, body, excerpt, keywords
const bm25Weights = "10.0, 1.0, 3.0, 5.0"

// builtQuery holds the FROM and WHERE fragments compiled from Criteria
type builtQuery struct {
	from  string
	where []string
	args  []interface{}
	match bool
}

// buildCriteria compiles criteria into SQL fragments. The search_index table is always aliased si.
func buildCriteria(c *Criteria) *builtQuery {
	b := &builtQuery{from: "search_index si"}
	if c == nil {
		return b
	}

	if c.Match != "" {
		b.from = "search_index_fts JOIN search_index si ON si.id = search_index_fts.rowid"
		b.where = append(b.where, "search_index_fts MATCH ?")
		b.args = append(b.args, c.Match)
		b.match = true
	}

	if c.VisibleAt != nil {
		b.where = append(b.where, "si.status = ? AND (si.published_at IS NULL OR si.published_at <= ?)")
		b.args = append(b.args, string(types.StatusPublished), c.VisibleAt.Unix())
	}

	b.in("si.source_type", c.SourceTypes)
	b.in("si.category", c.Categories)
	b.in("si.author_id", c.Authors)
	b.in("si.status", c.Statuses)

	if c.DateFrom != nil {
		b.where = append(b.where, "si.published_at >= ?")
		b.args = append(b.args, c.DateFrom.Unix())
	}
	if c.DateTo != nil {
		b.where = append(b.where, "si.published_at <= ?")
		b.args = append(b.args, c.DateTo.Unix())
	}

	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		values := c.Metadata[key]
		if len(values) == 0 {
			continue
		}
		b.where = append(b.where, fmt.Sprintf(
			"si.id IN (SELECT entry_id FROM search_index_metadata WHERE key = ? AND value IN (%s))",
			placeholders(len(values))))
		b.args = append(b.args, key)
		for _, v := range values {
			b.args = append(b.args, v)
		}
	}

	return b
}

func (b *builtQuery) in(column string, values []string) {
	if len(values) == 0 {
		return
	}
	b.where = append(b.where, fmt.Sprintf("%s IN (%s)", column, placeholders(len(values))))
	for _, v := range values {
		b.args = append(b.args, v)
	}
}

func (b *builtQuery) whereSQL() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// CountCandidates returns the exact number of entries satisfying criteria
func (s *SQLiteStorage) CountCandidates(ctx context.Context, criteria *Criteria) (int, error) {
	b := buildCriteria(criteria)
	var count int
	query := "SELECT COUNT(*) FROM " + b.from + b.whereSQL()
	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count candidates: %w", err)
	}
	return count, nil
}

// SearchCandidates returns entries satisfying criteria in the requested order
func (s *SQLiteStorage) SearchCandidates(ctx context.Context, criteria *Criteria, page Page) ([]Candidate, error) {
	b := buildCriteria(criteria)

	scoreCols := ", 0.0, ''"
	if b.match {
		scoreCols = fmt.Sprintf(
			", -bm25(search_index_fts, %s), snippet(search_index_fts, -1, '<mark>', '</mark>', '…', 24)",
			bm25Weights)
	}

	query := "SELECT" + entryColumns + scoreCols + " FROM " + b.from + b.whereSQL() +
		" ORDER BY " + orderSQL(page, b.match)

	args := append([]interface{}{}, b.args...)
	limit := page.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, page.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]Candidate, 0)
	for rows.Next() {
		var c Candidate
		entry, err := scanEntry(rows, &c.RawScore, &c.Snippet)
		if err != nil {
			return nil, err
		}
		c.Entry = entry
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}
	return candidates, nil
}

func orderSQL(page Page, match bool) string {
	dir := "ASC"
	if page.Desc {
		dir = "DESC"
	}
	switch page.Order {
	case OrderPublished:
		return "si.published_at IS NULL, si.published_at " + dir + ", si.id ASC"
	case OrderTitle:
		return "si.title COLLATE NOCASE " + dir + ", si.id ASC"
	case OrderCategory:
		return "si.category COLLATE NOCASE " + dir + ", si.id ASC"
	default:
		if match {
			return fmt.Sprintf("bm25(search_index_fts, %s) ASC, si.id ASC", bm25Weights)
		}
		return "si.published_at IS NULL, si.published_at DESC, si.id ASC"
	}
}

var facetColumns = map[string]string{
	DimCategory.Name:   "si.category",
	DimStatus.Name:     "si.status",
	DimAuthor.Name:     "si.author_id",
	DimSourceType.Name: "si.source_type",
}

// FacetCounts counts candidate entries per distinct value of dim.
// Results are ordered by count descending, then value ascending. Empty values are skipped.
func (s *SQLiteStorage) FacetCounts(ctx context.Context, criteria *Criteria, dim Dimension, limit int) ([]types.FacetValue, error) {
	b := buildCriteria(criteria)
	if limit <= 0 {
		limit = -1
	}

	var query string
	var args []interface{}
	if dim.MetadataKey {
		query = "SELECT m.value, COUNT(DISTINCT si.id) AS n FROM " + b.from +
			" JOIN search_index_metadata m ON m.entry_id = si.id AND m.key = ?" +
			b.whereSQL() + " GROUP BY m.value ORDER BY n DESC, m.value ASC LIMIT ?"
		args = append(args, dim.Name)
		args = append(args, b.args...)
		args = append(args, limit)
	} else {
		column, ok := facetColumns[dim.Name]
		if !ok {
			return nil, fmt.Errorf("unknown facet dimension %q", dim.Name)
		}
		b.where = append(b.where, column+" != ''")
		query = "SELECT " + column + ", COUNT(*) AS n FROM " + b.from + b.whereSQL() +
			" GROUP BY " + column + " ORDER BY n DESC, " + column + " ASC LIMIT ?"
		args = append(args, b.args...)
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count facet %s: %w", dim.Name, err)
	}
	defer func() { _ = rows.Close() }()

	values := make([]types.FacetValue, 0)
	for rows.Next() {
		var fv types.FacetValue
		if err := rows.Scan(&fv.Value, &fv.Count); err != nil {
			return nil, err
		}
		values = append(values, fv)
	}
	return values, rows.Err()
}

// SuggestionSources returns title and keyword fields that may contain fragment, most recently indexed first.
// LIKE only folds ASCII case, so a word-prefix match on the unicode61 FTS index widens the set; callers
// apply the exact case-insensitive test.
func (s *SQLiteStorage) SuggestionSources(ctx context.Context, fragment string, visibleAt *time.Time, limit int) ([]SuggestionSource, error) {
	pattern := "%" + escapeLike(fragment) + "%"
	cond := "si.title LIKE ? ESCAPE '\\' OR si.keywords LIKE ? ESCAPE '\\'"
	args := []interface{}{pattern, pattern}
	if hasWordChars(fragment) {
		cond += " OR si.id IN (SELECT rowid FROM search_index_fts WHERE search_index_fts MATCH ?)"
		args = append(args, "{title keywords} : "+ftsPrefix(fragment))
	}
	query := "SELECT si.title, si.keywords FROM search_index si WHERE (" + cond + ")"
	if visibleAt != nil {
		query += " AND si.status = ? AND (si.published_at IS NULL OR si.published_at <= ?)"
		args = append(args, string(types.StatusPublished), visibleAt.Unix())
	}
	if limit <= 0 {
		limit = -1
	}
	query += " ORDER BY si.indexed_at DESC, si.id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sources := make([]SuggestionSource, 0)
	for rows.Next() {
		var src SuggestionSource
		if err := rows.Scan(&src.Title, &src.Keywords); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// ftsPrefix quotes fragment as an FTS5 phrase whose last token is a prefix
func ftsPrefix(fragment string) string {
	return `"` + strings.ReplaceAll(fragment, `"`, `""`) + `"*`
}

func hasWordChars(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
