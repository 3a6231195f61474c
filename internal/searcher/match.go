package searcher

import (
	"strings"
	"unicode"

	snowballeng "github.com/kljensen/snowball/english"

	"github.com/ArtisanPack-UI/cms-framework-sub002/pkg/types"
)

// minStemLength keeps very short stems from turning into overly broad prefix queries
const minStemLength = 3

// tokenize splits text into lowercase letter/digit runs
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// quote renders terms as an FTS5 string, which disables operator parsing inside it
func quote(terms ...string) string {
	return `"` + strings.Join(terms, " ") + `"`
}

// buildMatch compiles user text into an FTS5 match expression for mode.
// An empty expression with a nil error means the query contains no searchable terms.
func buildMatch(query string, mode SearchMode, synonyms map[string][]string) (string, error) {
	switch mode {
	case ModeBoolean:
		return buildBooleanMatch(query)
	case ModeQueryExpansion:
		return buildExpansionMatch(query, synonyms), nil
	default:
		return buildNaturalMatch(query), nil
	}
}

func buildNaturalMatch(query string) string {
	terms := dedupe(tokenize(query))
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = quote(t)
	}
	return strings.Join(parts, " OR ")
}

func buildExpansionMatch(query string, synonyms map[string][]string) string {
	terms := dedupe(tokenize(query))
	seen := make(map[string]bool)
	var parts []string
	add := func(expr string) {
		if !seen[expr] {
			seen[expr] = true
			parts = append(parts, expr)
		}
	}

	for _, t := range terms {
		add(quote(t))
		if stem := snowballeng.Stem(t, false); len(stem) >= minStemLength && stem != t {
			add(quote(stem) + "*")
		}
		for _, syn := range synonyms[t] {
			if synTerms := tokenize(syn); len(synTerms) > 0 {
				add(quote(synTerms...))
			}
		}
	}
	return strings.Join(parts, " OR ")
}

// booleanClause is one parsed operand of a boolean-mode query
type booleanClause struct {
	op     byte // '+', '-' or 0 for optional
	terms  []string
	prefix bool
}

func (c booleanClause) expr() string {
	e := quote(c.terms...)
	if c.prefix {
		e += "*"
	}
	return e
}

// buildBooleanMatch supports +required, -excluded, "exact phrase" and prefix* operands.
// Bare operands are optional and only widen the match when nothing is required.
func buildBooleanMatch(query string) (string, error) {
	clauses := parseBoolean(query)

	var required, optional, excluded []string
	for _, c := range clauses {
		switch c.op {
		case '+':
			required = append(required, c.expr())
		case '-':
			excluded = append(excluded, c.expr())
		default:
			optional = append(optional, c.expr())
		}
	}

	var positive string
	switch {
	case len(required) > 0:
		positive = strings.Join(required, " AND ")
	case len(optional) > 0:
		positive = strings.Join(optional, " OR ")
	case len(excluded) > 0:
		return "", types.NewValidationError("query", "boolean query needs at least one term that is not excluded")
	default:
		return "", nil
	}

	expr := "(" + positive + ")"
	for _, ex := range excluded {
		expr += " NOT " + ex
	}
	return expr, nil
}

func parseBoolean(query string) []booleanClause {
	var clauses []booleanClause
	runes := []rune(query)

	for i := 0; i < len(runes); {
		if unicode.IsSpace(runes[i]) {
			i++
			continue
		}

		var op byte
		if runes[i] == '+' || runes[i] == '-' {
			op = byte(runes[i])
			i++
		}
		if i >= len(runes) {
			break
		}

		var raw string
		phrase := false
		if runes[i] == '"' {
			end := i + 1
			for end < len(runes) && runes[end] != '"' {
				end++
			}
			raw = string(runes[i+1 : end])
			phrase = true
			i = end + 1
		} else {
			end := i
			for end < len(runes) && !unicode.IsSpace(runes[end]) {
				end++
			}
			raw = string(runes[i:end])
			i = end
		}

		prefix := !phrase && strings.HasSuffix(raw, "*")
		terms := tokenize(raw)
		if len(terms) == 0 {
			continue
		}
		clauses = append(clauses, booleanClause{op: op, terms: terms, prefix: prefix})
	}
	return clauses
}

func dedupe(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
