package normalize

import (
	"strings"

	"github.com/kyntus/facturation/internal/fields"
)

// mergedRow is the fold state for one natural key: scalar fields keep the
// first non-empty value seen, the article list accumulates a deduplicated
// ordered union.
type mergedRow struct {
	key      string
	position int // lowest contributing line
	scalars  map[fields.Field]string
	articles []string
	artSeen  map[string]struct{}
}

func newMergedRow(key string, line int) *mergedRow {
	return &mergedRow{
		key:      key,
		position: line,
		scalars:  make(map[fields.Field]string),
		artSeen:  make(map[string]struct{}),
	}
}

// absorb folds one cleaned row into the group. Scalars are pick-first-non-empty:
// a later non-empty value never overwrites an earlier one. The article-list
// field is merged as an order-preserving case-insensitive union instead.
func (m *mergedRow) absorb(values map[fields.Field]string, line int) {
	if line < m.position {
		m.position = line
	}
	for f, v := range values {
		if v == "" {
			continue
		}
		if f == fields.ListeArticles {
			m.absorbArticles(v)
			continue
		}
		if _, taken := m.scalars[f]; !taken {
			m.scalars[f] = v
		}
	}
}

func (m *mergedRow) absorbArticles(v string) {
	for _, tok := range splitArticleList(v) {
		upper := strings.ToUpper(tok)
		if _, dup := m.artSeen[upper]; dup {
			continue
		}
		m.artSeen[upper] = struct{}{}
		m.articles = append(m.articles, tok)
	}
}

// splitArticleList splits a free-text article list on the separators the
// feeds actually use: comma, semicolon, pipe and newline.
func splitArticleList(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n' || r == '\r'
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
