package fields

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// separatorRe collapses runs of whitespace and the punctuation that shows up
// in exported headers ("N° OT", "Date / Heure", "act.prod") to one underscore.
var separatorRe = regexp.MustCompile(`[\s°./\-]+`)

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds a header or alias to its canonical comparable form:
// lower-cased, accents dropped, BOM stripped, separator runs collapsed to a
// single underscore. "N° OT", "n ot" and "NUMERO_OT" all normalize alike
// once aliased.
func Normalize(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ToLower(strings.TrimSpace(s))
	if out, _, err := transform.String(stripAccents, s); err == nil {
		s = out
	}
	s = separatorRe.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Resolution is the outcome of matching a header row against a vocabulary.
type Resolution struct {
	// Mapping gives, per resolved internal field, the original header to read.
	Mapping map[Field]string
	// Missing lists internal fields with no matching header, in vocabulary
	// order. The caller decides which of these abort the import.
	Missing []Field
}

// Resolve matches raw CSV headers against ordered alias lists. Aliases are
// tried in declared priority order and matched by exact normalized equality;
// the field's own name is always tried first. On duplicate normalized
// headers the first occurrence wins.
func Resolve(headers []string, vocabulary []Field, aliases map[Field][]string) Resolution {
	index := make(map[string]string, len(headers))
	for _, h := range headers {
		nh := Normalize(h)
		if nh == "" {
			continue
		}
		if _, exists := index[nh]; !exists {
			index[nh] = h
		}
	}

	res := Resolution{Mapping: make(map[Field]string, len(vocabulary))}
	for _, f := range vocabulary {
		candidates := append([]string{string(f)}, aliases[f]...)
		found := ""
		for _, cand := range candidates {
			if original, ok := index[Normalize(cand)]; ok {
				found = original
				break
			}
		}
		if found == "" {
			res.Missing = append(res.Missing, f)
			continue
		}
		res.Mapping[f] = found
	}
	return res
}
