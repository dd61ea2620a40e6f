package csvio

import "bytes"

// Candidate delimiters, in preference order when counts tie.
var candidates = []byte{';', ',', '\t', '|'}

const (
	// overrideMargin: a candidate must beat the requested delimiter by this
	// many occurrences on the first line before the request is overridden.
	overrideMargin = 2
	// minOccurrences: below this no candidate is trusted and the requested
	// delimiter is kept as-is.
	minOccurrences = 1
)

// SniffDelimiter picks the field delimiter for a file. It reads at most
// limit bytes, counts candidate occurrences on the first line, and prefers
// the caller-requested delimiter unless another candidate clearly wins.
func SniffDelimiter(data []byte, requested rune, limit int) rune {
	if limit > 0 && len(data) > limit {
		data = data[:limit]
	}
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	counts := make(map[byte]int, len(candidates))
	for _, c := range candidates {
		counts[c] = bytes.Count(line, []byte{c})
	}

	best := byte(0)
	bestN := 0
	for _, c := range candidates {
		if counts[c] > bestN {
			best, bestN = c, counts[c]
		}
	}

	req := byte(requested)
	if requested != 0 && counts[req] >= minOccurrences {
		if best != req && counts[best] >= counts[req]+overrideMargin {
			return rune(best)
		}
		return requested
	}
	if bestN >= minOccurrences {
		return rune(best)
	}
	return requested
}
