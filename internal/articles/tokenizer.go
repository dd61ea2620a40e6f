// Package articles extracts normalized article codes from the free-text
// article fields carried by the logistics feed and the billing rules.
package articles

import (
	"regexp"
	"strings"
)

// codeRe matches token-like article codes: at least two uppercase letters,
// then up to twelve further letters or digits (LSIM1, PBO23, CABLE12M, ...).
// Matching runs on upper-cased input so case never matters.
var codeRe = regexp.MustCompile(`[A-Z]{2}[A-Z0-9]{0,12}`)

// noiseTokens are feed artifacts that pass the code pattern but are not
// article codes (column labels and feed names leaking into free text).
var noiseTokens = map[string]struct{}{
	"PIDI":    {},
	"PRAXEDO": {},
	"ATT":     {},
	"NULL":    {},
	"NA":      {},
}

// Tokenize returns the ordered, case-insensitively deduplicated article codes
// found in free text. Pure and idempotent: tokenizing a joined token list
// yields the same tokens again.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	seen := make(map[string]struct{})
	for _, tok := range codeRe.FindAllString(strings.ToUpper(text), -1) {
		if _, noise := noiseTokens[tok]; noise {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

// Display joins tokens the way the reporting surface shows them.
func Display(tokens []string) string {
	return strings.Join(tokens, " | ")
}
