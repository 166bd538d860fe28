package value

import (
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// GraphemeClusters splits s into user-perceived characters (spec §4.F:
// "iterating a string yields grapheme clusters, not bytes or runes").
// The string is first put into NFC form via golang.org/x/text/unicode/norm
// so that a base letter followed by combining marks that compose into a
// single precomposed codepoint is counted once either way; remaining
// (non-composing) combining marks are then folded onto the preceding base
// rune, which covers the common scripts without implementing the full
// UAX #29 grapheme-cluster state machine.
func GraphemeClusters(s string) []String {
	normalized := norm.NFC.String(s)

	var clusters []String
	var cur []rune
	for _, r := range normalized {
		if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Me, r) || unicode.Is(unicode.Mc, r) {
			if len(cur) > 0 {
				cur = append(cur, r)
				continue
			}
		}
		if len(cur) > 0 {
			clusters = append(clusters, String(string(cur)))
		}
		cur = []rune{r}
	}
	if len(cur) > 0 {
		clusters = append(clusters, String(string(cur)))
	}
	return clusters
}

// GraphemeLen counts grapheme clusters, used by the `len` builtin on
// strings (spec §4.F).
func GraphemeLen(s string) int {
	return len(GraphemeClusters(s))
}
