package wordlist

import (
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases text and folds accented characters to their base letters ("Café" becomes "cafe").
//
// Patterns are normalized the same way when a list is compiled, so matching is case and accent insensitive. Callers matching the same text against several lists can normalize once and use MatchNormalized.
func Normalize(text string) string {
	// transformers carry state, so the chain is built per call
	normFunc := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	lower := strings.ToLower(text)
	out, _, err := transform.String(normFunc, lower)
	if err != nil {
		slog.Warn("unicode normalization error", "err", err)
		return lower
	}
	return out
}
