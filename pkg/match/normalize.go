package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize prepares a phrase or transcript for comparison: it lower-cases
// the text, folds diacritics ("á" -> "a"), drops punctuation and symbols
// and collapses runs of whitespace into single spaces.
//
// Speech recognisers disagree on accents and punctuation far more often than
// on the words themselves, so every score in this package is computed on
// normalized text.
func Normalize(s string) string {
	return normalize(s, true)
}

// NormalizeKeepMarks is [Normalize] without diacritic folding, for languages
// where marks distinguish words that learners are expected to pronounce
// differently.
func NormalizeKeepMarks(s string) string {
	return normalize(s, false)
}

func normalize(s string, fold bool) string {
	s = strings.ToLower(s)
	if fold {
		// Transformers returned by transform.Chain are stateful, so one is
		// built per call.
		t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
		if folded, _, err := transform.String(t, s); err == nil {
			s = folded
		}
	}

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped: "I'd" and "id" must compare equal
		default:
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Words splits s on whitespace. It does not normalize.
func Words(s string) []string {
	return strings.Fields(s)
}
