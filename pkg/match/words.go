package match

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

const (
	// DefaultDivisor is the fuzziness divisor used when scoring a spoken
	// phrase: a word of length n tolerates floor(n/3) edits.
	DefaultDivisor = 3

	// DefaultHighlightDivisor is the looser divisor used to highlight free
	// text, where showing partial progress matters more than precision.
	DefaultHighlightDivisor = 4

	// minPhoneticRunes is the shortest word for which Double Metaphone codes
	// are trusted. Shorter words collapse onto too few codes.
	minPhoneticRunes = 3
)

// WordMatcher decides which words of a target phrase appear in a
// transcript. The zero value compares position-aligned words with
// [DefaultDivisor].
type WordMatcher struct {
	// Divisor is the fuzziness divisor k: a target word of n runes matches a
	// transcript word within floor(n/k) edits. Values <= 0 use
	// DefaultDivisor.
	Divisor int

	// AnyPosition lets a target word match a transcript word at any index
	// instead of only the one at the same index.
	AnyPosition bool

	// Phonetic additionally accepts words whose Double Metaphone codes
	// overlap, which catches recogniser spellings like "weppons".
	Phonetic bool
}

// StrictWords is the matcher used to grade a player's attempt at a single
// target phrase.
var StrictWords = WordMatcher{Divisor: DefaultDivisor}

// LooseWords is the matcher used to highlight free text against options.
var LooseWords = WordMatcher{Divisor: DefaultHighlightDivisor, AnyPosition: true, Phonetic: true}

// WordMatch is the word-level outcome of [WordMatcher.Match].
type WordMatch struct {
	// Words are the whitespace-separated words of the lower-cased target.
	Words []string

	// Matched[i] reports whether Words[i] was found in the transcript.
	Matched []bool

	// RuneWord maps every rune of the lower-cased target to the index of the
	// word that owns it, or -1 for separators. A UI can walk the target text
	// rune by rune and highlight matched words without re-tokenising.
	RuneWord []int
}

// Count returns the number of matched words.
func (m WordMatch) Count() int {
	n := 0
	for _, ok := range m.Matched {
		if ok {
			n++
		}
	}
	return n
}

// Ratio returns the fraction of target words matched, 0 for an empty target.
func (m WordMatch) Ratio() float64 {
	if len(m.Matched) == 0 {
		return 0
	}
	return float64(m.Count()) / float64(len(m.Matched))
}

// Match aligns transcript against target. It never fails: empty inputs
// yield an all-false (or empty) result.
func (wm WordMatcher) Match(target, transcript string) WordMatch {
	lower := strings.ToLower(target)

	res := WordMatch{RuneWord: make([]int, 0, len(lower))}
	word := -1
	inWord := false
	for _, r := range lower {
		if unicode.IsSpace(r) {
			inWord = false
			res.RuneWord = append(res.RuneWord, -1)
			continue
		}
		if !inWord {
			inWord = true
			word++
		}
		res.RuneWord = append(res.RuneWord, word)
	}

	res.Words = strings.Fields(lower)
	res.Matched = make([]bool, len(res.Words))
	heard := Words(Normalize(transcript))

	for i, w := range res.Words {
		want := Normalize(w)
		if want == "" {
			// Pure punctuation is never spoken.
			res.Matched[i] = true
			continue
		}
		if wm.AnyPosition {
			for _, h := range heard {
				if wm.wordMatches(want, h) {
					res.Matched[i] = true
					break
				}
			}
			continue
		}
		if i < len(heard) {
			res.Matched[i] = wm.wordMatches(want, heard[i])
		}
	}
	return res
}

// wordMatches reports whether the heard word is close enough to the wanted
// one. Both must already be normalized.
func (wm WordMatcher) wordMatches(want, heard string) bool {
	if heard == "" {
		return false
	}
	if Distance(want, heard) <= runeCount(want)/wm.divisor() {
		return true
	}
	if !wm.Phonetic || runeCount(want) < minPhoneticRunes || runeCount(heard) < minPhoneticRunes {
		return false
	}
	wp, ws := matchr.DoubleMetaphone(want)
	hp, hs := matchr.DoubleMetaphone(heard)
	for _, a := range []string{wp, ws} {
		if a == "" {
			continue
		}
		if a == hp || a == hs {
			return true
		}
	}
	return false
}

func (wm WordMatcher) divisor() int {
	if wm.Divisor <= 0 {
		return DefaultDivisor
	}
	return wm.Divisor
}
