// Package match implements fuzzy matching of speech-recognition transcripts
// against expected phrases.
//
// The package has three layers:
//
//  1. [Distance] and [Similarity]: rune-level Levenshtein distance and its
//     normalised similarity in [0, 1].
//  2. [WordMatcher]: word-level alignment of a transcript against a target
//     phrase with a per-word tolerance of floor(len/k) edits, optionally
//     backed by Double Metaphone codes. Its output drives word highlighting.
//  3. [Selector]: combined phrase similarity plus keyword overlap, used to
//     pick one of several dialogue options or grade a single target phrase.
//
// [Matcher] bundles the three with one acceptance threshold so that the
// single-phrase flow and the multiple-option flow apply the same policy.
//
// Every function is pure and safe for concurrent use. Malformed or empty
// input never panics; it degrades to a score of 0 and an index of -1.
package match

// DefaultThreshold is the minimum combined score for a transcript to count
// as a match.
const DefaultThreshold = 0.6

// Result is the outcome of one recognition attempt against the current
// dialogue step.
type Result struct {
	// Index is the matched candidate (option index, or 0 for a single
	// target phrase), or -1 when nothing was selected.
	Index int

	// Score is the combined score of the candidate in [0, 1].
	Score float64

	// Words is the word-level alignment against the candidate's text, for
	// highlighting. It is empty when Index is -1.
	Words WordMatch
}

// Accepted reports whether r selected a candidate with a score at or above
// threshold.
func (r Result) Accepted(threshold float64) bool {
	return r.Index >= 0 && r.Score >= threshold
}

// Matcher applies one consistent matching policy to both dialogue flows.
// The zero value is not useful; use [NewMatcher].
type Matcher struct {
	// Threshold is the acceptance threshold shared by both flows.
	Threshold float64

	// Selector scores transcripts against candidates.
	Selector Selector

	// Phrase aligns words when grading a single target phrase.
	Phrase WordMatcher

	// Highlight aligns words when highlighting an option.
	Highlight WordMatcher
}

// NewMatcher returns a Matcher with the default threshold, selector and
// word matchers.
func NewMatcher() Matcher {
	return Matcher{
		Threshold: DefaultThreshold,
		Selector:  DefaultSelector(),
		Phrase:    StrictWords,
		Highlight: LooseWords,
	}
}

// MatchPhrase grades transcript against a single target phrase. Alternates
// are extra renderings of the same phrase (phonetic transcription, locale
// variants) that the transcript may also be scored against; the best score
// wins. Word flags always refer to target.
func (m Matcher) MatchPhrase(transcript, target string, alternates ...string) Result {
	if Normalize(transcript) == "" || Normalize(target) == "" {
		return Result{Index: -1}
	}
	score := m.Selector.Score(transcript, append([]string{target}, alternates...)...)
	return Result{
		Index: 0,
		Score: score,
		Words: m.Phrase.Match(target, transcript),
	}
}

// MatchOptions selects the dialogue option best matching transcript and
// aligns its words for highlighting.
func (m Matcher) MatchOptions(transcript string, options []string) Result {
	sel := m.Selector.Select(transcript, options)
	if sel.Index < 0 {
		return Result{Index: -1}
	}
	return Result{
		Index: sel.Index,
		Score: sel.Score,
		Words: m.Highlight.Match(options[sel.Index], transcript),
	}
}

// Accepted reports whether r passes m's threshold.
func (m Matcher) Accepted(r Result) bool {
	return r.Accepted(m.Threshold)
}
