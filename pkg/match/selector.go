package match

// DefaultWordBoost is the score added per transcript word that fuzzy-matches
// a word of the candidate.
const DefaultWordBoost = 0.1

// Selector scores transcripts against candidate phrases. The combined score
// of a candidate is its whole-phrase [Similarity] to the transcript plus
// WordBoost for every transcript word that fuzzy-matches any candidate word,
// capped at 1.
//
// The zero value is usable and equals [DefaultSelector].
type Selector struct {
	// Divisor is the fuzziness divisor for the keyword overlap. Values <= 0
	// use DefaultDivisor.
	Divisor int

	// WordBoost is added per overlapping word. Zero uses DefaultWordBoost;
	// a negative value disables the boost.
	WordBoost float64
}

// DefaultSelector returns a Selector with the default divisor and boost.
func DefaultSelector() Selector {
	return Selector{Divisor: DefaultDivisor, WordBoost: DefaultWordBoost}
}

// Selection is the outcome of [Selector.Select].
type Selection struct {
	// Index is the winning option, or -1 when there was nothing to choose.
	Index int

	// Score is the combined score of the winner in [0, 1].
	Score float64
}

// Select picks the option with the strictly highest combined score; ties go
// to the lowest index. An empty transcript or an empty option list yields
// Index -1 and Score 0. Select never applies an acceptance threshold, that
// is the caller's decision.
func (s Selector) Select(transcript string, options []string) Selection {
	heard := Normalize(transcript)
	if heard == "" || len(options) == 0 {
		return Selection{Index: -1}
	}

	best := Selection{Index: -1, Score: -1}
	for i, opt := range options {
		if sc := s.score(heard, Normalize(opt)); sc > best.Score {
			best = Selection{Index: i, Score: sc}
		}
	}
	return best
}

// Score returns the best combined score of transcript against any of the
// renderings of a single target (for example its text, its phonetic
// transcription and a locale variant). Empty renderings are skipped.
func (s Selector) Score(transcript string, renderings ...string) float64 {
	heard := Normalize(transcript)
	if heard == "" {
		return 0
	}
	best := 0.0
	for _, r := range renderings {
		if sc := s.score(heard, Normalize(r)); sc > best {
			best = sc
		}
	}
	return best
}

// score expects normalized input.
func (s Selector) score(heard, want string) float64 {
	if heard == "" || want == "" {
		return 0
	}
	sc := Similarity(heard, want)

	boost := s.WordBoost
	if boost == 0 {
		boost = DefaultWordBoost
	}
	if boost > 0 {
		wm := WordMatcher{Divisor: s.Divisor, AnyPosition: true}
		wantWords := Words(want)
		for _, h := range Words(heard) {
			for _, w := range wantWords {
				if wm.wordMatches(w, h) {
					sc += boost
					break
				}
			}
		}
	}
	return min(sc, 1)
}
