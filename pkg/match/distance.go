package match

// Distance returns the Levenshtein distance between a and b: the minimum
// number of single-rune insertions, deletions and substitutions needed to
// turn a into b.
//
// Distance compares runes exactly. Callers that want case-insensitive or
// punctuation-free comparison should pass both strings through [Normalize]
// first.
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	dp := make([][]int, len(ra)+1)
	for i := range dp {
		dp[i] = make([]int, len(rb)+1)
		dp[i][0] = i
	}
	for j := 0; j <= len(rb); j++ {
		dp[0][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				dp[i][j] = dp[i-1][j-1]
				continue
			}
			dp[i][j] = 1 + min(dp[i-1][j-1], dp[i-1][j], dp[i][j-1])
		}
	}
	return dp[len(ra)][len(rb)]
}

// Similarity returns 1 - Distance(a, b) / max(len(a), len(b)) where lengths
// are counted in runes. Two empty strings are identical (1); exactly one
// empty string scores 0. The result is always within [0, 1].
func Similarity(a, b string) float64 {
	la, lb := runeCount(a), runeCount(b)
	switch {
	case la == 0 && lb == 0:
		return 1
	case la == 0 || lb == 0:
		return 0
	}
	return 1 - float64(Distance(a, b))/float64(max(la, lb))
}

func runeCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
