// Package fuzzy provides normalized edit-distance similarity for short text
// tokens, used to match noisy OCR output against canonical name lists.
package fuzzy

// MatchThreshold is the minimum similarity a candidate must exceed to be
// accepted by FindClosestMatch.
const MatchThreshold = 0.6

// Similarity returns a normalized similarity score between two strings in
// [0,1], based on Levenshtein edit distance over runes. Two empty strings
// are considered identical (score 1); one empty string against a non-empty
// one scores 0.
func Similarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)

	if len(ra) == 0 && len(rb) == 0 {
		return 1
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	dist := levenshtein(ra, rb)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}

	return 1 - float64(dist)/float64(maxLen)
}

// levenshtein computes the edit distance between two rune slices using the
// classic two-row dynamic programming recurrence. Deletion, insertion and
// substitution all cost 1.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			deletion := prev[j] + 1
			insertion := cur[j-1] + 1
			substitution := prev[j-1] + cost

			cur[j] = deletion
			if insertion < cur[j] {
				cur[j] = insertion
			}
			if substitution < cur[j] {
				cur[j] = substitution
			}
		}
		prev, cur = cur, prev
	}

	return prev[len(b)]
}

// FindClosestMatch returns the candidate most similar to text, provided its
// similarity strictly exceeds MatchThreshold. Candidates are scored in input
// order and exact ties keep the earlier candidate, so results are
// deterministic. Returns "" when text is empty, candidates is empty, or no
// candidate clears the threshold.
func FindClosestMatch(text string, candidates []string) string {
	if text == "" || len(candidates) == 0 {
		return ""
	}

	best := ""
	bestScore := MatchThreshold

	for _, candidate := range candidates {
		score := Similarity(text, candidate)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}

	return best
}
