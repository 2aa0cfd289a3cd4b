package normalize

// LevenshteinDistance computes the edit distance between two strings, rune by rune.
func LevenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}

	r1, r2 := []rune(s1), []rune(s2)
	len1, len2 := len(r1), len(r2)
	if len1 == 0 {
		return len2
	}
	if len2 == 0 {
		return len1
	}

	// Two rolling rows of the DP matrix
	prev := make([]int, len2+1)
	curr := make([]int, len2+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len1; i++ {
		curr[0] = i
		for j := 1; j <= len2; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				min(prev[j]+1, curr[j-1]+1), // deletion, insertion
				prev[j-1]+cost,              // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len2]
}

// LevenshteinRatio converts the edit distance into a similarity in [0, 1]
// relative to the longer string.
func LevenshteinRatio(s1, s2 string) float64 {
	maxLen := len([]rune(s1))
	if l := len([]rune(s2)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(LevenshteinDistance(s1, s2))/float64(maxLen)
}
