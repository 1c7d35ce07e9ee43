package similarity

// Levenshtein returns 100 * (1 - editDistance / maxLen) over the lowercased,
// trimmed inputs. Two empty strings score 100, one empty side scores 0.
func Levenshtein(a, b string) float64 {
	ra := []rune(normalize(a))
	rb := []rune(normalize(b))

	if len(ra) == 0 && len(rb) == 0 {
		return 100
	}
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	d := editDistance(ra, rb)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}

	return clamp(100 * (1 - float64(d)/float64(longest)))
}

// editDistance is the classic two-row dynamic programming distance.
func editDistance(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
