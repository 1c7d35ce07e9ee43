package similarity

import "math"

// Cosine computes cosine similarity over character bigram frequency vectors.
// Equal inputs score 100; an input too short to form a bigram scores 0 against
// anything it is not equal to.
func Cosine(a, b string) float64 {
	na := normalize(a)
	nb := normalize(b)
	if na == nb {
		return 100
	}

	va := bigrams(na)
	vb := bigrams(nb)
	if len(va) == 0 || len(vb) == 0 {
		return 0
	}

	// Integer arithmetic keeps the score exactly symmetric.
	var dot, normA, normB int
	for bg, ca := range va {
		normA += ca * ca
		if cb, ok := vb[bg]; ok {
			dot += ca * cb
		}
	}
	for _, cb := range vb {
		normB += cb * cb
	}

	return clamp(100 * float64(dot) / math.Sqrt(float64(normA)*float64(normB)))
}

func bigrams(s string) map[string]int {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}

	counts := make(map[string]int, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		counts[string(runes[i:i+2])]++
	}
	return counts
}
