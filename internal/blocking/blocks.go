// Package blocking groups jobs by normalized employer so that only postings
// from the same company are ever compared.
package blocking

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"job-dedup-go/internal/models"
)

// UnknownBlock collects jobs whose company normalizes to nothing.
const UnknownBlock = "_unknown"

var nonAlnum = regexp.MustCompile(`[^\p{L}\p{N}]+`)

var legalSuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "corp": true, "corporation": true,
	"ltd": true, "limited": true, "co": true, "company": true, "plc": true, "gmbh": true,
}

// NormalizeCompany returns the block key for a company name. Legal suffixes
// are dropped only as whole words, so hyphenated and non-ASCII names keep
// their letters.
func NormalizeCompany(company string) string {
	words := strings.FieldsFunc(strings.ToLower(company), isWordBreak)

	var b strings.Builder
	for _, w := range words {
		if legalSuffixes[strings.TrimRight(w, ".")] {
			continue
		}
		b.WriteString(nonAlnum.ReplaceAllString(w, ""))
	}

	key := b.String()
	if key == "" {
		return UnknownBlock
	}
	return key
}

// isWordBreak splits on anything but letters, digits and the punctuation
// that can sit inside one word ("co-op", "l'oreal", "a.b.c.").
func isWordBreak(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return false
	}
	switch r {
	case '-', '.', '\'', '’':
		return false
	}
	return true
}

// Blocks maps a block key to the indexes of its jobs in the input slice.
type Blocks map[string][]int

// BuildBlocks partitions jobs by NormalizeCompany. Input order is kept
// inside each block.
func BuildBlocks(jobs []models.JobRecord) Blocks {
	blocks := make(Blocks)
	for i, job := range jobs {
		key := NormalizeCompany(job.Company)
		blocks[key] = append(blocks[key], i)
	}
	return blocks
}

// Keys returns the block keys in sorted order.
func (b Blocks) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PairCount is the number of comparisons the blocks require.
func (b Blocks) PairCount() int {
	total := 0
	for _, idx := range b {
		n := len(idx)
		total += n * (n - 1) / 2
	}
	return total
}
