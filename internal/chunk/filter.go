package chunk

import (
	"strings"

	"github.com/webrecall/webrecall/internal/clean"
)

// Filtering thresholds. A chunk is dropped when it reads like navigation or
// a link farm rather than prose.
const (
	maxNavKeywords    = 3
	maxLinkDensity    = 0.3
	minWordCount      = 10
	safetyFloorChunks = 3
)

// keep reports whether a single chunk carries enough content to store.
// Navigation scoring uses the cleaner's keyword list so both passes agree on
// what counts as chrome.
func keep(c Chunk) bool {
	if c.WordCount < minWordCount {
		return false
	}

	lower := strings.ToLower(c.Text)
	navHits := 0
	for _, kw := range clean.NavKeywords {
		navHits += strings.Count(lower, kw)
		if navHits >= maxNavKeywords {
			return false
		}
	}

	opens := strings.Count(c.Text, "[")
	closes := strings.Count(c.Text, "](")
	if float64(opens+closes)/float64(c.WordCount) > maxLinkDensity {
		return false
	}
	if opens > c.WordCount/3 {
		return false
	}

	return true
}

// Filter drops navigation-heavy, link-heavy, and too-short chunks and
// reindexes the survivors. Safety floor: if every chunk would be dropped but
// the input is non-empty, the first chunks (up to three) are kept raw so
// short or link-dense pages remain searchable.
func Filter(chunks []Chunk) []Chunk {
	if len(chunks) == 0 {
		return nil
	}

	kept := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if keep(c) {
			kept = append(kept, c)
		}
	}

	if len(kept) == 0 {
		n := len(chunks)
		if n > safetyFloorChunks {
			n = safetyFloorChunks
		}
		kept = append(kept, chunks[:n]...)
	}

	for i := range kept {
		kept[i].Index = i
	}
	return kept
}
