// Package chunk splits cleaned text into overlapping word windows and filters
// out windows that carry navigation noise instead of content.
//
// Character offsets are exact positions into the cleaned text. The storage
// engine persists them and downstream consumers rely on
// cleaned[CharStart:CharEnd] containing the chunk.
package chunk

import (
	"unicode"
)

// Window sizing defaults.
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50
)

// Chunk is one word window of a document.
type Chunk struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	CharStart int    `json:"char_start"`
	CharEnd   int    `json:"char_end"`
	WordCount int    `json:"word_count"`
}

// Options configures the chunker.
type Options struct {
	// ChunkSize is the window width in words.
	ChunkSize int
	// Overlap is how many words consecutive windows share.
	Overlap int
}

// DefaultOptions returns the production window shape: 500-word windows with a
// 50-word overlap.
func DefaultOptions() Options {
	return Options{ChunkSize: DefaultChunkSize, Overlap: DefaultOverlap}
}

// wordSpan is one whitespace-delimited token with its byte offsets.
type wordSpan struct {
	start, end int
}

// splitWords locates every whitespace-delimited token in text.
func splitWords(text string) []wordSpan {
	var spans []wordSpan
	inWord := false
	start := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			if inWord {
				spans = append(spans, wordSpan{start, i})
				inWord = false
			}
			continue
		}
		if !inWord {
			start = i
			inWord = true
		}
	}
	if inWord {
		spans = append(spans, wordSpan{start, len(text)})
	}
	return spans
}

// Split cuts text into overlapping word windows. Empty or whitespace-only
// input yields an empty sequence. The last chunk may be shorter than
// ChunkSize; a final window fully contained in the previous one is not
// emitted.
func Split(text string, opts Options) []Chunk {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Overlap < 0 || opts.Overlap >= opts.ChunkSize {
		opts.Overlap = DefaultOverlap
	}

	words := splitWords(text)
	if len(words) == 0 {
		return nil
	}

	step := opts.ChunkSize - opts.Overlap
	var chunks []Chunk
	for start := 0; start < len(words); start += step {
		end := start + opts.ChunkSize
		if end > len(words) {
			end = len(words)
		}

		charStart := words[start].start
		charEnd := words[end-1].end
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      text[charStart:charEnd],
			CharStart: charStart,
			CharEnd:   charEnd,
			WordCount: end - start,
		})

		if end == len(words) {
			break
		}
	}
	return chunks
}
