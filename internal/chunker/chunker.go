// Package chunker splits a document's plain text into overlapping windows
// sized for embedding. Splitting is a pure function of the input and options:
// the same text always produces the same boundaries and ordinals.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	DefaultMaxChunkSize = 500
	DefaultOverlap      = 100
	DefaultMinChunkSize = 50

	// How far back from the window end we look for a sentence boundary
	// before settling for a word boundary.
	boundaryBackscan = 100
)

type Options struct {
	MaxChunkSize int
	Overlap      int
	MinChunkSize int
}

func (o Options) withDefaults() Options {
	if o.MaxChunkSize <= 0 {
		o.MaxChunkSize = DefaultMaxChunkSize
	}
	if o.Overlap <= 0 {
		o.Overlap = DefaultOverlap
	}
	if o.MinChunkSize <= 0 {
		o.MinChunkSize = DefaultMinChunkSize
	}
	return o
}

type Chunk struct {
	Index      int
	Content    string
	TokenCount int
}

// SplitDocument prepends the title before chunking so every chunk carries
// title context. Short notes retrieve much better this way.
func SplitDocument(title, text string, opts Options) []Chunk {
	title = strings.TrimSpace(title)
	if title != "" {
		text = title + "\n\n" + text
	}
	return Split(text, opts)
}

// Split cuts text into chunks of at most MaxChunkSize characters, preferring
// sentence boundaries, then word boundaries, then a hard cut. Consecutive
// chunks share up to Overlap characters; a trailing fragment shorter than
// MinChunkSize is discarded.
func Split(text string, opts Options) []Chunk {
	opts = opts.withDefaults()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var chunks []Chunk
	start := 0
	for start < len(text) {
		if len(text)-start <= opts.MaxChunkSize {
			chunks = appendChunk(chunks, text[start:], opts.MinChunkSize)
			break
		}
		end := cutPoint(text, start, start+opts.MaxChunkSize, opts.MinChunkSize)
		chunks = appendChunk(chunks, text[start:end], opts.MinChunkSize)
		next := end - opts.Overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		if next <= start {
			next = end
		}
		if len(text)-next < opts.MinChunkSize {
			break
		}
		start = next
	}
	return chunks
}

func appendChunk(chunks []Chunk, piece string, minSize int) []Chunk {
	trimmed := strings.TrimSpace(piece)
	if len(trimmed) < minSize {
		return chunks
	}
	return append(chunks, Chunk{
		Index:      len(chunks),
		Content:    trimmed,
		TokenCount: EstimateTokens(trimmed),
	})
}

// cutPoint picks the end of the window starting at start: a sentence boundary
// within the last boundaryBackscan bytes if one exists, otherwise the nearest
// preceding space beyond minSize, otherwise the hard limit backed up to a rune
// boundary so a multi-byte character is never split.
func cutPoint(text string, start, end, minSize int) int {
	limit := end - boundaryBackscan
	if limit < start {
		limit = start
	}
	for i := end - 1; i > limit; i-- {
		if !utf8.RuneStart(text[i]) {
			continue
		}
		if cut := sentenceEnd(text, i); cut > 0 && cut <= end {
			return cut
		}
	}
	for i := end - 1; i > start+minSize; i-- {
		if isSpaceByte(text[i]) {
			return i
		}
	}
	for end > start && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}

// sentenceEnd returns the position just past a sentence terminator at i, or 0
// when no sentence ends there. ASCII terminators need trailing whitespace and
// a capital opening the next sentence; CJK terminators stand alone.
func sentenceEnd(text string, i int) int {
	r, size := utf8.DecodeRuneInString(text[i:])
	switch r {
	case '。', '！', '？':
		return i + size
	case '.', '!', '?':
	default:
		return 0
	}
	if i+1 >= len(text) {
		return i + 1
	}
	if !isSpaceByte(text[i+1]) {
		return 0
	}
	j := i + 1
	for j < len(text) && isSpaceByte(text[j]) {
		j++
	}
	if j >= len(text) {
		return i + 1
	}
	next, _ := utf8.DecodeRuneInString(text[j:])
	if !unicode.IsUpper(next) {
		return 0
	}
	return i + 1
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// EstimateTokens is a cheap proxy (about 4 characters per token), not a real
// tokenizer. It only needs to be stable and roughly proportional.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
