package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

// alphabetText builds deterministic text with no spaces or punctuation so cut
// points are fully predictable (hard cuts at MaxChunkSize).
func alphabetText(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	return sb.String()
}

func TestSplitEmptyInput(t *testing.T) {
	require.Nil(t, Split("", Options{}))
	require.Nil(t, Split("   \n\t  ", Options{}))
}

func TestSplitBasicWindows(t *testing.T) {
	text := alphabetText(1200)
	chunks := Split(text, Options{MaxChunkSize: 500, Overlap: 100, MinChunkSize: 50})

	require.Len(t, chunks, 3)
	for i, c := range chunks {
		require.Equal(t, i, c.Index)
	}
	require.Equal(t, text[0:500], chunks[0].Content)
	require.Equal(t, text[400:900], chunks[1].Content)
	require.Equal(t, text[800:1200], chunks[2].Content)
}

func TestSplitDeterministic(t *testing.T) {
	text := "First sentence here. Second one follows! A third question? " +
		alphabetText(900) + " trailing words to finish the document body properly."
	first := Split(text, Options{})
	second := Split(text, Options{})
	require.Equal(t, first, second)
}

func TestSplitOverlapSharesContext(t *testing.T) {
	text := alphabetText(1200)
	chunks := Split(text, Options{MaxChunkSize: 500, Overlap: 100, MinChunkSize: 50})
	require.Len(t, chunks, 3)

	tail := chunks[0].Content[len(chunks[0].Content)-100:]
	head := chunks[1].Content[:100]
	require.Equal(t, tail, head)
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	// A sentence ends at character 449, inside the 100-char backscan of the
	// 500-char window; the cut must land there, not mid-word.
	first := strings.Repeat("x", 448) + ". "
	second := "Second sentence content " + alphabetText(400)
	chunks := Split(first+second, Options{MaxChunkSize: 500, Overlap: 100, MinChunkSize: 50})

	require.NotEmpty(t, chunks)
	require.True(t, strings.HasSuffix(chunks[0].Content, "."), "chunk should end at the sentence boundary, got %q", chunks[0].Content[len(chunks[0].Content)-10:])
	require.Len(t, chunks[0].Content, 449)
}

func TestSplitWordBoundaryFallback(t *testing.T) {
	// No sentence boundary anywhere, but a space at 470: the cut falls on the
	// space instead of splitting the trailing word.
	text := alphabetText(470) + " " + alphabetText(500)
	chunks := Split(text, Options{MaxChunkSize: 500, Overlap: 100, MinChunkSize: 50})

	require.NotEmpty(t, chunks)
	require.Len(t, chunks[0].Content, 470)
}

func TestSplitKeepsRuneBoundaries(t *testing.T) {
	// CJK text has no spaces and no ASCII terminators, so every window takes
	// the hard-cut path; cuts must still land between runes.
	text := strings.Repeat("日", 400)
	chunks := Split(text, Options{MaxChunkSize: 500, Overlap: 100, MinChunkSize: 50})

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		require.True(t, utf8.ValidString(c.Content), "chunk %d is not valid UTF-8", c.Index)
	}
}

func TestSplitCJKSentenceBoundary(t *testing.T) {
	// The 。 at byte 450 sits inside the backscan of the first window and
	// needs no trailing space to count as a sentence end.
	text := strings.Repeat("日", 150) + "。" + strings.Repeat("本", 100)
	chunks := Split(text, Options{MaxChunkSize: 500, Overlap: 100, MinChunkSize: 50})

	require.NotEmpty(t, chunks)
	require.True(t, strings.HasSuffix(chunks[0].Content, "。"))
	for _, c := range chunks {
		require.True(t, utf8.ValidString(c.Content))
	}
}

func TestSplitDiscardsShortTail(t *testing.T) {
	// After [0,100) the next window would start at 90 leaving a 40-char tail,
	// below MinChunkSize, so it is dropped.
	text := alphabetText(130)
	chunks := Split(text, Options{MaxChunkSize: 100, Overlap: 10, MinChunkSize: 50})

	require.Len(t, chunks, 1)
	require.Equal(t, text[0:100], chunks[0].Content)
}

func TestSplitShortTextBelowMinimum(t *testing.T) {
	chunks := Split(alphabetText(30), Options{MaxChunkSize: 100, Overlap: 10, MinChunkSize: 50})
	require.Empty(t, chunks)
}

func TestSplitParametricSizes(t *testing.T) {
	text := alphabetText(5000)
	cases := []Options{
		{MaxChunkSize: 200, Overlap: 40, MinChunkSize: 20},
		{MaxChunkSize: 500, Overlap: 100, MinChunkSize: 50},
		{MaxChunkSize: 1000, Overlap: 200, MinChunkSize: 100},
	}
	for _, opts := range cases {
		chunks := Split(text, opts)
		require.NotEmpty(t, chunks)
		covered := 0
		for i, c := range chunks {
			require.Equal(t, i, c.Index)
			require.LessOrEqual(t, len(c.Content), opts.MaxChunkSize)
			require.GreaterOrEqual(t, len(c.Content), opts.MinChunkSize)
			require.Equal(t, (len(c.Content)+3)/4, c.TokenCount)
			covered += len(c.Content)
		}
		// Windows step by max-overlap, so the union must cover the text.
		require.GreaterOrEqual(t, covered, len(text)-opts.MinChunkSize)
	}
}

func TestSplitDocumentPrependsTitle(t *testing.T) {
	chunks := SplitDocument("Meeting notes", alphabetText(600), Options{MaxChunkSize: 500, Overlap: 100, MinChunkSize: 50})
	require.NotEmpty(t, chunks)
	require.True(t, strings.HasPrefix(chunks[0].Content, "Meeting notes"))
}

func TestSplitDocumentEmptyBodyWithTitleOnly(t *testing.T) {
	chunks := SplitDocument("Hi", "", Options{MaxChunkSize: 100, Overlap: 10, MinChunkSize: 50})
	require.Empty(t, chunks)
}

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 0, EstimateTokens(""))
	require.Equal(t, 1, EstimateTokens("abc"))
	require.Equal(t, 1, EstimateTokens("abcd"))
	require.Equal(t, 2, EstimateTokens("abcde"))
}
