package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paragraphs(n, size int) string {
	para := strings.Repeat("lorem ipsum dolor sit amet ", size/27+1)[:size]
	parts := make([]string, n)
	for i := range parts {
		parts[i] = para
	}
	return strings.Join(parts, "\n\n")
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		maxChars   int
		minChars   int
		wantChunks int
	}{
		{
			name:       "empty input produces zero chunks",
			text:       "",
			maxChars:   1500,
			minChars:   500,
			wantChunks: 0,
		},
		{
			name:       "whitespace only produces zero chunks",
			text:       "  \n\n \t ",
			maxChars:   1500,
			minChars:   500,
			wantChunks: 0,
		},
		{
			name:       "document shorter than min produces exactly one chunk",
			text:       "a short note",
			maxChars:   1500,
			minChars:   500,
			wantChunks: 1,
		},
		{
			name:       "single paragraph within bounds",
			text:       paragraphs(1, 800),
			maxChars:   1500,
			minChars:   500,
			wantChunks: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(tt.text, tt.maxChars, tt.minChars)
			assert.Len(t, chunks, tt.wantChunks)
		})
	}
}

func TestChunkBounds(t *testing.T) {
	text := paragraphs(12, 700)
	chunks := Chunk(text, 1500, 500)
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		// Every chunk meets the minimum except possibly a sole chunk
		if len(chunks) > 1 {
			assert.GreaterOrEqual(t, len(c), 500, "chunk %d under minimum", i)
		}
		// The paragraph-boundary extension may overshoot max by at most one
		// paragraph
		assert.LessOrEqual(t, len(c), 1500+705, "chunk %d far over maximum", i)
	}
}

func TestChunkDeterministic(t *testing.T) {
	text := paragraphs(7, 650)
	first := Chunk(text, 1200, 400)
	second := Chunk(text, 1200, 400)
	assert.Equal(t, first, second)
}

func TestChunkReconstructsSource(t *testing.T) {
	text := paragraphs(9, 600)
	chunks := Chunk(text, 1500, 500)
	require.NotEmpty(t, chunks)

	// Concatenation in index order reconstructs the source up to boundary
	// whitespace trimming
	joined := strings.Join(chunks, "")
	normalize := func(s string) string {
		return strings.Join(strings.Fields(s), "")
	}
	assert.Equal(t, normalize(text), normalize(joined))
}

func TestChunkSmallFragmentCarried(t *testing.T) {
	// A tiny trailing paragraph must be merged into the previous chunk, not
	// emitted on its own
	text := paragraphs(3, 700) + "\n\ntail."
	chunks := Chunk(text, 1500, 500)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.GreaterOrEqual(t, len(c), 500)
	}
	assert.Contains(t, chunks[len(chunks)-1], "tail.")
}

func TestChunkDefaults(t *testing.T) {
	text := paragraphs(2, 300)
	chunks := Chunk(text, 0, 0)
	require.Len(t, chunks, 1)
	assert.Equal(t, DefaultMaxChars, 1500)
	assert.Equal(t, DefaultMinChars, 500)
}
