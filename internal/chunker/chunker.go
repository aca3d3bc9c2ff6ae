package chunker

import "strings"

const (
	// DefaultMaxChars is the default upper bound per chunk
	DefaultMaxChars = 1500
	// DefaultMinChars is the default lower bound per chunk
	DefaultMinChars = 500
)

// Chunk splits text into paragraph-aware segments of at most roughly maxChars
// characters. The scanner walks forward in maxChars windows and extends each
// cut to the next paragraph break ("\n\n") at or after the window end, so
// paragraphs are not split mid-way. Fragments shorter than minChars are
// accumulated in a carry buffer and merged into a neighbouring chunk instead
// of being emitted on their own.
//
// A pure function of its input: same text, same chunks. Empty input yields no
// chunks; a document shorter than minChars yields exactly one chunk.
func Chunk(text string, maxChars, minChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []string
	var carry strings.Builder

	start := 0
	for start < len(text) {
		end := start + maxChars
		if end >= len(text) {
			end = len(text)
		} else if boundary := strings.Index(text[end:], "\n\n"); boundary >= 0 {
			// Extend to the nearest paragraph break at or after the window
			end += boundary
		}

		piece := strings.TrimSpace(text[start:end])
		if len(piece) >= minChars {
			// Prepend any carried fragments so concatenation in index order
			// still reconstructs the source
			if carry.Len() > 0 {
				piece = strings.TrimSpace(carry.String()) + "\n\n" + piece
				carry.Reset()
			}
			chunks = append(chunks, piece)
		} else if piece != "" {
			carry.WriteString(piece)
			carry.WriteString("\n\n")
		}

		// Resume at the cut point; leading boundary whitespace is trimmed
		// from the next piece
		start = end
	}

	remainder := strings.TrimSpace(carry.String())
	switch {
	case remainder == "":
	case len(remainder) >= minChars:
		chunks = append(chunks, remainder)
	case len(chunks) > 0:
		chunks[len(chunks)-1] += "\n\n" + remainder
	default:
		// Sole-chunk exception: a short document still produces one chunk
		chunks = append(chunks, remainder)
	}

	return chunks
}
