package interfaces

import "context"

// PDFExtractor extracts plain text from PDF bytes
type PDFExtractor interface {
	// ExtractText returns the concatenated text and the page count
	ExtractText(ctx context.Context, data []byte) (text string, pageCount int, err error)
}
