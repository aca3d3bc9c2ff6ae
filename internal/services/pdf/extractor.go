package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/interfaces"
)

// Extractor implements the PDFExtractor interface using pdfcpu. pdfcpu's
// API is file based, so incoming bytes round-trip through a temp directory.
type Extractor struct {
	logger  arbor.ILogger
	tempDir string
}

// Compile-time interface assertion
var _ interfaces.PDFExtractor = (*Extractor)(nil)

// NewExtractor creates a new PDF extractor service
func NewExtractor(logger arbor.ILogger) *Extractor {
	tempDir := filepath.Join(os.TempDir(), "colligo-pdf")
	os.MkdirAll(tempDir, 0755)

	return &Extractor{
		logger:  logger,
		tempDir: tempDir,
	}
}

// ExtractText extracts the text content and page count from PDF bytes.
// Pages are separated by blank lines so paragraph-boundary chunking treats
// page breaks as chunk boundaries.
func (e *Extractor) ExtractText(ctx context.Context, data []byte) (string, int, error) {
	if len(data) == 0 {
		return "", 0, fmt.Errorf("empty PDF input")
	}

	runID := uuid.New().String()
	tempFile := filepath.Join(e.tempDir, fmt.Sprintf("extract_%s.pdf", runID))
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return "", 0, fmt.Errorf("failed to write temp PDF file: %w", err)
	}
	defer os.Remove(tempFile)

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	pageCount := pdfCtx.PageCount

	outDir := filepath.Join(e.tempDir, fmt.Sprintf("pages_%s", runID))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(tempFile, outDir, nil, conf); err != nil {
		return "", pageCount, fmt.Errorf("failed to extract PDF content: %w", err)
	}

	pageTexts := e.readPageContent(outDir)

	var builder strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		text := strings.TrimSpace(pageTexts[pageNum])
		if text == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(text)
	}

	e.logger.Debug().
		Int("pages", pageCount).
		Int("chars", builder.Len()).
		Msg("Extracted PDF text")

	return builder.String(), pageCount, nil
}

// readPageContent reads the per-page content streams pdfcpu wrote into
// outDir and recovers the shown text from each
func (e *Extractor) readPageContent(outDir string) map[int]string {
	pageTexts := make(map[int]string)

	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err != nil {
				continue
			}
		}

		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			e.logger.Warn().Err(err).Str("file", file.Name()).Msg("Failed to read extracted page")
			continue
		}
		pageTexts[pageNum] = showTextFromContent(string(content))
	}

	return pageTexts
}

// showTextFromContent pulls the literal strings shown by Tj/TJ operators out
// of a raw page content stream. Content streams interleave text with drawing
// operators; only the parenthesized string operands carry visible text.
func showTextFromContent(content string) string {
	var parts []string
	depth := 0
	var current strings.Builder

	for i := 0; i < len(content); i++ {
		c := content[i]
		switch {
		case c == '\\' && depth > 0 && i+1 < len(content):
			next := content[i+1]
			switch next {
			case 'n':
				current.WriteByte('\n')
			case 't':
				current.WriteByte('\t')
			case '(', ')', '\\':
				current.WriteByte(next)
			}
			i++
		case c == '(':
			depth++
			if depth == 1 {
				current.Reset()
			} else {
				current.WriteByte(c)
			}
		case c == ')':
			if depth > 0 {
				depth--
				if depth == 0 {
					if s := current.String(); strings.TrimSpace(s) != "" {
						parts = append(parts, s)
					}
				} else {
					current.WriteByte(c)
				}
			}
		case depth > 0:
			current.WriteByte(c)
		}
	}

	return strings.Join(parts, " ")
}
