package processors

import (
	"bytes"
	"context"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
)

// PDFExtractor reads the embedded text layer of a PDF. Scanned PDFs
// with no text layer come back empty; callers fall back to OCR for
// those.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF text extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

func (e *PDFExtractor) Extract(ctx context.Context, content []byte, progress PageFunc) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", errors.Wrap(err, "open pdf")
	}

	var sb strings.Builder
	totalPages := reader.NumPage()

	for pageIndex := 1; pageIndex <= totalPages; pageIndex++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A malformed page should not sink the rest of the document
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")

		if progress != nil {
			progress(pageIndex, totalPages)
		}
	}

	return sb.String(), nil
}

func (e *PDFExtractor) SupportedTypes() []string {
	return []string{"application/pdf"}
}
