package processors

import (
	"context"
	"strings"
)

// PlainTextExtractor passes text documents through, normalising line
// endings
type PlainTextExtractor struct{}

// NewPlainTextExtractor creates a plain text extractor
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

func (e *PlainTextExtractor) Extract(_ context.Context, content []byte, progress PageFunc) (string, error) {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	if progress != nil {
		progress(1, 1)
	}
	return text, nil
}

func (e *PlainTextExtractor) SupportedTypes() []string {
	return []string{"text/plain", "text/markdown"}
}
