package processors

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

// HTMLExtractor pulls visible text out of an HTML document
type HTMLExtractor struct{}

// NewHTMLExtractor creates an HTML text extractor
func NewHTMLExtractor() *HTMLExtractor {
	return &HTMLExtractor{}
}

func (e *HTMLExtractor) Extract(_ context.Context, content []byte, progress PageFunc) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", errors.Wrap(err, "parse html")
	}

	doc.Find("script, style, noscript").Remove()

	body := doc.Find("body")
	var text string
	if body.Length() > 0 {
		text = body.Text()
	} else {
		text = doc.Text()
	}

	// Collapse the whitespace runs left behind by removed markup
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}

	if progress != nil {
		progress(1, 1)
	}
	return strings.Join(kept, "\n"), nil
}

func (e *HTMLExtractor) SupportedTypes() []string {
	return []string{"text/html"}
}
