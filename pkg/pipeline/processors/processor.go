// Package processors turns raw document bytes into plain text. Each
// extractor handles one family of MIME types; the registry picks the
// right one for a document.
package processors

import (
	"context"
	"path/filepath"
	"strings"
)

// PageFunc reports extraction progress as done pages of total
type PageFunc func(done, total int)

// TextExtractor converts document bytes into plain text
type TextExtractor interface {
	Extract(ctx context.Context, content []byte, progress PageFunc) (string, error)
	SupportedTypes() []string
}

// Registry maps MIME types to text extractors
type Registry struct {
	byMIME map[string]TextExtractor
}

// NewRegistry creates a registry over the given extractors. Later
// extractors win MIME type conflicts.
func NewRegistry(extractors ...TextExtractor) *Registry {
	r := &Registry{byMIME: make(map[string]TextExtractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds an extractor for each of its supported types
func (r *Registry) Register(e TextExtractor) {
	for _, mime := range e.SupportedTypes() {
		r.byMIME[mime] = e
	}
}

// Lookup returns the extractor for a MIME type
func (r *Registry) Lookup(mime string) (TextExtractor, bool) {
	e, ok := r.byMIME[mime]
	return e, ok
}

var mimeByExtension = map[string]string{
	".pdf":  "application/pdf",
	".html": "text/html",
	".htm":  "text/html",
	".md":   "text/markdown",
	".txt":  "text/plain",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
}

// MIMEForName guesses a document's MIME type from its file name,
// defaulting to plain text
func MIMEForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mime, ok := mimeByExtension[ext]; ok {
		return mime
	}
	return "text/plain"
}
