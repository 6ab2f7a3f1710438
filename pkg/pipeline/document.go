package pipeline

import "github.com/lexgraph/lexgraph/pkg/knowledge"

// Extraction methods recorded on results
const (
	MethodNative      = "native"
	MethodOCRFallback = "ocr_fallback"
)

// Document is a raw input file queued for processing
type Document struct {
	ID      string `json:"id"`
	CaseID  string `json:"case_id"`
	Name    string `json:"name"`
	MIME    string `json:"mime"`
	Content []byte `json:"-"`
}

// Table is a tabular region detected in extracted text
type Table struct {
	Line    int        `json:"line"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// ExtractionResult is everything the extraction handler learned about
// one document
type ExtractionResult struct {
	DocumentID string                   `json:"document_id"`
	CaseID     string                   `json:"case_id"`
	Text       string                   `json:"text"`
	Method     string                   `json:"method"`
	Tables     []Table                  `json:"tables,omitempty"`
	PII        []knowledge.PIIFinding   `json:"pii,omitempty"`
	Network    *knowledge.EntityNetwork `json:"network,omitempty"`
}
