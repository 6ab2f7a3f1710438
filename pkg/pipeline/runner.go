package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lexgraph/lexgraph/pkg/knowledge"
	"github.com/lexgraph/lexgraph/pkg/pipeline/processors"
)

const uploadChunkSize = 256 * 1024

// PipelineOptions configures a DocumentPipeline. Zero values get
// sensible defaults; OCR and UploadDir stay disabled when unset.
type PipelineOptions struct {
	Extractors *processors.Registry
	OCR        *processors.OCRClient
	UploadDir  string

	// MinTextLength is the shortest native extraction accepted before
	// trying the OCR fallback
	MinTextLength int
}

// DocumentPipeline owns the documents under processing and implements
// the task handlers that move them through extraction, OCR, analysis
// and upload. Register its handlers on a queue registry and enqueue
// the tasks it builds.
type DocumentPipeline struct {
	extractors    *processors.Registry
	ocr           *processors.OCRClient
	uploadDir     string
	minTextLength int

	pii       *knowledge.PIIDetector
	extractor *knowledge.EntityExtractor
	mapper    *knowledge.RelationshipMapper
	clusters  *knowledge.ClusterBuilder
	assembler *knowledge.Assembler

	logger *logrus.Logger

	mu      sync.Mutex
	docs    map[string]Document
	results map[string]ExtractionResult
}

// NewDocumentPipeline creates a pipeline publishing assembled networks
// through publisher, which may be nil
func NewDocumentPipeline(publisher knowledge.Publisher, opts PipelineOptions) *DocumentPipeline {
	if opts.Extractors == nil {
		opts.Extractors = processors.NewRegistry(
			processors.NewPlainTextExtractor(),
			processors.NewPDFExtractor(),
			processors.NewHTMLExtractor(),
		)
	}
	if opts.MinTextLength <= 0 {
		opts.MinTextLength = 32
	}
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &DocumentPipeline{
		extractors:    opts.Extractors,
		ocr:           opts.OCR,
		uploadDir:     opts.UploadDir,
		minTextLength: opts.MinTextLength,
		pii:           knowledge.NewPIIDetector(),
		extractor:     knowledge.NewEntityExtractor(),
		mapper:        knowledge.NewRelationshipMapper(),
		clusters:      knowledge.NewClusterBuilder(),
		assembler:     knowledge.NewAssembler(publisher),
		logger:        logger,
		docs:          make(map[string]Document),
		results:       make(map[string]ExtractionResult),
	}
}

// RegisterHandlers binds the pipeline's handlers to the registry
func (p *DocumentPipeline) RegisterHandlers(registry *Registry) {
	registry.Register(TaskExtraction, p.handleExtraction)
	registry.Register(TaskOCR, p.handleOCR)
	registry.Register(TaskAnalysis, p.handleAnalysis)
	registry.Register(TaskUpload, p.handleUpload)
}

// AddDocument stores the document and returns an extraction task for
// it, ready to enqueue
func (p *DocumentPipeline) AddDocument(doc Document) ProcessingTask {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	p.mu.Lock()
	p.docs[doc.ID] = doc
	p.mu.Unlock()

	return p.taskFor(TaskExtraction, doc)
}

// NewDocumentTask builds a task of the given type against a document
// already added to the pipeline
func (p *DocumentPipeline) NewDocumentTask(taskType TaskType, docID string) (ProcessingTask, error) {
	p.mu.Lock()
	doc, ok := p.docs[docID]
	p.mu.Unlock()
	if !ok {
		return ProcessingTask{}, errors.Errorf("unknown document %s", docID)
	}
	return p.taskFor(taskType, doc), nil
}

func (p *DocumentPipeline) taskFor(taskType TaskType, doc Document) ProcessingTask {
	task := NewTask(taskType)
	task.Metadata[MetaDocumentID] = doc.ID
	task.Metadata[MetaDocumentName] = doc.Name
	task.Metadata[MetaCaseID] = doc.CaseID
	return task
}

// Document returns a stored document
func (p *DocumentPipeline) Document(id string) (Document, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, ok := p.docs[id]
	return doc, ok
}

// Result returns what processing learned about a document so far
func (p *DocumentPipeline) Result(docID string) (ExtractionResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.results[docID]
	return r, ok
}

// Results returns every stored extraction result
func (p *DocumentPipeline) Results() []ExtractionResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ExtractionResult, 0, len(p.results))
	for _, r := range p.results {
		out = append(out, r)
	}
	return out
}

func (p *DocumentPipeline) document(task ProcessingTask) (Document, error) {
	id := stringMeta(task, MetaDocumentID)
	if id == "" {
		return Document{}, errors.New("task has no document id")
	}
	doc, ok := p.Document(id)
	if !ok {
		return Document{}, errors.Errorf("unknown document %s", id)
	}
	return doc, nil
}

// handleExtraction runs the full document path: text extraction with
// OCR fallback, table detection, PII detection, then the knowledge
// stages. Cancellation is checked between stages; a started stage runs
// to its end.
func (p *DocumentPipeline) handleExtraction(ctx context.Context, task ProcessingTask, progress ProgressFunc) error {
	doc, err := p.document(task)
	if err != nil {
		return err
	}
	tracker := NewTracker(progress)

	text, method, err := p.extractText(ctx, doc, tracker)
	if err != nil {
		return err
	}
	tracker.Complete(StageOCR)
	if err := ctx.Err(); err != nil {
		return err
	}

	tables := DetectTables(text)
	tracker.Complete(StageTables)
	if err := ctx.Err(); err != nil {
		return err
	}

	findings := p.pii.Detect(text)
	network := p.analyze(doc.CaseID, doc.Name, text, tracker)

	p.mu.Lock()
	p.results[doc.ID] = ExtractionResult{
		DocumentID: doc.ID,
		CaseID:     doc.CaseID,
		Text:       text,
		Method:     method,
		Tables:     tables,
		PII:        findings,
		Network:    network,
	}
	p.mu.Unlock()

	p.logger.WithFields(logrus.Fields{
		"document_id":  doc.ID,
		"method":       method,
		"tables_count": len(tables),
		"pii_count":    len(findings),
	}).Info("Document extraction completed")
	return nil
}

// extractText tries the native extractor for the document's type and
// falls back to the OCR service once when the native pass errors or
// comes back too thin to be the real text layer
func (p *DocumentPipeline) extractText(ctx context.Context, doc Document, tracker *Tracker) (string, string, error) {
	var (
		text      string
		nativeErr error
	)

	extractor, ok := p.extractors.Lookup(doc.MIME)
	if ok {
		text, nativeErr = extractor.Extract(ctx, doc.Content, func(done, total int) {
			tracker.Update(StageExtraction, done, total)
		})
	} else {
		nativeErr = errors.Errorf("no extractor for %s", doc.MIME)
	}
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	tracker.Complete(StageExtraction)

	if nativeErr == nil && len(strings.TrimSpace(text)) >= p.minTextLength {
		return text, MethodNative, nil
	}

	if p.ocr == nil {
		if nativeErr != nil {
			return "", "", errors.Wrap(nativeErr, "extract text")
		}
		return text, MethodNative, nil
	}

	p.logger.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"text_length": len(text),
	}).Warn("Native extraction thin or failed, trying OCR fallback")
	ocrFallbacks.Inc()

	ocrText, ocrErr := p.ocr.Extract(ctx, doc.Content, func(done, total int) {
		tracker.Update(StageOCR, done, total)
	})
	if ocrErr != nil {
		if nativeErr != nil {
			return "", "", errors.Errorf("extraction failed (native: %v, ocr: %v)", nativeErr, ocrErr)
		}
		// Thin but valid native text beats a dead end
		return text, MethodNative, nil
	}
	return ocrText, MethodOCRFallback, nil
}

// analyze runs the knowledge stages over extracted text. These stages
// never fail the task; empty text just assembles an empty network.
func (p *DocumentPipeline) analyze(caseID, source, text string, tracker *Tracker) *knowledge.EntityNetwork {
	entities := p.extractor.Extract(text, source)
	tracker.Update(StageEntities, 1, 4)

	merged := knowledge.MergeEntities(entities)
	relationships := p.mapper.Map(merged, text)
	tracker.Update(StageEntities, 2, 4)

	clusters := p.clusters.Build(merged, relationships)
	tracker.Update(StageEntities, 3, 4)

	network := p.assembler.Assemble(caseID, merged, relationships, clusters)
	tracker.Complete(StageEntities)
	return network
}

// handleOCR sends a document straight to the OCR service, skipping the
// native extractors
func (p *DocumentPipeline) handleOCR(ctx context.Context, task ProcessingTask, progress ProgressFunc) error {
	doc, err := p.document(task)
	if err != nil {
		return err
	}
	if p.ocr == nil {
		return errors.New("ocr service not configured")
	}

	tracker := NewTrackerWithBands(progress, []Band{{Stage: StageOCR, Start: 0, End: 100}})
	text, err := p.ocr.Extract(ctx, doc.Content, func(done, total int) {
		tracker.Update(StageOCR, done, total)
	})
	if err != nil {
		return errors.Wrap(err, "ocr extraction")
	}

	p.mu.Lock()
	p.results[doc.ID] = ExtractionResult{
		DocumentID: doc.ID,
		CaseID:     doc.CaseID,
		Text:       text,
		Method:     MethodOCRFallback,
	}
	p.mu.Unlock()
	return nil
}

// handleAnalysis runs the knowledge stages over text carried in the
// task metadata, for callers that already have extracted text
func (p *DocumentPipeline) handleAnalysis(ctx context.Context, task ProcessingTask, progress ProgressFunc) error {
	text := stringMeta(task, MetaText)
	if text == "" {
		return errors.New("analysis task has no text")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	caseID := stringMeta(task, MetaCaseID)
	source := stringMeta(task, MetaDocumentName)
	tracker := NewTrackerWithBands(progress, []Band{{Stage: StageEntities, Start: 0, End: 100}})

	network := p.analyze(caseID, source, text, tracker)

	key := stringMeta(task, MetaDocumentID)
	if key == "" {
		key = task.ID
	}
	p.mu.Lock()
	p.results[key] = ExtractionResult{
		DocumentID: key,
		CaseID:     caseID,
		Text:       text,
		Method:     MethodNative,
		Network:    network,
	}
	p.mu.Unlock()
	return nil
}

// handleUpload writes a document into the pipeline's upload directory
// in chunks, reporting byte progress and honouring cancellation
// between chunks
func (p *DocumentPipeline) handleUpload(ctx context.Context, task ProcessingTask, progress ProgressFunc) error {
	doc, err := p.document(task)
	if err != nil {
		return err
	}
	if p.uploadDir == "" {
		return errors.New("upload directory not configured")
	}
	if err := os.MkdirAll(p.uploadDir, 0o755); err != nil {
		return errors.Wrap(err, "create upload directory")
	}

	tracker := NewTrackerWithBands(progress, []Band{{Stage: StageUpload, Start: 0, End: 100}})
	path := filepath.Join(p.uploadDir, filepath.Base(doc.Name))

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create upload file")
	}
	defer f.Close()

	total := len(doc.Content)
	for written := 0; written < total; {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := written + uploadChunkSize
		if end > total {
			end = total
		}
		if _, err := f.Write(doc.Content[written:end]); err != nil {
			return errors.Wrap(err, "write upload file")
		}
		written = end
		tracker.Update(StageUpload, written, total)
	}
	if total == 0 {
		tracker.Complete(StageUpload)
	}

	p.logger.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"path":        path,
		"bytes":       total,
	}).Info("Document upload completed")
	return nil
}

func stringMeta(task ProcessingTask, key string) string {
	v, _ := task.Metadata[key].(string)
	return v
}
