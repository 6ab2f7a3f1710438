package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/lexgraph/lexgraph/pkg/events"
	"github.com/lexgraph/lexgraph/pkg/knowledge"
	"github.com/lexgraph/lexgraph/pkg/knowledge/storage"
	"github.com/lexgraph/lexgraph/pkg/knowledge/visualizer"
	"github.com/lexgraph/lexgraph/pkg/pipeline"
	"github.com/lexgraph/lexgraph/pkg/pipeline/processors"
)

var (
	inputPath   = flag.String("input", "", "File or directory of case documents to process")
	caseID      = flag.String("case", "default", "Case identifier stamped on extracted networks")
	outputDir   = flag.String("output", "networks", "Directory the case network JSON is written to")
	visualize   = flag.Bool("viz", false, "Write a D3 visualization of the case network")
	vizOutput   = flag.String("viz-output", "entity_network.html", "Output file for the visualization")
	redact      = flag.Bool("redact", false, "Write redacted copies of extracted text under the output directory")
	workers     = flag.Int("workers", 4, "Number of queue workers")
	ocrURL      = flag.String("ocr-url", "", "Base URL of the OCR service (default $OCR_SERVICE_URL)")
	neo4jURI    = flag.String("neo4j-uri", "", "Neo4j bolt URI for graph mirroring (default $NEO4J_URI)")
	neo4jUser   = flag.String("neo4j-user", "", "Neo4j username (default $NEO4J_USERNAME)")
	neo4jPass   = flag.String("neo4j-pass", "", "Neo4j password (default $NEO4J_PASSWORD)")
	chunkTokens = flag.Int("chunk-tokens", 0, "Split text inputs larger than this many tokens (0 disables)")
	logLevel    = flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	envFile     = flag.String("env", ".env", "Path to environment file")
)

func main() {
	flag.Parse()

	// Configure logging
	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := godotenv.Load(*envFile); err != nil {
		logger.Debugf("No env file loaded from %s: %v", *envFile, err)
	}
	applyEnvDefault(ocrURL, "OCR_SERVICE_URL")
	applyEnvDefault(neo4jURI, "NEO4J_URI")
	applyEnvDefault(neo4jUser, "NEO4J_USERNAME")
	applyEnvDefault(neo4jPass, "NEO4J_PASSWORD")

	if *inputPath == "" {
		logger.Fatal("Input file or directory must be specified")
	}

	var ocr *processors.OCRClient
	if *ocrURL != "" {
		ocr = processors.NewOCRClient(*ocrURL, nil)
	}

	files, err := collectInputs(*inputPath, ocr != nil)
	if err != nil {
		logger.Fatalf("Failed to read input path: %v", err)
	}
	if len(files) == 0 {
		logger.Fatal("No input files found")
	}

	store := storage.NewJSONGraphStore(*outputDir)

	var graphStore *storage.Neo4jGraphStore
	if *neo4jURI != "" {
		graphStore, err = storage.NewNeo4jGraphStore(*neo4jURI, *neo4jUser, *neo4jPass)
		if err != nil {
			logger.Fatalf("Failed to connect to Neo4j: %v", err)
		}
		defer graphStore.Close()
	}

	// Every published network folds into one case-level network; entity
	// ids are unique per extraction so a plain union keeps referential
	// integrity. The bus delivers serially, so no locking here.
	combined := &knowledge.EntityNetwork{CaseID: *caseID}
	bus := events.NewBus[*knowledge.EntityNetwork]()
	bus.Subscribe(events.TopicAll, func(network *knowledge.EntityNetwork) {
		accumulate(combined, network)
		if err := store.SaveNetwork(context.Background(), combined); err != nil {
			logger.Errorf("Failed to save network: %v", err)
		}
		if graphStore != nil {
			if err := graphStore.SaveNetwork(context.Background(), combined); err != nil {
				logger.Errorf("Failed to mirror network to Neo4j: %v", err)
			}
		}
		if *visualize {
			viz := visualizer.NewD3Visualizer(*vizOutput)
			if err := viz.Visualize(combined); err != nil {
				logger.Errorf("Failed to visualize network: %v", err)
			}
		}
		logger.WithFields(logrus.Fields{
			"case":          network.CaseID,
			"entities":      len(network.Entities),
			"relationships": len(network.Relationships),
			"clusters":      len(network.Clusters),
		}).Info("Network published")
	})

	dp := pipeline.NewDocumentPipeline(bus, pipeline.PipelineOptions{OCR: ocr})
	registry := pipeline.NewRegistry()
	dp.RegisterHandlers(registry)
	queue := pipeline.NewQueue(*workers, registry)

	expected := make(map[string]bool)
	seen := make(map[string]bool)
	done := make(chan struct{})
	queue.Subscribe(func(task pipeline.ProcessingTask) {
		fields := logrus.Fields{
			"task":     task.ID,
			"type":     task.Type,
			"status":   task.Status,
			"progress": task.Progress,
			"stage":    task.Stage,
		}
		if !task.Terminal() {
			logger.WithFields(fields).Debug("Task update")
			return
		}
		if task.Error != nil {
			fields["error"] = task.Error.Message
		}
		logger.WithFields(fields).Info("Task finished")
		if expected[task.ID] && !seen[task.ID] {
			seen[task.ID] = true
			if len(seen) == len(expected) {
				close(done)
			}
		}
	})

	logger.Infof("Processing %d input files for case %s", len(files), *caseID)

	for _, file := range files {
		for _, doc := range loadDocuments(logger, file, *caseID, *chunkTokens) {
			task, err := queue.Enqueue(dp.AddDocument(doc))
			if err != nil {
				logger.Errorf("Failed to enqueue %s: %v", doc.Name, err)
				continue
			}
			expected[task.ID] = true
		}
	}
	if len(expected) == 0 {
		logger.Fatal("No documents could be enqueued")
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx, cancel := context.WithCancel(sigCtx)
	queue.Run(runCtx)

	select {
	case <-done:
	case <-sigCtx.Done():
		logger.Warn("Interrupted, stopping workers")
	}
	cancel()
	queue.Wait()

	var completed, failed int
	for _, task := range queue.Tasks() {
		switch task.Status {
		case pipeline.StatusCompleted:
			completed++
		case pipeline.StatusFailed:
			failed++
		}
	}
	logger.Infof("Processed %d tasks: %d completed, %d failed", len(expected), completed, failed)

	if *redact {
		if err := writeRedacted(dp, filepath.Join(*outputDir, "redacted")); err != nil {
			logger.Errorf("Failed to write redacted copies: %v", err)
		}
	}

	stats := knowledge.Stats(combined)
	logger.WithFields(logrus.Fields{
		"case":          combined.CaseID,
		"entities":      stats.Entities,
		"relationships": stats.Relationships,
		"clusters":      stats.Clusters,
		"avg_strength":  stats.AverageStrength,
	}).Info("Case network assembled")
	logger.Infof("Case network saved under %s", *outputDir)
	if *visualize {
		logger.Infof("Visualization saved to %s", *vizOutput)
	}

	if completed == 0 && failed > 0 {
		logger.Fatal("All document tasks failed")
	}
}

func applyEnvDefault(value *string, key string) {
	if *value == "" {
		*value = os.Getenv(key)
	}
}

// collectInputs expands a file or directory into the list of processable
// files. Image formats only qualify when an OCR service is configured.
func collectInputs(inputPath string, ocrEnabled bool) ([]string, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{inputPath}, nil
	}

	supported := map[string]bool{
		".txt": true, ".md": true, ".html": true, ".htm": true, ".pdf": true,
	}
	if ocrEnabled {
		for _, ext := range []string{".png", ".jpg", ".jpeg", ".tif", ".tiff"} {
			supported[ext] = true
		}
	}

	var files []string
	err = filepath.Walk(inputPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && supported[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// loadDocuments reads a file into one or more documents. Text inputs over
// the token budget split into part documents so no single knowledge pass
// has to chew through an entire bundle at once.
func loadDocuments(logger *logrus.Logger, file, caseID string, chunkTokens int) []pipeline.Document {
	content, err := os.ReadFile(file)
	if err != nil {
		logger.Errorf("Failed to read file %s: %v", file, err)
		return nil
	}

	name := filepath.Base(file)
	mime := processors.MIMEForName(name)
	doc := pipeline.Document{
		CaseID:  caseID,
		Name:    name,
		MIME:    mime,
		Content: content,
	}

	if chunkTokens <= 0 || !strings.HasPrefix(mime, "text/") {
		return []pipeline.Document{doc}
	}
	chunker, err := pipeline.NewChunker(chunkTokens, pipeline.DefaultChunkOverlap)
	if err != nil {
		logger.Warnf("Chunking unavailable: %v", err)
		return []pipeline.Document{doc}
	}
	chunks := chunker.Split(string(content))
	if len(chunks) <= 1 {
		return []pipeline.Document{doc}
	}

	logger.WithFields(logrus.Fields{
		"file":   name,
		"chunks": len(chunks),
	}).Info("Splitting oversized text input")

	docs := make([]pipeline.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, pipeline.Document{
			CaseID:  caseID,
			Name:    fmt.Sprintf("%s (part %d/%d)", name, i+1, len(chunks)),
			MIME:    mime,
			Content: []byte(chunk),
		})
	}
	return docs
}

// writeRedacted dumps anonymized copies of every extracted text
func writeRedacted(dp *pipeline.DocumentPipeline, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	detector := knowledge.NewPIIDetector()
	for _, result := range dp.Results() {
		name := result.DocumentID
		if doc, ok := dp.Document(result.DocumentID); ok && doc.Name != "" {
			name = doc.Name
		}
		redacted := detector.Anonymize(result.Text, result.PII)
		path := filepath.Join(dir, filepath.Base(name)+".redacted.txt")
		if err := os.WriteFile(path, []byte(redacted), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// accumulate folds a published network into the case-level union
func accumulate(dst, src *knowledge.EntityNetwork) {
	dst.Entities = append(dst.Entities, src.Entities...)
	dst.Relationships = append(dst.Relationships, src.Relationships...)
	dst.Clusters = append(dst.Clusters, src.Clusters...)
	if src.GeneratedAt.After(dst.GeneratedAt) {
		dst.GeneratedAt = src.GeneratedAt
	}
}
