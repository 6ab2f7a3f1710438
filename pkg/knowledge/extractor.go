package knowledge

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EntityExtractor finds typed entities in plain text using an ordered set
// of matcher strategies. Extraction is deterministic: the same text always
// produces the same entity names, types and source positions.
type EntityExtractor struct {
	matchers []Matcher
	logger   *logrus.Logger
}

// NewEntityExtractor creates an extractor with the default matcher set
func NewEntityExtractor() *EntityExtractor {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &EntityExtractor{
		matchers: DefaultMatchers(),
		logger:   logger,
	}
}

// NewEntityExtractorWithMatchers creates an extractor with a custom
// matcher set, evaluated in the given order
func NewEntityExtractorWithMatchers(matchers []Matcher) *EntityExtractor {
	e := NewEntityExtractor()
	e.matchers = matchers
	return e
}

// Extract runs every matcher over the text and returns one entity per
// match. Duplicate mentions are kept; callers merge with MergeEntities.
// source labels where the text came from and is carried on each entity.
func (e *EntityExtractor) Extract(text, source string) []Entity {
	if text == "" {
		return nil
	}

	entities := make([]Entity, 0)
	for _, m := range e.matchers {
		for _, match := range m.FindAll(text) {
			entity := Entity{
				ID:   uuid.New().String(),
				Type: m.Type,
				Name: match.Name,
				Metadata: EntityMetadata{
					Confidence:    m.Confidence,
					Importance:    BaseImportance(m.Type),
					ExtractedFrom: source,
					Sources: []SourceRef{
						{Start: match.Start, End: match.End, Pattern: m.Name},
					},
				},
			}
			entities = append(entities, entity)
			entitiesExtracted.WithLabelValues(string(m.Type)).Inc()
		}
	}

	e.logger.WithFields(logrus.Fields{
		"source":         source,
		"content_length": len(text),
		"entities_count": len(entities),
	}).Info("Entity extraction completed")

	return entities
}
