package knowledge

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jdkato/prose/v2"
	"github.com/sirupsen/logrus"
)

const (
	// cueWindow is the widest gap, in characters, across which a typed
	// rule is still evaluated for a pair of entities
	cueWindow = 400
	// proximityWindow is the widest gap that still yields a related_to
	// edge when no typed rule matched
	proximityWindow = 300
	// normalizeWindow scales raw character distance into [0,1]
	normalizeWindow = 1000
	// cueMargin widens the cue search a little beyond the entity spans
	cueMargin = 60

	maxEvidence        = 3
	coOccurrenceCap    = 5
	maxStrength        = 0.95
	ruleConfidence     = 0.8
	fallbackConfidence = 0.4
)

var (
	worksForCueRe = regexp.MustCompile(`(?i)\b(?:works? for|worked for|employed (?:by|at)|employee of|director of|partner at|on behalf of|counsel for|representing|represents?)\b`)
	ownsCueRe     = regexp.MustCompile(`(?i)\b(?:owns?|owned by|owner of|property of|belongs to|acquired|purchased)\b`)
	ownsPassiveRe = regexp.MustCompile(`(?i)\b(?:owned by|property of|belongs to)\b`)
	authoredCueRe = regexp.MustCompile(`(?i)\b(?:signed|authored|wrote|drafted|prepared|executed|witnessed)\b`)
	locatedCueRe  = regexp.MustCompile(`(?i)\b(?:at|in|near|located|based|situated|resides?|residing|living|lived)\b`)
	refsCueRe     = regexp.MustCompile(`(?i)\b(?:refers? to|references?|cited?|cites|pursuant to|annexed to|attached to|under the)\b`)
	contraCueRe   = regexp.MustCompile(`(?i)\b(?:contradicts?|disputes?|denies|denied|refutes?|inconsistent with|challenges?)\b`)
	supportCueRe  = regexp.MustCompile(`(?i)\b(?:supports?|corroborates?|confirms?|consistent with|upholds?|endorses?)\b`)
	knowsCueRe    = regexp.MustCompile(`(?i)\b(?:and|with|married to|spouse|husband|wife|brother|sister|son|daughter|met|knows|knew|friend|colleague|partner)\b`)
)

// relationRule binds a cue pattern to a relationship type for pairs of
// entities it applies to. forward decides edge direction given the pair
// in text order and the cue that fired.
type relationRule struct {
	relType RelationshipType
	cue     *regexp.Regexp
	applies func(a, b Entity) bool
	forward func(a, b Entity, cue string) (Entity, Entity)
}

func textOrder(a, b Entity, _ string) (Entity, Entity) { return a, b }

func personFirst(a, b Entity, _ string) (Entity, Entity) {
	if a.Type == EntityPerson {
		return a, b
	}
	return b, a
}

func locationLast(a, b Entity, _ string) (Entity, Entity) {
	if b.Type == EntityLocation {
		return a, b
	}
	return b, a
}

func documentLast(a, b Entity, _ string) (Entity, Entity) {
	if b.Type == EntityDocument {
		return a, b
	}
	return b, a
}

func ownerFirst(a, b Entity, cue string) (Entity, Entity) {
	// "X owned by Y" puts the owner second in the text
	if ownsPassiveRe.MatchString(cue) {
		return b, a
	}
	return a, b
}

func pairOf(x, y EntityType) func(a, b Entity) bool {
	return func(a, b Entity) bool {
		return (a.Type == x && b.Type == y) || (a.Type == y && b.Type == x)
	}
}

func oneOfType(t EntityType) func(a, b Entity) bool {
	return func(a, b Entity) bool {
		return (a.Type == t) != (b.Type == t)
	}
}

func anyPair(a, b Entity) bool { return true }

// defaultRules returns the typed rules in evaluation order. Specific
// cues come before the broad person-to-person conjunction rule so that
// a sentence like "Smith denies Jones's account" maps to contradicts
// rather than knows.
func defaultRules() []relationRule {
	return []relationRule{
		{relType: RelationWorksFor, cue: worksForCueRe, applies: pairOf(EntityPerson, EntityOrganization), forward: personFirst},
		{relType: RelationOwns, cue: ownsCueRe, applies: func(a, b Entity) bool {
			return a.Type == EntityPerson || a.Type == EntityOrganization || b.Type == EntityPerson || b.Type == EntityOrganization
		}, forward: ownerFirst},
		{relType: RelationAuthored, cue: authoredCueRe, applies: pairOf(EntityPerson, EntityDocument), forward: personFirst},
		{relType: RelationLocatedAt, cue: locatedCueRe, applies: oneOfType(EntityLocation), forward: locationLast},
		{relType: RelationReferences, cue: refsCueRe, applies: func(a, b Entity) bool {
			return a.Type == EntityDocument || b.Type == EntityDocument
		}, forward: documentLast},
		{relType: RelationContradicts, cue: contraCueRe, applies: anyPair, forward: textOrder},
		{relType: RelationSupports, cue: supportCueRe, applies: anyPair, forward: textOrder},
		{relType: RelationKnows, cue: knowsCueRe, applies: pairOf(EntityPerson, EntityPerson), forward: textOrder},
	}
}

// RelationshipMapper infers typed edges between extracted entities from
// their proximity and the connecting language in the source text. The
// mapping is deterministic for a given entity list and text.
type RelationshipMapper struct {
	rules  []relationRule
	logger *logrus.Logger
}

// NewRelationshipMapper creates a mapper with the default rule set
func NewRelationshipMapper() *RelationshipMapper {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &RelationshipMapper{
		rules:  defaultRules(),
		logger: logger,
	}
}

// Map considers every entity pair once and returns the edges whose rule
// cues or proximity justify them. Entities should already be merged;
// pairs that cannot be located in the text are skipped.
func (m *RelationshipMapper) Map(entities []Entity, text string) []Relationship {
	if len(entities) < 2 || text == "" {
		return nil
	}

	sentences := segmentSentences(text)
	lowerSentences := make([]string, len(sentences))
	for i, s := range sentences {
		lowerSentences[i] = strings.ToLower(s)
	}

	relationships := make([]Relationship, 0)
	for i := 0; i < len(entities); i++ {
		for j := i + 1; j < len(entities); j++ {
			rel, ok := m.mapPair(entities[i], entities[j], text, sentences, lowerSentences)
			if !ok {
				continue
			}
			relationships = append(relationships, rel)
			relationshipsMapped.WithLabelValues(string(rel.Type)).Inc()
		}
	}

	m.logger.WithFields(logrus.Fields{
		"entities_count":      len(entities),
		"relationships_count": len(relationships),
	}).Info("Relationship mapping completed")

	return relationships
}

func (m *RelationshipMapper) mapPair(a, b Entity, text string, sentences, lowerSentences []string) (Relationship, bool) {
	if a.ID == b.ID {
		return Relationship{}, false
	}

	aStart, aEnd, ok := entitySpan(a, text)
	if !ok {
		return Relationship{}, false
	}
	bStart, bEnd, ok := entitySpan(b, text)
	if !ok {
		return Relationship{}, false
	}

	// Work in text order so distance and cue windows are well defined
	if bStart < aStart {
		a, b = b, a
		aStart, aEnd, bStart, bEnd = bStart, bEnd, aStart, aEnd
	}

	distance := bStart - aEnd
	if distance < 0 {
		distance = 0
	}

	var (
		relType  RelationshipType
		src, dst Entity
		conf     float64
		matched  bool
	)

	if distance <= cueWindow {
		window := text[maxInt(0, aStart-cueMargin):minInt(len(text), bEnd+cueMargin)]
		for _, rule := range m.rules {
			if !rule.applies(a, b) {
				continue
			}
			cue := rule.cue.FindString(window)
			if cue == "" {
				continue
			}
			relType = rule.relType
			src, dst = rule.forward(a, b, cue)
			conf = ruleConfidence
			matched = true
			break
		}
	}

	if !matched {
		if distance > proximityWindow {
			return Relationship{}, false
		}
		relType = RelationRelatedTo
		src, dst = a, b
		conf = fallbackConfidence
	}

	coOccurrence := sharedSentences(lowerSentences, a.Name, b.Name)
	strength := edgeStrength(distance, coOccurrence, a.Metadata.Importance, b.Metadata.Importance)

	return Relationship{
		ID:            uuid.New().String(),
		SourceID:      src.ID,
		TargetID:      dst.ID,
		Type:          relType,
		Strength:      strength,
		Bidirectional: IsBidirectional(relType),
		Metadata: RelationshipMetadata{
			Confidence: conf,
			Evidence:   evidenceFor(sentences, lowerSentences, a.Name, b.Name),
			Source:     a.Metadata.ExtractedFrom,
		},
	}, true
}

// edgeStrength averages three signals: how close the mentions are, how
// often the pair shares a sentence, and how important both entities are.
// The result never reaches 1.0; extraction is heuristic, not certain.
func edgeStrength(distance, coOccurrence int, impA, impB float64) float64 {
	proximity := 1 - float64(minInt(distance, normalizeWindow))/float64(normalizeWindow)
	shared := float64(minInt(coOccurrence, coOccurrenceCap)) / float64(coOccurrenceCap)
	importance := impA * impB

	strength := (proximity + shared + importance) / 3
	if strength < 0 {
		return 0
	}
	if strength > maxStrength {
		return maxStrength
	}
	return strength
}

// entitySpan locates the first mention of the entity in the text,
// preferring recorded source refs over a raw search
func entitySpan(e Entity, text string) (int, int, bool) {
	start, end := -1, -1
	for _, ref := range e.Metadata.Sources {
		if ref.Start < 0 || ref.End > len(text) || ref.End <= ref.Start {
			continue
		}
		if start < 0 || ref.Start < start {
			start, end = ref.Start, ref.End
		}
	}
	if start >= 0 {
		return start, end, true
	}

	idx := strings.Index(strings.ToLower(text), strings.ToLower(e.Name))
	if idx < 0 {
		return 0, 0, false
	}
	return idx, idx + len(e.Name), true
}

func sharedSentences(lowerSentences []string, nameA, nameB string) int {
	la, lb := strings.ToLower(nameA), strings.ToLower(nameB)
	count := 0
	for _, s := range lowerSentences {
		if strings.Contains(s, la) && strings.Contains(s, lb) {
			count++
		}
	}
	return count
}

func evidenceFor(sentences, lowerSentences []string, nameA, nameB string) []string {
	la, lb := strings.ToLower(nameA), strings.ToLower(nameB)
	evidence := make([]string, 0, maxEvidence)
	for i, s := range lowerSentences {
		if strings.Contains(s, la) && strings.Contains(s, lb) {
			evidence = append(evidence, strings.TrimSpace(sentences[i]))
			if len(evidence) == maxEvidence {
				break
			}
		}
	}
	return evidence
}

var sentenceFallbackRe = regexp.MustCompile(`[^.!?\n]+[.!?]?`)

// segmentSentences splits text into sentences with prose, falling back
// to punctuation splitting if the document cannot be built
func segmentSentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err == nil {
		sents := doc.Sentences()
		out := make([]string, 0, len(sents))
		for _, s := range sents {
			if t := strings.TrimSpace(s.Text); t != "" {
				out = append(out, t)
			}
		}
		return out
	}

	raw := sentenceFallbackRe.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
