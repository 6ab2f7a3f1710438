package knowledge

import (
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Match is a single occurrence of an entity name in the source text.
// Start and End delimit the name itself, not the surrounding pattern.
type Match struct {
	Name  string
	Start int
	End   int
}

// Matcher recognises one family of entity mentions with a fixed confidence
type Matcher struct {
	Name       string
	Type       EntityType
	Confidence float64
	pattern    *regexp.Regexp
	group      int
	normalize  func(string) string
	reject     func(string) bool
}

// FindAll returns every match in text, in order of appearance
func (m Matcher) FindAll(text string) []Match {
	locs := m.pattern.FindAllStringSubmatchIndex(text, -1)
	if locs == nil {
		return nil
	}

	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		start, end := loc[2*m.group], loc[2*m.group+1]
		if start < 0 || end <= start {
			continue
		}

		name := strings.TrimSpace(text[start:end])
		if m.normalize != nil {
			name = m.normalize(name)
		}
		if name == "" {
			continue
		}
		if m.reject != nil && m.reject(name) {
			continue
		}

		matches = append(matches, Match{Name: name, Start: start, End: end})
	}
	return matches
}

var (
	personTitleRe = regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof|Professor|Justice|Judge|Sir|Dame|Lord|Lady)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\b`)
	personRoleRe  = regexp.MustCompile(`\b(?i:claimant|defendant|plaintiff|respondent|appellant|applicant|witness|executor|beneficiary|solicitor|barrister)\b,?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\b`)
	courtNameRe   = regexp.MustCompile(`\b((?:[A-Z][a-z]+\s+){0,3}(?:High Court|County Court|Crown Court|Supreme Court|Court of Appeal|Magistrates'?\s+Court|Employment Tribunal|Tribunal))\b`)
	orgSuffixRe   = regexp.MustCompile(`\b([A-Z][A-Za-z0-9&\-']*(?:\s+[A-Z][A-Za-z0-9&\-']*){0,4}\s+(?:Ltd|Limited|LLC|LLP|PLC|Inc|Corp|Corporation|Holdings|Group|Partners|Associates)\b\.?)`)
	statuteRe     = regexp.MustCompile(`\b((?:[A-Z][a-z]+\s+){1,4}Act\s+\d{4})\b`)
	citationRe    = regexp.MustCompile(`(\[\d{4}\]\s+[A-Z]{2,10}(?:\s+(?:Civ|Crim|Ch|QB|KB|Fam|Admin))?\s+\d+)`)
	caseNumberRe  = regexp.MustCompile(`\b([A-Z]{2,4}-\d{4}-\d{3,6})\b`)
	exhibitRe     = regexp.MustCompile(`\b(Exhibit\s+[A-Z]{1,3}\d{0,3})\b`)
	docKindRe     = regexp.MustCompile(`(?i)\b(?:the|this|a)\s+(agreement|contract|deed|will|affidavit|lease|invoice|memorandum|witness statement|statement of claim|defence|transcript)\b`)
	principleRe   = regexp.MustCompile(`(?i)\b(estoppel|duty of care|res judicata|habeas corpus|force majeure|caveat emptor|ultra vires|bona fide|prima facie|burden of proof|balance of probabilities|beyond reasonable doubt|natural justice|vicarious liability|strict liability)\b`)
	conceptRe     = regexp.MustCompile(`(?i)\b(negligence|liability|breach of contract|breach of duty|damages|jurisdiction|consideration|indemnity|warranty|injunction|arbitration|mediation|settlement|disclosure|privilege|without prejudice|misrepresentation|defamation|nuisance)\b`)
	dateNumericRe = regexp.MustCompile(`\b(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})\b`)
	dateDMYRe     = regexp.MustCompile(`\b(\d{1,2}(?:st|nd|rd|th)?\s+(?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{4})\b`)
	dateMDYRe     = regexp.MustCompile(`\b((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4})\b`)
	amountSymRe   = regexp.MustCompile(`([£$€]\s?\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?(?:\s?(?:million|billion|thousand|bn|[mk]))?)`)
	amountCodeRe  = regexp.MustCompile(`\b((?:GBP|USD|EUR)\s?\d[\d,]*(?:\.\d{1,2})?)\b`)
	amountWordsRe = regexp.MustCompile(`\b(\d[\d,]*(?:\.\d{1,2})?\s(?:pounds|dollars|euros))\b`)
	locSuffixRe   = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\s+(?:Street|Road|Avenue|Lane|Square|Gardens|Chambers|House|Park))\b`)
	locPrepRe     = regexp.MustCompile(`\b(?:at|in|near)\s+((?:\d+\s+)?[A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\b`)
)

var locationStopWords = mapset.NewSet(
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"mr", "mrs", "ms", "miss", "dr", "prof", "justice", "judge", "sir", "dame", "lord", "lady",
	"the", "a", "exhibit", "court", "he", "she", "they", "this", "that",
)

func rejectNonLocation(name string) bool {
	first := strings.ToLower(strings.Fields(name)[0])
	return locationStopWords.Contains(first)
}

// DefaultMatchers returns the matcher strategies in evaluation order.
// The order, patterns and confidences are fixed so extraction over the
// same text always yields the same entities.
func DefaultMatchers() []Matcher {
	return []Matcher{
		{Name: "person_title", Type: EntityPerson, Confidence: 0.9, pattern: personTitleRe, group: 1},
		{Name: "person_role", Type: EntityPerson, Confidence: 0.85, pattern: personRoleRe, group: 1},
		{Name: "court_name", Type: EntityOrganization, Confidence: 0.95, pattern: courtNameRe, group: 1},
		{Name: "org_suffix", Type: EntityOrganization, Confidence: 0.9, pattern: orgSuffixRe, group: 1},
		{Name: "statute", Type: EntityDocument, Confidence: 0.9, pattern: statuteRe, group: 1},
		{Name: "case_citation", Type: EntityDocument, Confidence: 0.9, pattern: citationRe, group: 1},
		{Name: "case_number", Type: EntityDocument, Confidence: 0.8, pattern: caseNumberRe, group: 1},
		{Name: "exhibit", Type: EntityDocument, Confidence: 0.9, pattern: exhibitRe, group: 1},
		{Name: "document_kind", Type: EntityDocument, Confidence: 0.75, pattern: docKindRe, group: 1, normalize: strings.ToLower},
		{Name: "legal_principle", Type: EntityLegalPrinciple, Confidence: 0.85, pattern: principleRe, group: 1, normalize: strings.ToLower},
		{Name: "legal_concept", Type: EntityConcept, Confidence: 0.8, pattern: conceptRe, group: 1, normalize: strings.ToLower},
		{Name: "date_numeric", Type: EntityDate, Confidence: 0.95, pattern: dateNumericRe, group: 1},
		{Name: "date_written", Type: EntityDate, Confidence: 0.95, pattern: dateDMYRe, group: 1},
		{Name: "date_written_us", Type: EntityDate, Confidence: 0.95, pattern: dateMDYRe, group: 1},
		{Name: "amount_symbol", Type: EntityAmount, Confidence: 0.95, pattern: amountSymRe, group: 1},
		{Name: "amount_code", Type: EntityAmount, Confidence: 0.9, pattern: amountCodeRe, group: 1},
		{Name: "amount_words", Type: EntityAmount, Confidence: 0.85, pattern: amountWordsRe, group: 1},
		{Name: "location_suffix", Type: EntityLocation, Confidence: 0.8, pattern: locSuffixRe, group: 1},
		{Name: "location_preposition", Type: EntityLocation, Confidence: 0.7, pattern: locPrepRe, group: 1, reject: rejectNonLocation},
	}
}

// importanceByType seeds the importance score an entity starts with.
// People and organisations anchor a case, dates and amounts trail.
var importanceByType = map[EntityType]float64{
	EntityPerson:         0.8,
	EntityOrganization:   0.75,
	EntityLegalPrinciple: 0.7,
	EntityDocument:       0.65,
	EntityConcept:        0.55,
	EntityLocation:       0.5,
	EntityAmount:         0.45,
	EntityDate:           0.4,
}

// BaseImportance returns the starting importance for an entity type
func BaseImportance(t EntityType) float64 {
	if v, ok := importanceByType[t]; ok {
		return v
	}
	return 0.5
}
