package knowledge

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// PIIType names a category of personally identifiable information
type PIIType string

const (
	PIIEmail      PIIType = "EMAIL_ADDRESS"
	PIIPhone      PIIType = "PHONE_NUMBER"
	PIICreditCard PIIType = "CREDIT_CARD"
	PIIIBAN       PIIType = "IBAN_CODE"
	PIIIPAddress  PIIType = "IP_ADDRESS"
	PIIUKNINO     PIIType = "UK_NINO"
	PIIUKNHS      PIIType = "UK_NHS"
	PIIUSSSN      PIIType = "US_SSN"
)

// PIIFinding is one detected span of personal data
type PIIFinding struct {
	Type  PIIType `json:"entity_type"`
	Start int     `json:"start"`
	End   int     `json:"end"`
	Score float64 `json:"score"`
}

type piiPattern struct {
	entity   PIIType
	score    float64
	re       *regexp.Regexp
	validate func(string) bool
}

var (
	emailRe = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phoneRe = regexp.MustCompile(`(?:\+\d{1,3}[\s\-]?)?(?:\(\d{2,5}\)[\s\-]?)?\d{3,5}[\s\-]?\d{3,4}(?:[\s\-]?\d{3,4})?`)
	cardRe  = regexp.MustCompile(`\b(?:\d[ \-]?){13,16}\b`)
	ibanRe  = regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`)
	ipRe    = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	ninoRe  = regexp.MustCompile(`\b[A-CEGHJ-PR-TW-Z]{2}\s?\d{2}\s?\d{2}\s?\d{2}\s?[A-D]\b`)
	nhsRe   = regexp.MustCompile(`\b\d{3}[ \-]?\d{3}[ \-]?\d{4}\b`)
	ssnRe   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
)

// defaultReplacements mirrors the operator table used when a caller
// does not supply one: a tag per well-known type, <REDACTED> otherwise
var defaultReplacements = map[PIIType]string{
	PIIEmail:      "<EMAIL>",
	PIIPhone:      "<PHONE>",
	PIICreditCard: "<CARD>",
}

const redactedTag = "<REDACTED>"

// PIIDetector finds personal data in text with fixed regex recognisers
// and checksum validation where the format defines one. Detection is
// deterministic and needs no external service.
type PIIDetector struct {
	patterns []piiPattern
	logger   *logrus.Logger
}

// NewPIIDetector creates a detector with the default recogniser set
func NewPIIDetector() *PIIDetector {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &PIIDetector{
		logger: logger,
		patterns: []piiPattern{
			{entity: PIIEmail, score: 0.95, re: emailRe},
			{entity: PIICreditCard, score: 0.9, re: cardRe, validate: luhnValid},
			{entity: PIIIBAN, score: 0.85, re: ibanRe, validate: ibanValid},
			{entity: PIIUKNHS, score: 0.9, re: nhsRe, validate: nhsValid},
			{entity: PIIUKNINO, score: 0.85, re: ninoRe},
			{entity: PIIUSSSN, score: 0.85, re: ssnRe},
			{entity: PIIIPAddress, score: 0.6, re: ipRe, validate: ipValid},
			{entity: PIIPhone, score: 0.7, re: phoneRe, validate: phoneValid},
		},
	}
}

// Detect returns every PII span found in the text, ordered by position.
// Overlapping findings are all reported; Anonymize resolves them.
func (d *PIIDetector) Detect(text string) []PIIFinding {
	if text == "" {
		return nil
	}

	findings := make([]PIIFinding, 0)
	for _, p := range d.patterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			value := text[loc[0]:loc[1]]
			if p.validate != nil && !p.validate(value) {
				continue
			}
			findings = append(findings, PIIFinding{
				Type:  p.entity,
				Start: loc[0],
				End:   loc[1],
				Score: p.score,
			})
		}
	}

	sortFindings(findings)

	d.logger.WithFields(logrus.Fields{
		"content_length": len(text),
		"findings_count": len(findings),
	}).Info("PII detection completed")

	return findings
}

// Anonymize replaces each finding with a tag for its type. Overlapping
// findings collapse into the earliest, longest one. Replacements run
// right to left so recorded offsets stay valid during rewriting.
func (d *PIIDetector) Anonymize(text string, findings []PIIFinding) string {
	if len(findings) == 0 {
		return text
	}

	ordered := make([]PIIFinding, len(findings))
	copy(ordered, findings)
	sortFindings(ordered)

	kept := ordered[:0]
	lastEnd := -1
	for _, f := range ordered {
		if f.Start < lastEnd || f.Start < 0 || f.End > len(text) {
			continue
		}
		kept = append(kept, f)
		lastEnd = f.End
	}

	result := text
	for i := len(kept) - 1; i >= 0; i-- {
		f := kept[i]
		tag, ok := defaultReplacements[f.Type]
		if !ok {
			tag = redactedTag
		}
		result = result[:f.Start] + tag + result[f.End:]
	}
	return result
}

// sortFindings orders by position, then span length, then score, so
// the overlap filter always keeps the same winners
func sortFindings(findings []PIIFinding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Start != findings[j].Start {
			return findings[i].Start < findings[j].Start
		}
		if findings[i].End != findings[j].End {
			return findings[i].End > findings[j].End
		}
		return findings[i].Score > findings[j].Score
	})
}

func luhnValid(value string) bool {
	digits := digitsOf(value)
	if len(digits) < 13 || len(digits) > 16 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// ibanValid runs the ISO 7064 mod-97 check over the rearranged IBAN
func ibanValid(value string) bool {
	if len(value) < 15 {
		return false
	}
	rearranged := value[4:] + value[:4]
	remainder := 0
	for _, r := range rearranged {
		var chunk int
		switch {
		case r >= '0' && r <= '9':
			chunk = int(r - '0')
			remainder = (remainder*10 + chunk) % 97
		case r >= 'A' && r <= 'Z':
			chunk = int(r-'A') + 10
			remainder = (remainder*100 + chunk) % 97
		default:
			return false
		}
	}
	return remainder == 1
}

// nhsValid applies the NHS number mod-11 check digit
func nhsValid(value string) bool {
	digits := digitsOf(value)
	if len(digits) != 10 {
		return false
	}
	sum := 0
	for i := 0; i < 9; i++ {
		sum += digits[i] * (10 - i)
	}
	check := 11 - sum%11
	if check == 11 {
		check = 0
	}
	return check != 10 && check == digits[9]
}

func ipValid(value string) bool {
	for _, part := range strings.Split(value, ".") {
		if len(part) > 1 && part[0] == '0' {
			return false
		}
		n := 0
		for _, r := range part {
			n = n*10 + int(r-'0')
		}
		if n > 255 {
			return false
		}
	}
	return true
}

func phoneValid(value string) bool {
	n := len(digitsOf(value))
	return n >= 9 && n <= 15
}

func digitsOf(value string) []int {
	digits := make([]int, 0, len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	return digits
}
