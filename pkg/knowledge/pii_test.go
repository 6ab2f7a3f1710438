package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findingTypes(findings []PIIFinding) []PIIType {
	types := make([]PIIType, 0, len(findings))
	for _, f := range findings {
		types = append(types, f.Type)
	}
	return types
}

func TestPIIDetectorDetect(t *testing.T) {
	detector := NewPIIDetector()

	t.Run("email and phone ordered by position", func(t *testing.T) {
		findings := detector.Detect("Email john@firm.com or call 555-123-4567.")

		require.Len(t, findings, 2)
		assert.Equal(t, PIIEmail, findings[0].Type)
		assert.Equal(t, 6, findings[0].Start)
		assert.Equal(t, 19, findings[0].End)
		assert.Equal(t, 0.95, findings[0].Score)
		assert.Equal(t, PIIPhone, findings[1].Type)
		assert.Equal(t, 28, findings[1].Start)
		assert.Equal(t, 40, findings[1].End)
	})

	t.Run("luhn accepts a real card and rejects a near miss", func(t *testing.T) {
		valid := detector.Detect("Card 4111 1111 1111 1111.")
		assert.Contains(t, findingTypes(valid), PIICreditCard)

		invalid := detector.Detect("Card 4111 1111 1111 1112.")
		assert.NotContains(t, findingTypes(invalid), PIICreditCard)
		assert.Contains(t, findingTypes(invalid), PIIPhone)
	})

	t.Run("nhs number checksum", func(t *testing.T) {
		valid := detector.Detect("NHS number 943 476 5919 was disclosed.")
		assert.Contains(t, findingTypes(valid), PIIUKNHS)

		invalid := detector.Detect("NHS number 943 476 5918 was disclosed.")
		assert.NotContains(t, findingTypes(invalid), PIIUKNHS)
		assert.Contains(t, findingTypes(invalid), PIIPhone)
	})

	t.Run("iban checksum", func(t *testing.T) {
		valid := detector.Detect("Transfer to GB82WEST12345698765432 today.")
		assert.Contains(t, findingTypes(valid), PIIIBAN)

		invalid := detector.Detect("Transfer to GB82WEST12345698765433 today.")
		assert.NotContains(t, findingTypes(invalid), PIIIBAN)
	})

	t.Run("national insurance number", func(t *testing.T) {
		findings := detector.Detect("NINO AB 12 34 56 C on record.")

		require.Len(t, findings, 1)
		assert.Equal(t, PIIUKNINO, findings[0].Type)
		assert.Equal(t, 5, findings[0].Start)
		assert.Equal(t, 18, findings[0].End)
	})

	t.Run("social security number", func(t *testing.T) {
		findings := detector.Detect("SSN 123-45-6789 filed.")

		require.Len(t, findings, 1)
		assert.Equal(t, PIIUSSSN, findings[0].Type)
	})

	t.Run("ip address validation", func(t *testing.T) {
		valid := detector.Detect("Server at 192.168.1.10 responded.")
		require.Len(t, valid, 1)
		assert.Equal(t, PIIIPAddress, valid[0].Type)

		assert.Empty(t, detector.Detect("Server at 999.168.1.10 responded."))
		assert.Empty(t, detector.Detect("Server at 192.068.1.10 responded."))
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Nil(t, detector.Detect(""))
	})
}

func TestPIIDetectorAnonymize(t *testing.T) {
	detector := NewPIIDetector()

	redact := func(text string) string {
		return detector.Anonymize(text, detector.Detect(text))
	}

	t.Run("replaces right to left keeping surrounding text", func(t *testing.T) {
		assert.Equal(t, "Email <EMAIL> or call <PHONE>.", redact("Email john@firm.com or call 555-123-4567."))
	})

	t.Run("typed tags for well known categories", func(t *testing.T) {
		assert.Equal(t, "call <PHONE> now", redact("call 555-123-4567 now"))
		assert.Equal(t, "Card <CARD>.", redact("Card 4111 1111 1111 1111."))
	})

	t.Run("generic tag for everything else", func(t *testing.T) {
		assert.Equal(t, "NHS number <REDACTED> was disclosed.", redact("NHS number 943 476 5919 was disclosed."))
		assert.Equal(t, "Transfer to <REDACTED> today.", redact("Transfer to GB82WEST12345698765432 today."))
		assert.Equal(t, "NINO <REDACTED> on record.", redact("NINO AB 12 34 56 C on record."))
		assert.Equal(t, "SSN <REDACTED> filed.", redact("SSN 123-45-6789 filed."))
		assert.Equal(t, "Server at <REDACTED> responded.", redact("Server at 192.168.1.10 responded."))
	})

	t.Run("overlaps collapse into the earliest longest span", func(t *testing.T) {
		text := "abcdefghij"
		findings := []PIIFinding{
			{Type: PIIPhone, Start: 2, End: 6, Score: 0.7},
			{Type: PIIEmail, Start: 2, End: 8, Score: 0.95},
			{Type: PIIUSSSN, Start: 7, End: 9, Score: 0.85},
		}

		assert.Equal(t, "ab<EMAIL>ij", detector.Anonymize(text, findings))
	})

	t.Run("out of range findings are ignored", func(t *testing.T) {
		text := "short"
		findings := []PIIFinding{
			{Type: PIIEmail, Start: -1, End: 3, Score: 0.95},
			{Type: PIIEmail, Start: 2, End: 99, Score: 0.95},
		}

		assert.Equal(t, "short", detector.Anonymize(text, findings))
	})

	t.Run("no findings returns the text unchanged", func(t *testing.T) {
		assert.Equal(t, "nothing here", detector.Anonymize("nothing here", nil))
	})
}

func TestChecksumValidators(t *testing.T) {
	t.Run("luhn", func(t *testing.T) {
		tests := []struct {
			value string
			want  bool
		}{
			{"4111 1111 1111 1111", true},
			{"5500 0000 0000 0004", true},
			{"4111 1111 1111 1112", false},
			{"1234", false},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.want, luhnValid(tt.value), tt.value)
		}
	})

	t.Run("nhs", func(t *testing.T) {
		assert.True(t, nhsValid("943 476 5919"))
		assert.False(t, nhsValid("943 476 5918"))
		assert.False(t, nhsValid("12345"))
	})

	t.Run("iban", func(t *testing.T) {
		assert.True(t, ibanValid("GB82WEST12345698765432"))
		assert.False(t, ibanValid("GB82WEST12345698765433"))
		assert.False(t, ibanValid("GB82"))
	})

	t.Run("ip", func(t *testing.T) {
		assert.True(t, ipValid("192.168.1.10"))
		assert.True(t, ipValid("0.0.0.0"))
		assert.False(t, ipValid("999.1.1.1"))
		assert.False(t, ipValid("192.068.1.1"))
	})

	t.Run("phone length", func(t *testing.T) {
		assert.True(t, phoneValid("555-123-4567"))
		assert.False(t, phoneValid("12345678"))
	})
}
