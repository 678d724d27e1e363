// Package redact strips personally identifying spans from complaint
// text before it reaches logging, classification, retrieval, or the
// LLM. Recognizers cover the identifiers a bank support desk sees in
// practice: national identity numbers (TCKN), IBANs, phone numbers,
// email addresses, and card numbers.
package redact

import "regexp"

// Entity type labels reported in MaskResult.MaskedEntities.
const (
	EntityTCKN       = "TCKN"
	EntityIBAN       = "TR_IBAN"
	EntityPhone      = "PHONE_NUMBER"
	EntityEmail      = "EMAIL_ADDRESS"
	EntityCreditCard = "CREDIT_CARD"
)

// recognizer pairs a pattern with its replacement token.
type recognizer struct {
	entity      string
	pattern     *regexp.Regexp
	replacement string
}

// Recognizer order matters: longer, more specific spans (IBAN, card
// numbers) are masked before bare digit runs so a TCKN pattern never
// fires inside an already-recognized identifier.
var recognizers = []recognizer{
	{
		entity:      EntityIBAN,
		pattern:     regexp.MustCompile(`\bTR\d{2}[ ]?(\d{4}[ ]?){5}\d{2}\b`),
		replacement: "[MASKED_IBAN]",
	},
	{
		entity:      EntityCreditCard,
		pattern:     regexp.MustCompile(`\b(?:\d{4}[ -]){3}\d{4}\b|\b\d{16}\b`),
		replacement: "[MASKED_CC]",
	},
	{
		entity:      EntityEmail,
		pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		replacement: "[MASKED_EMAIL]",
	},
	{
		entity:      EntityPhone,
		pattern:     regexp.MustCompile(`(\+90[ ]?|0)5\d{2}[ -]?\d{3}[ -]?\d{2}[ -]?\d{2}\b`),
		replacement: "[MASKED_PHONE]",
	},
	{
		entity:      EntityTCKN,
		pattern:     regexp.MustCompile(`\b[1-9]\d{10}\b`),
		replacement: "[MASKED_TCKN]",
	},
}

// MaskResult holds a redaction outcome. OriginalText is retained so
// the debug-mode mask endpoint can echo it; it must never be logged.
type MaskResult struct {
	OriginalText   string   `json:"original_text,omitempty"`
	MaskedText     string   `json:"masked_text"`
	MaskedEntities []string `json:"masked_entities"`
}

// Masker redacts PII spans from free text.
type Masker struct{}

// NewMasker returns a Masker with the default recognizer set.
func NewMasker() *Masker {
	return &Masker{}
}

// Mask replaces every recognized PII span with its entity token and
// reports which entity types were found, one label per occurrence in
// recognizer order.
func (m *Masker) Mask(text string) MaskResult {
	masked := text
	var entities []string
	for _, rec := range recognizers {
		matches := rec.pattern.FindAllString(masked, -1)
		for range matches {
			entities = append(entities, rec.entity)
		}
		if len(matches) > 0 {
			masked = rec.pattern.ReplaceAllString(masked, rec.replacement)
		}
	}
	if entities == nil {
		entities = []string{}
	}
	return MaskResult{
		OriginalText:   text,
		MaskedText:     masked,
		MaskedEntities: entities,
	}
}

// ContainsPII reports whether the text still holds any recognizable
// PII span. The drafter uses this to re-scan LLM output for leaks.
func (m *Masker) ContainsPII(text string) bool {
	for _, rec := range recognizers {
		if rec.pattern.MatchString(text) {
			return true
		}
	}
	return false
}
