package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMask_TCKN(t *testing.T) {
	m := NewMasker()

	res := m.Mask("My identity number is 12345678901 and I need help")
	assert.Equal(t, "My identity number is [MASKED_TCKN] and I need help", res.MaskedText)
	assert.Contains(t, res.MaskedEntities, EntityTCKN)
}

func TestMask_IBAN(t *testing.T) {
	m := NewMasker()

	res := m.Mask("Transfer to TR33 0006 1005 1978 6457 8413 26 failed")
	assert.Equal(t, "Transfer to [MASKED_IBAN] failed", res.MaskedText)
	assert.Contains(t, res.MaskedEntities, EntityIBAN)
	assert.NotContains(t, res.MaskedEntities, EntityTCKN, "IBAN digits must not double-match as TCKN")
}

func TestMask_CreditCard(t *testing.T) {
	m := NewMasker()

	tests := []string{
		"card 4111 1111 1111 1111 was charged",
		"card 4111-1111-1111-1111 was charged",
		"card 4111111111111111 was charged",
	}
	for _, text := range tests {
		res := m.Mask(text)
		assert.Equal(t, "card [MASKED_CC] was charged", res.MaskedText)
		assert.Equal(t, []string{EntityCreditCard}, res.MaskedEntities)
	}
}

func TestMask_Email(t *testing.T) {
	m := NewMasker()

	res := m.Mask("Reach me at ayse.yilmaz@example.com please")
	assert.Equal(t, "Reach me at [MASKED_EMAIL] please", res.MaskedText)
	assert.Equal(t, []string{EntityEmail}, res.MaskedEntities)
}

func TestMask_Phone(t *testing.T) {
	m := NewMasker()

	tests := []string{
		"call 0532 123 45 67 now",
		"call +90 532 123 45 67 now",
		"call 05321234567 now",
	}
	for _, text := range tests {
		res := m.Mask(text)
		assert.Equal(t, "call [MASKED_PHONE] now", res.MaskedText, "input: %s", text)
		assert.Equal(t, []string{EntityPhone}, res.MaskedEntities)
	}
}

func TestMask_MultipleEntities(t *testing.T) {
	m := NewMasker()

	res := m.Mask("TCKN 12345678901, email a@b.co, second id 98765432109")
	assert.Equal(t, "TCKN [MASKED_TCKN], email [MASKED_EMAIL], second id [MASKED_TCKN]", res.MaskedText)
	assert.Len(t, res.MaskedEntities, 3)
}

func TestMask_NoPII(t *testing.T) {
	m := NewMasker()

	res := m.Mask("The mobile app keeps crashing on login")
	assert.Equal(t, "The mobile app keeps crashing on login", res.MaskedText)
	assert.Empty(t, res.MaskedEntities)
	assert.NotNil(t, res.MaskedEntities, "must serialize as [] not null")
}

func TestMask_PreservesOriginal(t *testing.T) {
	m := NewMasker()

	res := m.Mask("id 12345678901")
	assert.Equal(t, "id 12345678901", res.OriginalText)
	assert.Equal(t, "id [MASKED_TCKN]", res.MaskedText)
}

func TestContainsPII(t *testing.T) {
	m := NewMasker()

	assert.True(t, m.ContainsPII("leaked id 12345678901"))
	assert.True(t, m.ContainsPII("write to x@y.org"))
	assert.False(t, m.ContainsPII("no identifiers here"))
	assert.False(t, m.ContainsPII("already [MASKED_TCKN] masked"))
}
