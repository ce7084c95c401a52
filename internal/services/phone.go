package services

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// PhoneValidator reports whether free-text input is a usable phone
// number. The engine re-prompts on anything invalid instead of
// failing the flow.
type PhoneValidator interface {
	IsValid(text, region string) bool
}

// countryCodes maps region hints to dialing prefixes for numbers
// typed in local form.
var countryCodes = map[string]string{
	"IN": "91",
	"US": "1",
	"GB": "44",
}

// NormalizePhone strips separators and applies the region's country
// code when the number was typed in local form.
func NormalizePhone(text, region string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(text))

	if strings.HasPrefix(cleaned, "+") {
		return cleaned
	}
	if code, ok := countryCodes[region]; ok {
		return "+" + code + strings.TrimPrefix(cleaned, code)
	}
	return "+" + cleaned
}

// E164Validator validates phone numbers against the E.164 format
// after region normalization.
type E164Validator struct {
	validate *validator.Validate
}

// NewE164Validator creates the default phone validator
func NewE164Validator() *E164Validator {
	return &E164Validator{validate: validator.New()}
}

func (v *E164Validator) IsValid(text, region string) bool {
	normalized := NormalizePhone(text, region)

	// The e164 tag allows very short numbers; subscriber numbers are
	// at least 10 digits everywhere this service operates.
	digits := strings.TrimPrefix(normalized, "+")
	if len(digits) < 10 || len(digits) > 15 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}

	return v.validate.Var(normalized, "e164") == nil
}
