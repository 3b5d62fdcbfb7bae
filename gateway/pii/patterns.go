package pii

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// Type is the closed set of PII entity types.
type Type string

const (
	TypeEmail          Type = "email"
	TypePhone          Type = "phone"
	TypeSSN            Type = "ssn"
	TypeCreditCard     Type = "credit_card"
	TypeIPAddress      Type = "ip_address"
	TypeName           Type = "name"
	TypeAddress        Type = "address"
	TypeDateOfBirth    Type = "date_of_birth"
	TypePassportNumber Type = "passport_number"
	TypeDriverLicense  Type = "driver_license"
	TypeBankAccount    Type = "bank_account"
	TypeMedicalRecord  Type = "medical_record"
)

// AllTypes returns the closed type set in declaration order.
func AllTypes() []Type {
	return []Type{
		TypeEmail, TypePhone, TypeSSN, TypeCreditCard, TypeIPAddress,
		TypeName, TypeAddress, TypeDateOfBirth, TypePassportNumber,
		TypeDriverLicense, TypeBankAccount, TypeMedicalRecord,
	}
}

// ValidType reports whether t is in the closed type set.
func ValidType(t Type) bool {
	switch t {
	case TypeEmail, TypePhone, TypeSSN, TypeCreditCard, TypeIPAddress,
		TypeName, TypeAddress, TypeDateOfBirth, TypePassportNumber,
		TypeDriverLicense, TypeBankAccount, TypeMedicalRecord:
		return true
	default:
		return false
	}
}

// Pattern is one compiled detection pattern. The optional validator
// confirms a raw regex hit and refines the confidence.
type Pattern struct {
	Type       Type
	Regex      *regexp.Regexp
	Confidence float64

	// Validator returns (valid, confidence). A nil validator accepts
	// every regex hit at the pattern's base confidence.
	Validator func(match string) (bool, float64)
}

// defaultPatterns returns the built-in PII catalogue.
func defaultPatterns() []*Pattern {
	return []*Pattern{
		{
			Type:       TypeEmail,
			Regex:      regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`),
			Confidence: 0.95,
		},
		{
			Type:       TypePhone,
			Regex:      regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`),
			Confidence: 0.90,
			Validator:  validatePhone,
		},
		{
			Type:       TypeSSN,
			Regex:      regexp.MustCompile(`\b\d{3}[- ]?\d{2}[- ]?\d{4}\b`),
			Confidence: 0.98,
			Validator:  validateSSN,
		},
		{
			Type:       TypeCreditCard,
			Regex:      regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`),
			Confidence: 0.85,
			Validator:  validateCreditCard,
		},
		{
			Type:       TypeIPAddress,
			Regex:      regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
			Confidence: 0.80,
			Validator:  validateIPv4,
		},
	}
}

// digitsOnly strips everything but digits.
func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// validateSSN rejects structurally impossible US SSNs: area 000/666/9xx,
// group 00, serial 0000.
func validateSSN(match string) (bool, float64) {
	clean := digitsOnly(match)
	if len(clean) != 9 {
		return false, 0
	}

	area, _ := strconv.Atoi(clean[0:3])
	group, _ := strconv.Atoi(clean[3:5])
	serial, _ := strconv.Atoi(clean[5:9])

	if area == 0 || area == 666 || area >= 900 {
		return false, 0
	}
	if group == 0 || serial == 0 {
		return false, 0
	}
	return true, 0.98
}

// validateCreditCard runs the Luhn checksum over the digits.
func validateCreditCard(match string) (bool, float64) {
	clean := digitsOnly(match)
	if len(clean) < 13 || len(clean) > 19 {
		return false, 0
	}
	if !luhnCheck(clean) {
		return false, 0
	}
	return true, 0.85
}

// luhnCheck performs the Luhn algorithm check.
func luhnCheck(number string) bool {
	sum := 0
	alternate := false

	for i := len(number) - 1; i >= 0; i-- {
		digit := int(number[i] - '0')
		if alternate {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		alternate = !alternate
	}
	return sum%10 == 0
}

// validateIPv4 confirms each dotted-quad octet is in range.
func validateIPv4(match string) (bool, float64) {
	parts := strings.Split(match, ".")
	if len(parts) != 4 {
		return false, 0
	}
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n > 255 {
			return false, 0
		}
		if len(p) > 1 && p[0] == '0' {
			return false, 0
		}
	}
	return true, 0.80
}

// validatePhone requires ten digits (optionally with a US country
// code) so bare seven-digit runs don't fire.
func validatePhone(match string) (bool, float64) {
	clean := digitsOnly(match)
	switch len(clean) {
	case 10:
		return true, 0.90
	case 11:
		return clean[0] == '1', 0.90
	default:
		return false, 0
	}
}
