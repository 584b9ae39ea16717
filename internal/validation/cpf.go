// Package validation holds the pure input checks that gate every network
// call: the CPF check-digit algorithm and a permissive email pattern.
package validation

import (
	"regexp"
	"strings"
)

var (
	nonDigits = regexp.MustCompile(`\D`)

	// Deliberately permissive: one @, something before it, a dot somewhere in
	// the domain. Full RFC 5322 compliance is not the goal here.
	emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// SanitizeCPF strips every non-digit character from a CPF
func SanitizeCPF(raw string) string {
	return nonDigits.ReplaceAllString(raw, "")
}

// MaskCPF formats a CPF as XXX.XXX.XXX-XX. Shorter inputs are masked as far
// as their digits go.
func MaskCPF(raw string) string {
	digits := SanitizeCPF(raw)
	if len(digits) > 11 {
		digits = digits[:11]
	}
	var b strings.Builder
	for i, r := range digits {
		switch i {
		case 3, 6:
			b.WriteByte('.')
		case 9:
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsValidCPF validates a Brazilian CPF using the official mod-11 algorithm.
// Formatting characters are ignored; the number must have exactly 11 digits,
// must not be a single repeated digit, and both check digits must match.
func IsValidCPF(raw string) bool {
	cpf := SanitizeCPF(raw)
	if len(cpf) != 11 {
		return false
	}
	if allSameDigit(cpf) {
		return false
	}

	// First check digit: weights 10..2 over the first 9 digits
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(cpf[i]-'0') * (10 - i)
	}
	if checkDigit(sum) != int(cpf[9]-'0') {
		return false
	}

	// Second check digit: weights 11..2 over the first 10 digits
	sum = 0
	for i := 0; i < 10; i++ {
		sum += int(cpf[i]-'0') * (11 - i)
	}
	return checkDigit(sum) == int(cpf[10]-'0')
}

// checkDigit maps a weighted sum to its mod-11 check digit: remainders of
// 10 and 11 collapse to 0
func checkDigit(sum int) int {
	remainder := 11 - (sum % 11)
	if remainder >= 10 {
		return 0
	}
	return remainder
}

func allSameDigit(cpf string) bool {
	for i := 1; i < len(cpf); i++ {
		if cpf[i] != cpf[0] {
			return false
		}
	}
	return true
}

// IsValidEmail reports whether raw looks like an email address
func IsValidEmail(raw string) bool {
	return emailPattern.MatchString(raw)
}
