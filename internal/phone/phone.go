// Package phone canonicalizes Turkish phone numbers to E.164 (+90XXXXXXXXXX).
package phone

import (
	"errors"
	"strings"
)

var ErrInvalidPhone = errors.New("geçersiz telefon numarası")

const countryPrefix = "+90"

// Normalize accepts the usual ways people type a Turkish number
// ("0532 123 45 67", "+90 (532) 123-4567", "00905321234567", "5321234567")
// and returns "+905321234567".
func Normalize(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 14 && strings.HasPrefix(digits, "0090"):
		digits = digits[4:]
	case len(digits) == 12 && strings.HasPrefix(digits, "90"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}

	if len(digits) != 10 {
		return "", ErrInvalidPhone
	}
	// alan kodu 2xx/3xx/4xx sabit hat, 5xx mobil
	switch digits[0] {
	case '2', '3', '4', '5':
	default:
		return "", ErrInvalidPhone
	}

	return countryPrefix + digits, nil
}

// NormalizeOptional keeps an empty input empty.
func NormalizeOptional(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return Normalize(raw)
}

func IsMobile(normalized string) bool {
	return strings.HasPrefix(normalized, countryPrefix+"5")
}

// Format renders a normalized number as "0 (532) 123 45 67". Other input is returned unchanged.
func Format(normalized string) string {
	if len(normalized) != 13 || !strings.HasPrefix(normalized, countryPrefix) {
		return normalized
	}
	n := normalized[3:]
	return "0 (" + n[0:3] + ") " + n[3:6] + " " + n[6:8] + " " + n[8:10]
}
