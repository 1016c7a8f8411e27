package mpesa

import (
	"errors"
	"regexp"
	"strings"
)

// CountryCode is the Kenyan calling code every payer number is normalized to.
const CountryCode = "254"

var ErrInvalidPhoneNumber = errors.New("invalid phone number")

var canonicalPhone = regexp.MustCompile(`^254\d{9}$`)

// NormalizePhone turns 0712345678, +254712345678, 254 712 345 678 or 712345678
// into 254712345678.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	switch {
	case strings.HasPrefix(digits, "0"):
		digits = CountryCode + digits[1:]
	case len(digits) == 9:
		digits = CountryCode + digits
	}
	if !canonicalPhone.MatchString(digits) {
		return "", ErrInvalidPhoneNumber
	}
	return digits, nil
}
