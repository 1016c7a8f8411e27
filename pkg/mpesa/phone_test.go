package mpesa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	valid := map[string]string{
		"0712345678":      "254712345678",
		"+254712345678":   "254712345678",
		"254712345678":    "254712345678",
		"712345678":       "254712345678",
		"254 712 345 678": "254712345678",
		" 0110-123-456 ":  "254110123456",
	}
	for in, want := range valid {
		got, err := NormalizePhone(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNormalizePhone_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "07123", "25571234567", "0712345678901", "+1 415 555 0100"} {
		_, err := NormalizePhone(in)
		assert.ErrorIs(t, err, ErrInvalidPhoneNumber, in)
	}
}
