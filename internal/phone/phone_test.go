package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	valid := map[string]string{
		"05321234567":          "+905321234567",
		"0532 123 45 67":       "+905321234567",
		"5321234567":           "+905321234567",
		"+90 532 123 45 67":    "+905321234567",
		"+90 (532) 123-45-67":  "+905321234567",
		"905321234567":         "+905321234567",
		"00905321234567":       "+905321234567",
		"0212 555 44 33":       "+902125554433",
		"(0312) 444 1 444":     "+903124441444",
		" 0 5 3 2 1 2 3 4 5 6 7": "+905321234567",
	}
	for in, want := range valid {
		t.Run(in, func(t *testing.T) {
			got, err := Normalize(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	invalid := []string{
		"",
		"abc",
		"12345",
		"1321234567",      // 1 ile başlayan alan kodu yok
		"0632123456789",   // fazla hane
		"+1 555 123 4567", // yabancı numara
		"05321234",
	}
	for _, in := range invalid {
		t.Run("invalid "+in, func(t *testing.T) {
			_, err := Normalize(in)
			assert.ErrorIs(t, err, ErrInvalidPhone)
		})
	}
}

func TestNormalizeOptional(t *testing.T) {
	got, err := NormalizeOptional("   ")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NormalizeOptional("12")
	assert.ErrorIs(t, err, ErrInvalidPhone)
}

func TestIsMobile(t *testing.T) {
	assert.True(t, IsMobile("+905321234567"))
	assert.False(t, IsMobile("+902125554433"))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0 (532) 123 45 67", Format("+905321234567"))
	assert.Equal(t, "bozuk", Format("bozuk"))
}
