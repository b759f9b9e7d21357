package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestArabicToRoman(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "I"},
		{2, "II"},
		{3, "III"},
		{4, "IV"},
		{5, "V"},
		{9, "IX"},
		{14, "XIV"},
		{40, "XL"},
		{90, "XC"},
		{400, "CD"},
		{900, "CM"},
		{1000, "M"},
		{0, ""},
		{1001, ""},
		{-5, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ArabicToRoman(tt.n), "ArabicToRoman(%d)", tt.n)
	}
}

func TestRomanToArabic(t *testing.T) {
	tests := []struct {
		s    string
		want int
		ok   bool
	}{
		{"I", 1, true},
		{"ii", 2, true},
		{"IV", 4, true},
		{"ix", 9, true},
		{"XIV", 14, true},
		{"MCMXCIV", 0, false}, // 1994 is out of the 1..1000 range
		{"M", 1000, true},
		{"IIII", 0, false}, // non-canonical
		{"VX", 0, false},
		{"IXI", 0, false},
		{"MM", 0, false},
		{"", 0, false},
		{"mix", 1009, false}, // exceeds M
		{"abc", 0, false},
	}

	for _, tt := range tests {
		got, ok := RomanToArabic(tt.s)
		assert.Equal(t, tt.ok, ok, "RomanToArabic(%q) ok", tt.s)
		if tt.ok {
			assert.Equal(t, tt.want, got, "RomanToArabic(%q)", tt.s)
		}
	}
}

func TestRomanRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 1000).Draw(t, "n")
		roman := ArabicToRoman(n)
		back, ok := RomanToArabic(roman)
		if !ok {
			t.Fatalf("canonical form %q of %d rejected", roman, n)
		}
		if back != n {
			t.Fatalf("round trip %d -> %q -> %d", n, roman, back)
		}
	})
}

func TestIsRomanNumeral(t *testing.T) {
	assert.True(t, IsRomanNumeral("III"))
	assert.True(t, IsRomanNumeral("xiv"))
	assert.False(t, IsRomanNumeral("IIII"))
	assert.False(t, IsRomanNumeral("hd"))
}
