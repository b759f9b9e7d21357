package normalize

import "strings"

// romanValues are the subtractive-notation building blocks, largest first.
var romanValues = []struct {
	value  int
	symbol string
}{
	{1000, "M"},
	{900, "CM"},
	{500, "D"},
	{400, "CD"},
	{100, "C"},
	{90, "XC"},
	{50, "L"},
	{40, "XL"},
	{10, "X"},
	{9, "IX"},
	{5, "V"},
	{4, "IV"},
	{1, "I"},
}

// ArabicToRoman renders n in canonical Roman form. Returns "" for values
// outside [1, 1000].
func ArabicToRoman(n int) string {
	if n < 1 || n > 1000 {
		return ""
	}
	var b strings.Builder
	for _, rv := range romanValues {
		for n >= rv.value {
			b.WriteString(rv.symbol)
			n -= rv.value
		}
	}
	return b.String()
}

// RomanToArabic parses s as a canonical Roman numeral in [1, 1000].
// Canonical means the value renders back to exactly s: "IIII" and "VIIII"
// parse additively but fail the round-trip, so they are rejected.
func RomanToArabic(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	upper := strings.ToUpper(s)
	total := 0
	i := 0
	for i < len(upper) {
		matched := false
		for _, rv := range romanValues {
			if strings.HasPrefix(upper[i:], rv.symbol) {
				total += rv.value
				i += len(rv.symbol)
				matched = true
				break
			}
		}
		if !matched {
			return 0, false
		}
	}
	if total < 1 || total > 1000 {
		return 0, false
	}
	if ArabicToRoman(total) != upper {
		return 0, false
	}
	return total, true
}

// IsRomanNumeral reports whether s is a canonical Roman numeral.
func IsRomanNumeral(s string) bool {
	_, ok := RomanToArabic(s)
	return ok
}
