package normalize

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// stopwords are dropped from normalized name tokens before any similarity
// scoring. Edition markers are included so "Definitive Edition" variants
// collapse onto the base title.
var stopwords = map[string]struct{}{
	"the":        {},
	"a":          {},
	"an":         {},
	"and":        {},
	"or":         {},
	"of":         {},
	"for":        {},
	"edition":    {},
	"definitive": {},
	"remastered": {},
	"hd":         {},
}

// diacriticStripper removes combining marks after NFKD decomposition and
// recomposes with NFC so Hangul syllables survive the round trip.
var diacriticStripper = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// StripDiacritics folds width variants and removes combining marks:
// "Pokémon" becomes "Pokemon". Returns the input unchanged on transform
// failure.
func StripDiacritics(s string) string {
	if folded, _, err := transform.String(width.Fold, s); err == nil {
		s = folded
	}
	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		return stripped
	}
	return s
}

// NormalizedName is the tokenized view of a title used for similarity
// scoring. Tokens are lowercase, diacritic-free, stopword-free, with
// canonical Roman numerals converted to digits.
type NormalizedName struct {
	Tokens    []string
	Joined    string // tokens joined by single spaces
	Compact   string // tokens joined with no separator
	LooseSlug string // tokens joined by '-'
}

// NormalizeName runs the full name pipeline: diacritics, lowercasing,
// tokenization on non-alphanumerics, stopword removal, Roman conversion.
func NormalizeName(s string) NormalizedName {
	raw := Tokenize(s)

	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		if _, drop := stopwords[tok]; drop {
			continue
		}
		if n, ok := RomanToArabic(tok); ok {
			tok = strconv.Itoa(n)
		}
		tokens = append(tokens, tok)
	}

	return NormalizedName{
		Tokens:    tokens,
		Joined:    strings.Join(tokens, " "),
		Compact:   strings.Join(tokens, ""),
		LooseSlug: strings.Join(tokens, "-"),
	}
}

// Tokenize lowercases s, strips diacritics and splits on every
// non-alphanumeric rune. No stopword or Roman handling.
func Tokenize(s string) []string {
	s = strings.ToLower(StripDiacritics(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
