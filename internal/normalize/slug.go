package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxSlugLen is the hard cap on slug length, in runes.
const MaxSlugLen = 120

// slugDecomposer strips combining marks like diacriticStripper but keeps
// the NFC recomposition step so Hangul syllables remain single runes for
// the keep-range filter below.
var slugDecomposer = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

func isHangul(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7A3
}

// Slugify derives a URL-safe slug candidate from a display name: NFKD
// decomposition, lowercase, keep [a-z0-9], Hangul syllables, whitespace
// and '-'; whitespace runs become single dashes, dash runs collapse, and
// the result is capped at MaxSlugLen runes.
//
// Slugify("Hollow Knight: Silksong") == "hollow-knight-silksong"
// Slugify("검은사막") == "검은사막"
func Slugify(s string) string {
	if decomposed, _, err := transform.String(slugDecomposer, s); err == nil {
		s = decomposed
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', isHangul(r):
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-':
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	slug := strings.Join(fields, "-")
	return TruncateSlug(slug, MaxSlugLen)
}

// TruncateSlug caps slug at limit runes, trimming any dangling dash left
// by the cut.
func TruncateSlug(slug string, limit int) string {
	r := []rune(slug)
	if len(r) <= limit {
		return slug
	}
	return strings.TrimRight(string(r[:limit]), "-")
}
