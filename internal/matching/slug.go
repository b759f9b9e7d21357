package matching

import (
	"strconv"
	"strings"

	"game-catalog-pipeline/internal/normalize"
)

// slugPairOutcome classifies the comparison of two slugs.
type slugPairOutcome int

const (
	slugNoMatch slugPairOutcome = iota
	slugExact
	slugCollision     // suffix difference judged a duplicate-prevention collision
	slugSequelConflict // suffix difference judged a different (sequel) entry
)

// maxCollisionDelta bounds the numeric-suffix difference still treated
// as a duplicate-prevention collision rather than separate entries.
const maxCollisionDelta = 3

// compareSlugs implements slug matching with sequel disambiguation.
// Equal slugs match. When the slugs differ only by a trailing numeric or
// Roman suffix, the original names decide: a sequel number token in
// either name means two different entries; no such token means one
// entry that collided with the duplicate-prevention suffix.
func compareSlugs(slugA, slugB, nameA, nameB string) slugPairOutcome {
	if slugA == "" || slugB == "" {
		return slugNoMatch
	}
	if slugA == slugB {
		return slugExact
	}

	baseA, numA, suffixedA := splitNumericSuffix(slugA)
	baseB, numB, suffixedB := splitNumericSuffix(slugB)

	switch {
	case suffixedA && !suffixedB && baseA == slugB,
		suffixedB && !suffixedA && baseB == slugA:
		// One side carries a suffix the other lacks.
		if hasSequelToken(nameA) || hasSequelToken(nameB) {
			return slugSequelConflict
		}
		return slugCollision

	case suffixedA && suffixedB && baseA == baseB:
		delta := numA - numB
		if delta < 0 {
			delta = -delta
		}
		if delta > maxCollisionDelta {
			return slugNoMatch
		}
		if hasSequelToken(nameA) || hasSequelToken(nameB) {
			return slugSequelConflict
		}
		return slugCollision
	}

	return slugNoMatch
}

// SlugBase strips a trailing numeric or Roman suffix, returning the slug
// unchanged when none is present. Used to widen candidate lookups so a
// suffixed stored slug still surfaces for an unsuffixed incoming record.
func SlugBase(slug string) string {
	base, _, ok := splitNumericSuffix(slug)
	if !ok {
		return slug
	}
	return base
}

// splitNumericSuffix strips a trailing "-<n>" or "-<roman>" segment.
func splitNumericSuffix(slug string) (base string, num int, ok bool) {
	idx := strings.LastIndexByte(slug, '-')
	if idx <= 0 || idx == len(slug)-1 {
		return slug, 0, false
	}
	tail := slug[idx+1:]
	if n, err := strconv.Atoi(tail); err == nil && n > 0 {
		return slug[:idx], n, true
	}
	if n, isRoman := normalize.RomanToArabic(tail); isRoman && n <= 50 {
		return slug[:idx], n, true
	}
	return slug, 0, false
}

// hasSequelToken reports whether the name carries a sequel number token:
// a standalone small number or a canonical Roman numeral I..V.
func hasSequelToken(name string) bool {
	for _, tok := range normalize.Tokenize(name) {
		if n, err := strconv.Atoi(tok); err == nil && n >= 1 && n <= 50 {
			return true
		}
		if n, ok := normalize.RomanToArabic(tok); ok && n >= 1 && n <= 5 {
			return true
		}
	}
	return false
}
