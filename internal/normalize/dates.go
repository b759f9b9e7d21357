package normalize

import (
	"fmt"
	"strings"
	"time"

	"game-catalog-pipeline/internal/domain"
)

// releaseDateLayouts are tried in order. The Store renders English dates
// ("2 Mar, 2024"); Meta uses ISO ("2024-03-02"); year-only strings appear
// on distant titles.
var releaseDateLayouts = []string{
	"2006-01-02",
	"2 Jan, 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Jan 2006",
	"January 2006",
	"2006",
}

// tbaMarkers are raw date strings that legitimately carry no date.
var tbaMarkers = map[string]struct{}{
	"":                {},
	"tba":             {},
	"to be announced": {},
	"coming soon":     {},
	"soon":            {},
	"tbd":             {},
}

// ParseReleaseDate parses a source release-date string. TBA-style markers
// yield a nil date without error; any other unparseable value is a
// normalization failure. The status derives from the parsed date and the
// source's coming-soon flag.
func ParseReleaseDate(raw string, comingSoon bool, now time.Time) (*time.Time, domain.ReleaseStatus, error) {
	trimmed := strings.TrimSpace(raw)
	if _, tba := tbaMarkers[strings.ToLower(trimmed)]; tba {
		if comingSoon {
			return nil, domain.ReleaseStatusUpcoming, nil
		}
		return nil, domain.ReleaseStatusUnknown, nil
	}

	for _, layout := range releaseDateLayouts {
		t, err := time.Parse(layout, trimmed)
		if err != nil {
			continue
		}
		t = t.UTC()
		status := domain.ReleaseStatusReleased
		if comingSoon || t.After(now) {
			status = domain.ReleaseStatusUpcoming
		}
		return &t, status, nil
	}

	return nil, domain.ReleaseStatusUnknown, fmt.Errorf("%w: release date %q", ErrMalformedRecord, raw)
}
