package matching

import (
	"sort"
	"strings"
	"time"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/normalize"
)

// Profile is the side-agnostic view of a record the scorer works on.
// Both the incoming ProcessedGame and the DB-side MatchCandidate reduce
// to the same shape, which keeps scoring symmetric by construction.
type Profile struct {
	Name         string
	OriginalName string
	Slug         string
	OriginalSlug string
	ReleaseDate  *time.Time
	CompanySlugs []string
	Genres       []string
	HasPC        bool

	norm normalize.NormalizedName
}

// ProfileFromRecord builds the scoring view of an incoming record.
func ProfileFromRecord(rec *domain.ProcessedGame) Profile {
	slugs := make([]string, 0, len(rec.Companies))
	for _, c := range rec.Companies {
		slugs = append(slugs, strings.ToLower(c.Slug))
	}
	return newProfile(
		rec.Name,
		rec.OriginalName,
		rec.SlugCandidate,
		rec.OriginalSlugCandidate,
		rec.ReleaseDate,
		slugs,
		rec.Genres,
		rec.Platforms.PC,
	)
}

// ProfileFromCandidate builds the scoring view of a stored game.
func ProfileFromCandidate(c *domain.MatchCandidate) Profile {
	slugs := make([]string, 0, len(c.CompanySlugs))
	for _, s := range c.CompanySlugs {
		slugs = append(slugs, strings.ToLower(s))
	}
	return newProfile(
		c.Name,
		c.OriginalName,
		c.Slug,
		c.OriginalSlug,
		c.ReleaseDate,
		slugs,
		c.Genres,
		c.HasPCRelease,
	)
}

func newProfile(name, originalName, slug, originalSlug string, release *time.Time, companySlugs, genres []string, hasPC bool) Profile {
	if originalName == "" {
		originalName = name
	}
	if slug == "" {
		slug = normalize.Slugify(name)
	}
	if originalSlug == "" {
		originalSlug = slug
	}

	sort.Strings(companySlugs)
	lowerGenres := make([]string, 0, len(genres))
	for _, g := range genres {
		lowerGenres = append(lowerGenres, strings.ToLower(g))
	}
	sort.Strings(lowerGenres)

	return Profile{
		Name:         name,
		OriginalName: originalName,
		Slug:         strings.ToLower(slug),
		OriginalSlug: strings.ToLower(originalSlug),
		ReleaseDate:  release,
		CompanySlugs: companySlugs,
		Genres:       lowerGenres,
		HasPC:        hasPC,
		norm:         normalize.NormalizeName(name),
	}
}

// overlap returns the sorted intersection of two sorted string slices.
func overlap(a, b []string) []string {
	var out []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			if len(out) == 0 || out[len(out)-1] != a[i] {
				out = append(out, a[i])
			}
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
