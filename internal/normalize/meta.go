package normalize

import (
	"fmt"
	"time"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/source/meta"
)

// familyStorefronts maps a console family to the storefront a meta
// release is assumed to live on. PC releases from the aggregator carry
// no store identity.
var familyStorefronts = map[domain.Platform]domain.Storefront{
	domain.PlatformPC:          domain.StorefrontOther,
	domain.PlatformPlayStation: domain.StorefrontPSN,
	domain.PlatformXbox:        domain.StorefrontXbox,
	domain.PlatformNintendo:    domain.StorefrontNintendo,
}

// FromMetaGame converts an aggregator game object into the canonical
// record.
func FromMetaGame(g *meta.Game, now time.Time) (*domain.ProcessedGame, error) {
	if g == nil || g.Name == "" {
		return nil, fmt.Errorf("%w: meta game without name", ErrMalformedRecord)
	}
	if token, excluded := IsExcludedName(g.Name); excluded {
		return nil, fmt.Errorf("%w: token %q in %q", ErrExcludedProduct, token, g.Name)
	}

	releaseDate, status, err := ParseReleaseDate(g.Released, g.TBA, now)
	if err != nil {
		return nil, fmt.Errorf("meta game %d: %w", g.ID, err)
	}

	originalName := g.NameOriginal
	if originalName == "" {
		originalName = g.Name
	}

	slug := g.Slug
	if slug == "" {
		slug = Slugify(g.Name)
	}
	slug = TruncateSlug(Slugify(slug), MaxSlugLen)
	originalSlug := TruncateSlug(Slugify(originalName), MaxSlugLen)
	if originalSlug == "" {
		originalSlug = slug
	}

	rawPlatforms := make([]string, 0, len(g.Platforms))
	for _, entry := range g.Platforms {
		rawPlatforms = append(rawPlatforms, entry.Platform.Slug)
	}

	metaID := g.ID
	p := &domain.ProcessedGame{
		MetaID:                &metaID,
		Name:                  g.Name,
		OriginalName:          originalName,
		SlugCandidate:         slug,
		OriginalSlugCandidate: originalSlug,
		GameType:              domain.GameTypeGame,
		ReleaseDate:           releaseDate,
		ReleaseDateRaw:        g.Released,
		ReleaseStatus:         status,
		ComingSoon:            g.TBA,
		PopularityScore:       PopularityFromMeta(g.Added, g.ReviewsCount, g.Rating),
		Platforms:             FoldPlatforms(rawPlatforms),
		Companies:             metaCompanies(g),
		Genres:                descriptorNames(g.Genres),
		Tags:                  descriptorNames(g.Tags),
		Screenshots:           metaScreenshots(g),
		Description:           optString(g.DescriptionRaw),
		Website:               optString(g.Website),
		HeaderImage:           optString(g.BackgroundImage),
		DataSource:            domain.DataSourceMeta,
	}

	if len(g.ParentGames) > 0 {
		p.GameType = domain.GameTypeDLC
		parent := g.ParentGames[0].ID
		p.ParentMetaID = &parent
	}
	if g.Metacritic != nil && *g.Metacritic > 0 {
		score := *g.Metacritic
		p.MetacriticScore = &score
	}
	if g.ReviewsCount > 0 {
		reviews := g.ReviewsCount
		p.ReviewCount = &reviews
	}
	if g.Rating > 0 {
		rating := g.Rating
		p.Rating = &rating
	}
	if g.Clip != nil {
		p.VideoURL = optString(firstNonEmpty(g.Clip.Video, g.Clip.Clip))
	}

	p.Releases = metaReleases(g, releaseDate, status, now)

	return p, nil
}

// metaReleases builds one release per folded platform family. The
// per-platform released_at refines the game-level date when present.
func metaReleases(g *meta.Game, fallbackDate *time.Time, fallbackStatus domain.ReleaseStatus, now time.Time) []domain.ReleaseInput {
	byFamily := make(map[domain.Platform]domain.ReleaseInput)
	order := make([]domain.Platform, 0, 4)

	for _, entry := range g.Platforms {
		family, ok := FoldPlatform(entry.Platform.Slug)
		if !ok {
			continue
		}
		if _, dup := byFamily[family]; dup {
			continue
		}

		date, status := fallbackDate, fallbackStatus
		if entry.ReleasedAt != "" {
			if d, s, err := ParseReleaseDate(entry.ReleasedAt, g.TBA, now); err == nil && d != nil {
				date, status = d, s
			}
		}

		byFamily[family] = domain.ReleaseInput{
			Platform:    family,
			Store:       familyStorefronts[family],
			ReleaseDate: date,
			Status:      status,
		}
		order = append(order, family)
	}

	releases := make([]domain.ReleaseInput, 0, len(order))
	for _, family := range order {
		releases = append(releases, byFamily[family])
	}
	return releases
}

func metaCompanies(g *meta.Game) []domain.CompanyRef {
	var refs []domain.CompanyRef
	seen := map[string]struct{}{}

	add := func(companies []meta.Descriptor, role domain.CompanyRole) {
		for _, c := range companies {
			if c.Name == "" {
				continue
			}
			slug := c.Slug
			if slug == "" {
				slug = Slugify(c.Name)
			}
			slug = TruncateSlug(Slugify(slug), MaxSlugLen)
			if slug == "" {
				continue
			}
			key := slug + "|" + string(role)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			refs = append(refs, domain.CompanyRef{Name: c.Name, Slug: slug, Role: role})
		}
	}

	add(g.Developers, domain.CompanyRoleDeveloper)
	add(g.Publishers, domain.CompanyRolePublisher)
	return refs
}

func descriptorNames(items []meta.Descriptor) []string {
	var out []string
	for _, item := range items {
		if item.Name != "" {
			out = append(out, item.Name)
		}
	}
	return out
}

func metaScreenshots(g *meta.Game) []string {
	var out []string
	for _, s := range g.ShortScreenshots {
		if s.Image != "" {
			out = append(out, s.Image)
		}
	}
	return out
}
