package normalize

import (
	"fmt"
	"strconv"
	"time"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/source/store"
)

// FromStoreApp converts a storefront appdetails payload into the
// canonical record. Products that are neither games nor DLC, and games
// whose names carry an excluded token, return ErrExcludedProduct.
func FromStoreApp(app *store.AppDetails, now time.Time) (*domain.ProcessedGame, error) {
	if app == nil || app.Name == "" {
		return nil, fmt.Errorf("%w: store app without name", ErrMalformedRecord)
	}

	gameType, err := storeGameType(app)
	if err != nil {
		return nil, err
	}
	if token, excluded := IsExcludedName(app.Name); excluded {
		return nil, fmt.Errorf("%w: token %q in %q", ErrExcludedProduct, token, app.Name)
	}

	releaseDate, status, err := ParseReleaseDate(app.ReleaseDate.Date, app.ReleaseDate.ComingSoon, now)
	if err != nil {
		return nil, fmt.Errorf("store app %d: %w", app.AppID, err)
	}

	var rawPlatforms []string
	if app.Platforms.Windows {
		rawPlatforms = append(rawPlatforms, "windows")
	}
	if app.Platforms.Mac {
		rawPlatforms = append(rawPlatforms, "mac")
	}
	if app.Platforms.Linux {
		rawPlatforms = append(rawPlatforms, "linux")
	}

	followers := int64(app.Recommendations.Total)
	slug := TruncateSlug(Slugify(app.Name), MaxSlugLen)
	appID := app.AppID

	p := &domain.ProcessedGame{
		StoreID:               &appID,
		Name:                  app.Name,
		OriginalName:          app.Name,
		SlugCandidate:         slug,
		OriginalSlugCandidate: slug,
		GameType:              gameType,
		ReleaseDate:           releaseDate,
		ReleaseDateRaw:        app.ReleaseDate.Date,
		ReleaseStatus:         status,
		ComingSoon:            app.ReleaseDate.ComingSoon,
		PopularityScore:       PopularityFromFollowers(followers),
		Platforms:             FoldPlatforms(rawPlatforms),
		Companies:             storeCompanies(app),
		Genres:                storeGenres(app),
		Tags:                  storeTags(app),
		Screenshots:           storeScreenshots(app),
		VideoURL:              optString(app.TrailerURL()),
		Description:           optString(firstNonEmpty(app.ShortDescription, app.DetailedDescription)),
		Website:               optString(app.Website),
		HeaderImage:           optString(app.HeaderImage),
		SupportedLanguages:    optString(app.SupportedLanguages),
		DataSource:            domain.DataSourceStore,
	}

	if followers > 0 {
		p.Followers = &followers
	}
	if app.Metacritic != nil && app.Metacritic.Score > 0 {
		score := app.Metacritic.Score
		p.MetacriticScore = &score
	}
	if app.FullGame != nil && app.FullGame.AppID != 0 {
		parent := int64(app.FullGame.AppID)
		p.ParentStoreID = &parent
	}

	if p.Platforms.PC {
		rel := domain.ReleaseInput{
			Platform:    domain.PlatformPC,
			Store:       domain.StorefrontSteam,
			ReleaseDate: releaseDate,
			Status:      status,
			IsFree:      app.IsFree,
		}
		idStr := strconv.FormatInt(appID, 10)
		rel.StoreAppID = &idStr
		if app.PriceOverview != nil {
			cents := app.PriceOverview.Final
			rel.PriceCents = &cents
		}
		if followers > 0 {
			rel.Followers = &followers
		}
		p.Releases = append(p.Releases, rel)
	}

	return p, nil
}

// storeGameType folds the storefront product type. Music, demos,
// videos and tools never become catalog rows.
func storeGameType(app *store.AppDetails) (domain.GameType, error) {
	switch app.Type {
	case "game":
		if app.FullGame != nil && app.FullGame.AppID != 0 {
			return domain.GameTypeDLC, nil
		}
		return domain.GameTypeGame, nil
	case "dlc":
		return domain.GameTypeDLC, nil
	default:
		return "", fmt.Errorf("%w: product type %q", ErrExcludedProduct, app.Type)
	}
}

func storeCompanies(app *store.AppDetails) []domain.CompanyRef {
	var refs []domain.CompanyRef
	seen := map[string]struct{}{}

	add := func(names []string, role domain.CompanyRole) {
		for _, name := range names {
			slug := TruncateSlug(Slugify(name), MaxSlugLen)
			if name == "" || slug == "" {
				continue
			}
			key := slug + "|" + string(role)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			refs = append(refs, domain.CompanyRef{Name: name, Slug: slug, Role: role})
		}
	}

	add(app.Developers, domain.CompanyRoleDeveloper)
	add(app.Publishers, domain.CompanyRolePublisher)
	return refs
}

func storeGenres(app *store.AppDetails) []string {
	var out []string
	for _, g := range app.Genres {
		if g.Description != "" {
			out = append(out, g.Description)
		}
	}
	return out
}

func storeTags(app *store.AppDetails) []string {
	var out []string
	for _, c := range app.Categories {
		if c.Description != "" {
			out = append(out, c.Description)
		}
	}
	return out
}

func storeScreenshots(app *store.AppDetails) []string {
	var out []string
	for _, s := range app.Screenshots {
		if s.PathFull != "" {
			out = append(out, s.PathFull)
		}
	}
	return out
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
