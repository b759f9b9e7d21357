package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/source/store"
)

var mapNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func portalApp() *store.AppDetails {
	return &store.AppDetails{
		Type:               "game",
		Name:               "Portal 2",
		AppID:              620,
		ShortDescription:   "Sequel to the acclaimed puzzler.",
		SupportedLanguages: "English, French",
		HeaderImage:        "https://cdn.example/620/header.jpg",
		Website:            "https://www.thinkwithportals.com",
		Developers:         []string{"Valve"},
		Publishers:         []string{"Valve"},
		Platforms:          store.AppPlatforms{Windows: true, Mac: true, Linux: true},
		Genres:             []store.AppGenre{{ID: "1", Description: "Action"}, {ID: "25", Description: "Adventure"}},
		Categories:         []store.AppCategory{{ID: 2, Description: "Single-player"}},
		Screenshots:        []store.AppScreenshot{{PathFull: "https://cdn.example/620/ss_1.jpg"}},
		Movies: []store.AppMovie{
			{Name: "Trailer", MP4: store.MovieFormat{Max: "https://cdn.example/620/t.mp4"}, Highlight: true},
		},
		Recommendations: store.AppRecommendations{Total: 120543},
		ReleaseDate:     store.AppReleaseDate{Date: "18 Apr, 2011"},
		Metacritic:      &store.AppMetacritic{Score: 95},
		PriceOverview:   &store.AppPrice{Currency: "USD", Final: 499},
	}
}

func TestFromStoreApp(t *testing.T) {
	p, err := FromStoreApp(portalApp(), mapNow)
	require.NoError(t, err)
	require.NoError(t, p.Validate())

	require.NotNil(t, p.StoreID)
	assert.Equal(t, int64(620), *p.StoreID)
	assert.Nil(t, p.MetaID)
	assert.Equal(t, "Portal 2", p.Name)
	assert.Equal(t, "Portal 2", p.OriginalName)
	assert.Equal(t, "portal-2", p.SlugCandidate)
	assert.Equal(t, domain.GameTypeGame, p.GameType)
	assert.Equal(t, domain.DataSourceStore, p.DataSource)

	require.NotNil(t, p.ReleaseDate)
	assert.Equal(t, time.Date(2011, 4, 18, 0, 0, 0, 0, time.UTC), p.ReleaseDate.UTC())
	assert.Equal(t, domain.ReleaseStatusReleased, p.ReleaseStatus)

	assert.Equal(t, 90, p.PopularityScore)
	require.NotNil(t, p.Followers)
	assert.Equal(t, int64(120543), *p.Followers)
	assert.True(t, p.WantsDetail())

	assert.True(t, p.Platforms.PC)
	assert.Empty(t, p.Platforms.Consoles)

	require.Len(t, p.Companies, 2)
	assert.Equal(t, domain.CompanyRef{Name: "Valve", Slug: "valve", Role: domain.CompanyRoleDeveloper}, p.Companies[0])
	assert.Equal(t, domain.CompanyRolePublisher, p.Companies[1].Role)

	require.Len(t, p.Releases, 1)
	rel := p.Releases[0]
	assert.Equal(t, domain.PlatformPC, rel.Platform)
	assert.Equal(t, domain.StorefrontSteam, rel.Store)
	require.NotNil(t, rel.StoreAppID)
	assert.Equal(t, "620", *rel.StoreAppID)
	require.NotNil(t, rel.PriceCents)
	assert.Equal(t, int64(499), *rel.PriceCents)

	assert.Equal(t, []string{"Action", "Adventure"}, p.Genres)
	assert.Equal(t, []string{"Single-player"}, p.Tags)
	assert.Equal(t, []string{"https://cdn.example/620/ss_1.jpg"}, p.Screenshots)
	require.NotNil(t, p.VideoURL)
	assert.Equal(t, "https://cdn.example/620/t.mp4", *p.VideoURL)
	require.NotNil(t, p.MetacriticScore)
	assert.Equal(t, 95, *p.MetacriticScore)
}

func TestFromStoreAppDLC(t *testing.T) {
	app := portalApp()
	app.Type = "dlc"
	app.Name = "Portal 2 Peer Review"
	app.FullGame = &store.AppFullGameRef{AppID: 620, Name: "Portal 2"}

	p, err := FromStoreApp(app, mapNow)
	require.NoError(t, err)

	assert.Equal(t, domain.GameTypeDLC, p.GameType)
	assert.True(t, p.IsDLC())
	require.NotNil(t, p.ParentStoreID)
	assert.Equal(t, int64(620), *p.ParentStoreID)
	assert.False(t, p.WantsDetail(), "DLC never qualifies for details")
}

func TestFromStoreAppParentImpliesDLC(t *testing.T) {
	// Some DLC pages report type game while carrying a parent link.
	app := portalApp()
	app.FullGame = &store.AppFullGameRef{AppID: 500, Name: "Base"}

	p, err := FromStoreApp(app, mapNow)
	require.NoError(t, err)

	assert.Equal(t, domain.GameTypeDLC, p.GameType)
}

func TestFromStoreAppExcludedType(t *testing.T) {
	for _, typ := range []string{"music", "demo", "video", "mod", "advertising"} {
		app := portalApp()
		app.Type = typ

		_, err := FromStoreApp(app, mapNow)
		require.Error(t, err, "type=%q", typ)
		assert.ErrorIs(t, err, ErrExcludedProduct)
	}
}

func TestFromStoreAppExcludedToken(t *testing.T) {
	app := portalApp()
	app.Name = "Portal 2 Soundtrack"

	_, err := FromStoreApp(app, mapNow)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExcludedProduct)
}

func TestFromStoreAppMalformedDate(t *testing.T) {
	app := portalApp()
	app.ReleaseDate.Date = "sometime later"

	_, err := FromStoreApp(app, mapNow)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestFromStoreAppNoPlatforms(t *testing.T) {
	app := portalApp()
	app.Platforms = store.AppPlatforms{}

	p, err := FromStoreApp(app, mapNow)

	require.NoError(t, err)
	assert.False(t, p.Platforms.PC)
	assert.Empty(t, p.Releases)
}

func TestFromStoreAppComingSoon(t *testing.T) {
	app := portalApp()
	app.ReleaseDate = store.AppReleaseDate{ComingSoon: true, Date: "Coming Soon"}

	p, err := FromStoreApp(app, mapNow)

	require.NoError(t, err)
	assert.Nil(t, p.ReleaseDate)
	assert.True(t, p.ComingSoon)
	assert.Equal(t, domain.ReleaseStatusUpcoming, p.ReleaseStatus)
}
