package persist

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/matching"
	"game-catalog-pipeline/internal/report"
	"game-catalog-pipeline/internal/storage"
	"game-catalog-pipeline/internal/storage/memory"
)

type harness struct {
	orc   *Orchestrator
	db    *memory.DB
	fs    afero.Fs
	audit *report.Writer
	clock *clockwork.FakeClock
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	db := memory.NewDB(memory.WithClock(clock))
	fs := afero.NewMemMapFs()
	audit := report.NewWriter("logs", report.WithFs(fs), report.WithClock(clock))

	opts = append([]Option{WithAuditWriter(audit), WithClock(clock)}, opts...)
	orc := NewOrchestrator(db, matching.NewEngine(), opts...)
	return &harness{orc: orc, db: db, fs: fs, audit: audit, clock: clock}
}

func (h *harness) auditLines(t *testing.T, kind string) int {
	t.Helper()
	require.NoError(t, h.audit.Flush())
	data, err := afero.ReadFile(h.fs, "logs/matching."+kind+".jsonl")
	if err != nil {
		return 0
	}
	return bytes.Count(data, []byte("\n"))
}

func i64(v int64) *int64 { return &v }

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func storeRecord(storeID int64, name string, popularity int) *domain.ProcessedGame {
	return &domain.ProcessedGame{
		StoreID:               i64(storeID),
		Name:                  name,
		OriginalName:          name,
		SlugCandidate:         slugOf(name),
		OriginalSlugCandidate: slugOf(name),
		GameType:              domain.GameTypeGame,
		ReleaseStatus:         domain.ReleaseStatusReleased,
		PopularityScore:       popularity,
		Platforms:             domain.PlatformSummary{PC: true},
		DataSource:            domain.DataSourceStore,
	}
}

func slugOf(name string) string {
	// Tests keep names slug-shaped already; the normalizer owns the
	// real slugification path.
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == ' ' || r == '-':
			out = append(out, '-')
		}
	}
	return string(out)
}

func fullStoreRecord() *domain.ProcessedGame {
	rec := storeRecord(367520, "Hollow Knight", 85)
	rec.ReleaseDate = date(2017, 2, 24)
	rec.ReleaseDateRaw = "24 Feb, 2017"
	rec.Followers = i64(210000)
	rec.Genres = []string{"Metroidvania", "Platformer"}
	rec.Description = strPtr("A challenging action adventure.")
	rec.Companies = []domain.CompanyRef{
		{Name: "Team Cherry", Slug: "team-cherry", Role: domain.CompanyRoleDeveloper},
		{Name: "Team Cherry", Slug: "team-cherry", Role: domain.CompanyRolePublisher},
	}
	appID := "367520"
	rec.Releases = []domain.ReleaseInput{{
		Platform:    domain.PlatformPC,
		Store:       domain.StorefrontSteam,
		StoreAppID:  &appID,
		ReleaseDate: rec.ReleaseDate,
		Status:      domain.ReleaseStatusReleased,
		IsFree:      false,
	}}
	return rec
}

func strPtr(s string) *string { return &s }

func TestSaveOneCreatesFullRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	res := h.orc.SaveOne(ctx, fullStoreRecord(), SaveOptions{RunID: "run-1", AllowCreate: true})
	require.False(t, res.Failed(), "save failed: %+v", res.Failure)
	assert.Equal(t, domain.ItemActionCreated, res.Action)
	require.NotZero(t, res.GameID)

	st := h.db.Stores()
	game, err := st.Games.GetByID(ctx, res.GameID)
	require.NoError(t, err)
	assert.Equal(t, "hollow-knight", game.Slug)
	assert.Equal(t, "Hollow Knight", game.Name)
	assert.Equal(t, 85, game.PopularityScore)
	require.NotNil(t, game.StoreLastRefreshAt)

	detail, err := st.Details.GetByGameID(ctx, res.GameID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Metroidvania", "Platformer"}, detail.Genres)

	releases, err := st.Releases.GetByGame(ctx, res.GameID)
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Equal(t, domain.PlatformPC, releases[0].Platform)

	company, err := st.Companies.GetBySlug(ctx, "team-cherry")
	require.NoError(t, err)
	roles, err := st.Roles.ListByGame(ctx, res.GameID)
	require.NoError(t, err)
	require.Len(t, roles, 2)
	for _, r := range roles {
		assert.Equal(t, company.ID, r.CompanyID)
	}

	items, err := st.Items.ListByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.ItemActionCreated, items[0].Action)
	assert.Equal(t, domain.ItemStatusSuccess, items[0].Status)
}

func TestSaveOneIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	opts := SaveOptions{AllowCreate: true}

	first := h.orc.SaveOne(ctx, fullStoreRecord(), opts)
	require.Equal(t, domain.ItemActionCreated, first.Action)

	second := h.orc.SaveOne(ctx, fullStoreRecord(), opts)
	require.False(t, second.Failed())
	assert.Equal(t, domain.ItemActionUpdated, second.Action)
	assert.Equal(t, first.GameID, second.GameID)

	st := h.db.Stores()
	releases, err := st.Releases.GetByGame(ctx, first.GameID)
	require.NoError(t, err)
	assert.Len(t, releases, 1, "release upsert must not duplicate rows")
	roles, err := st.Roles.ListByGame(ctx, first.GameID)
	require.NoError(t, err)
	assert.Len(t, roles, 2, "role upsert must not duplicate rows")
}

func TestSaveOneDLCSkipsDetailAndReleases(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rec := fullStoreRecord()
	rec.GameType = domain.GameTypeDLC
	rec.ParentStoreID = i64(367520)
	rec.StoreID = i64(1191900)
	rec.Name = "Hollow Knight Godmaster"
	rec.SlugCandidate = "hollow-knight-godmaster"
	rec.OriginalSlugCandidate = rec.SlugCandidate

	res := h.orc.SaveOne(ctx, rec, SaveOptions{AllowCreate: true})
	require.False(t, res.Failed())
	require.Equal(t, domain.ItemActionCreated, res.Action)

	st := h.db.Stores()
	game, err := st.Games.GetByID(ctx, res.GameID)
	require.NoError(t, err)
	assert.True(t, game.IsDLC())

	_, err = st.Details.GetByGameID(ctx, res.GameID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	releases, err := st.Releases.GetByGame(ctx, res.GameID)
	require.NoError(t, err)
	assert.Empty(t, releases)
}

func TestUpdateFillsIdentifiersAndDLCIsMonotone(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	opts := SaveOptions{AllowCreate: true}

	created := h.orc.SaveOne(ctx, fullStoreRecord(), opts)
	require.Equal(t, domain.ItemActionCreated, created.Action)

	// Meta-side record for the same slug fills meta_id.
	metaRec := &domain.ProcessedGame{
		MetaID:                i64(9001),
		Name:                  "Hollow Knight",
		SlugCandidate:         "hollow-knight",
		OriginalSlugCandidate: "hollow-knight",
		GameType:              domain.GameTypeGame,
		ReleaseStatus:         domain.ReleaseStatusReleased,
		PopularityScore:       60,
		DataSource:            domain.DataSourceMeta,
	}
	res := h.orc.SaveOne(ctx, metaRec, opts)
	require.False(t, res.Failed())
	assert.Equal(t, domain.ItemActionUpdated, res.Action)

	game, err := h.db.Stores().Games.GetByID(ctx, created.GameID)
	require.NoError(t, err)
	require.NotNil(t, game.StoreID)
	require.NotNil(t, game.MetaID)
	assert.Equal(t, int64(9001), *game.MetaID)
	// Followers cache from the store save keeps its popularity.
	assert.Equal(t, 85, game.PopularityScore)

	// DLC flag upgrades and never downgrades.
	dlcRec := fullStoreRecord()
	dlcRec.GameType = domain.GameTypeDLC
	res = h.orc.SaveOne(ctx, dlcRec, opts)
	require.False(t, res.Failed())
	game, err = h.db.Stores().Games.GetByID(ctx, created.GameID)
	require.NoError(t, err)
	assert.True(t, game.IsDLC())

	res = h.orc.SaveOne(ctx, fullStoreRecord(), opts)
	require.False(t, res.Failed())
	game, err = h.db.Stores().Games.GetByID(ctx, created.GameID)
	require.NoError(t, err)
	assert.True(t, game.IsDLC(), "dlc flag must not downgrade")
}

func TestCrossSourceAutoMatchAdoptsSuffixedRow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := h.db.Stores()

	// The base slug is held by an unrelated fully-identified game, so
	// the real row ended up with a collision suffix.
	_, err := st.Games.Insert(ctx, &domain.Game{
		StoreID: i64(11), MetaID: i64(99),
		Name: "Stellar Blade", OriginalName: "Stellar Blade",
		Slug: "stellar-blade", OriginalSlug: "stellar-blade",
		GameType: domain.GameTypeGame, ReleaseStatus: domain.ReleaseStatusReleased,
	})
	require.NoError(t, err)

	target, err := st.Games.Insert(ctx, &domain.Game{
		StoreID: i64(22),
		Name:    "Stellar Blade", OriginalName: "Stellar Blade",
		Slug: "stellar-blade-2", OriginalSlug: "stellar-blade-2",
		GameType: domain.GameTypeGame, ReleaseStatus: domain.ReleaseStatusReleased,
		ReleaseDate: date(2024, 4, 26),
		Platforms:   domain.PlatformSummary{PC: true},
	})
	require.NoError(t, err)

	metaRec := &domain.ProcessedGame{
		MetaID:                i64(300),
		Name:                  "Stellar Blade",
		SlugCandidate:         "stellar-blade",
		OriginalSlugCandidate: "stellar-blade",
		GameType:              domain.GameTypeGame,
		ReleaseStatus:         domain.ReleaseStatusReleased,
		ReleaseDate:           date(2024, 4, 26),
		PopularityScore:       70,
		Platforms:             domain.PlatformSummary{PC: true},
		DataSource:            domain.DataSourceMeta,
	}

	res := h.orc.SaveOne(ctx, metaRec, SaveOptions{AllowCreate: true})
	require.False(t, res.Failed(), "save failed: %+v", res.Failure)
	assert.Equal(t, domain.ItemActionUpdated, res.Action)
	assert.Equal(t, target.ID, res.GameID)
	require.NotNil(t, res.Decision)
	assert.Equal(t, domain.MatchAuto, res.Decision.Status)

	game, err := st.Games.GetByID(ctx, target.ID)
	require.NoError(t, err)
	require.NotNil(t, game.MetaID)
	assert.Equal(t, int64(300), *game.MetaID)

	assert.Equal(t, 1, h.auditLines(t, "auto"))
}

func TestCrossSourcePendingCreatesNewRow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	st := h.db.Stores()

	// Name-only similarity: exact name, no date, no companies. Score
	// stays under the auto threshold, so the record is created anew and
	// the pair lands in the pending audit stream.
	existing, err := st.Games.Insert(ctx, &domain.Game{
		StoreID: i64(31),
		Name:    "Limbo", OriginalName: "Limbo",
		Slug: "limbo", OriginalSlug: "limbo",
		GameType: domain.GameTypeGame, ReleaseStatus: domain.ReleaseStatusUnknown,
	})
	require.NoError(t, err)

	metaRec := &domain.ProcessedGame{
		MetaID:          i64(500),
		Name:            "Limbo",
		GameType:        domain.GameTypeGame,
		ReleaseStatus:   domain.ReleaseStatusUnknown,
		PopularityScore: 20,
		DataSource:      domain.DataSourceMeta,
	}

	res := h.orc.SaveOne(ctx, metaRec, SaveOptions{AllowCreate: true})
	require.False(t, res.Failed(), "save failed: %+v", res.Failure)
	assert.Equal(t, domain.ItemActionCreated, res.Action)
	assert.NotEqual(t, existing.ID, res.GameID)
	require.NotNil(t, res.Decision)
	assert.Equal(t, domain.MatchPending, res.Decision.Status)

	game, err := st.Games.GetByID(ctx, res.GameID)
	require.NoError(t, err)
	assert.Equal(t, "limbo-2", game.Slug, "collision suffix expected")

	assert.Equal(t, 1, h.auditLines(t, "pending"))
}

func TestSaveManyFailureIsolation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	recs := []*domain.ProcessedGame{
		storeRecord(1, "Alpha Protocol", 50),
		storeRecord(2, "Beta Ray", 50),
		storeRecord(3, "Gamma Break", 50),
	}
	h.db.InjectTxFailure(2, memory.ErrInjected)

	batch := h.orc.SaveMany(ctx, recs, SaveOptions{AllowCreate: true})

	assert.Equal(t, 2, batch.Created)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, "2", batch.Failures[0].TargetID)
	assert.Equal(t, domain.FailureUnknown, batch.Failures[0].Reason)

	st := h.db.Stores()
	_, err := st.Games.GetByStoreID(ctx, 1)
	assert.NoError(t, err)
	_, err = st.Games.GetByStoreID(ctx, 2)
	assert.ErrorIs(t, err, storage.ErrNotFound, "failed record must be rolled back")
	_, err = st.Games.GetByStoreID(ctx, 3)
	assert.NoError(t, err)

	assert.Equal(t, 1, h.auditLines(t, "errors"))
}

func TestDryRunRollsBack(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	res := h.orc.SaveOne(ctx, fullStoreRecord(), SaveOptions{AllowCreate: true, DryRun: true})
	require.False(t, res.Failed())
	assert.Equal(t, domain.ItemActionCreated, res.Action)

	_, err := h.db.Stores().Games.GetByStoreID(ctx, 367520)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSkippedWithoutAllowCreate(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	res := h.orc.SaveOne(ctx, fullStoreRecord(), SaveOptions{AllowCreate: false})
	require.False(t, res.Failed())
	assert.Equal(t, domain.ItemActionSkipped, res.Action)

	_, err := h.db.Stores().Games.GetByStoreID(ctx, 367520)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestValidationFailureClassifies(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rec := fullStoreRecord()
	rec.Name = ""

	res := h.orc.SaveOne(ctx, rec, SaveOptions{AllowCreate: true})
	require.True(t, res.Failed())
	assert.Equal(t, domain.FailureValidationFailed, res.Failure.Reason)
	assert.Equal(t, 1, h.auditLines(t, "errors"))
}

type fixedTrailers struct{ url string }

func (f fixedTrailers) ResolveTrailer(context.Context, string) (*string, error) {
	return &f.url, nil
}

func TestTrailerResolverFillsMissingVideoURL(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, WithTrailerResolver(fixedTrailers{url: "https://video.example/hk"}))

	rec := fullStoreRecord()
	rec.VideoURL = nil

	res := h.orc.SaveOne(ctx, rec, SaveOptions{AllowCreate: true})
	require.False(t, res.Failed())

	detail, err := h.db.Stores().Details.GetByGameID(ctx, res.GameID)
	require.NoError(t, err)
	require.NotNil(t, detail.VideoURL)
	assert.Equal(t, "https://video.example/hk", *detail.VideoURL)
}
