package persist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/matching"
	"game-catalog-pipeline/internal/normalize"
	"game-catalog-pipeline/internal/slugs"
	"game-catalog-pipeline/internal/storage"
)

// companySuffixAttempts bounds the company slug collision walk.
const companySuffixAttempts = 1000

// saveTx is the whole per-record save, executed inside one transaction.
func (o *Orchestrator) saveTx(ctx context.Context, st storage.Stores, rec *domain.ProcessedGame, opts SaveOptions) (SaveResult, error) {
	existing, err := o.findExisting(ctx, st, rec)
	if err != nil {
		return SaveResult{}, err
	}

	var decision *domain.MatchingDecision
	if existing == nil && exactlyOneIdentifier(rec) {
		decision, existing, err = o.matchCrossSource(ctx, st, rec)
		if err != nil {
			return SaveResult{}, err
		}
	}

	var res SaveResult
	var game *domain.Game
	switch {
	case existing == nil && !opts.AllowCreate:
		res = SaveResult{Action: domain.ItemActionSkipped, Decision: decision}
		return res, o.insertItem(ctx, st, rec, opts, res)

	case existing == nil:
		game, err = o.createGame(ctx, st, rec)
		if err != nil {
			return SaveResult{Decision: decision}, err
		}
		res = SaveResult{Action: domain.ItemActionCreated, GameID: game.ID, Decision: decision}

	default:
		game, err = o.updateGame(ctx, st, rec, existing)
		if err != nil {
			return SaveResult{Decision: decision}, err
		}
		res = SaveResult{Action: domain.ItemActionUpdated, GameID: game.ID, Decision: decision}
	}

	if !game.IsDLC() {
		if game.PopularityScore >= domain.DetailPopularityThreshold {
			if err := o.upsertDetail(ctx, st, game.ID, rec); err != nil {
				return res, err
			}
		}
		if err := o.upsertReleases(ctx, st, game.ID, rec); err != nil {
			return res, err
		}
	}
	if err := o.upsertCompanies(ctx, st, game.ID, rec); err != nil {
		return res, err
	}

	return res, o.insertItem(ctx, st, rec, opts, res)
}

// findExisting looks the record up by store ID, meta ID, then both slug
// candidates. A slug hit is only adopted when it does not conflict with
// the record's own identifier on the same side.
func (o *Orchestrator) findExisting(ctx context.Context, st storage.Stores, rec *domain.ProcessedGame) (*domain.Game, error) {
	if rec.StoreID != nil {
		g, err := st.Games.GetByStoreID(ctx, *rec.StoreID)
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}
	if rec.MetaID != nil {
		g, err := st.Games.GetByMetaID(ctx, *rec.MetaID)
		if err == nil {
			return g, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	for _, slug := range []string{rec.SlugCandidate, rec.OriginalSlugCandidate} {
		if slug == "" {
			continue
		}
		g, err := st.Games.GetBySlug(ctx, slug)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if identifierConflict(rec, g) {
			continue
		}
		return g, nil
	}
	return nil, nil
}

// identifierConflict reports whether adopting g would overwrite a
// different identifier on the record's own source side.
func identifierConflict(rec *domain.ProcessedGame, g *domain.Game) bool {
	if rec.StoreID != nil && g.StoreID != nil && *rec.StoreID != *g.StoreID {
		return true
	}
	if rec.MetaID != nil && g.MetaID != nil && *rec.MetaID != *g.MetaID {
		return true
	}
	return false
}

func exactlyOneIdentifier(rec *domain.ProcessedGame) bool {
	return (rec.StoreID != nil) != (rec.MetaID != nil)
}

// matchCrossSource evaluates the record against candidates from the
// opposite source. Auto adopts the matched row; pending and rejected are
// audit-only.
func (o *Orchestrator) matchCrossSource(ctx context.Context, st storage.Stores, rec *domain.ProcessedGame) (*domain.MatchingDecision, *domain.Game, error) {
	q := storage.CandidateQuery{
		Slugs: slugQueryTerms(rec),
		Names: nameQueryTerms(rec),
		Limit: candidateLimit,
	}
	if rec.DataSource == domain.DataSourceStore {
		q.MissingStoreID = true
	} else {
		q.MissingMetaID = true
	}

	cands, err := st.Games.ListMatchCandidates(ctx, q)
	if err != nil {
		return nil, nil, err
	}
	vals := make([]domain.MatchCandidate, len(cands))
	for i, c := range cands {
		vals[i] = *c
	}

	decision := o.engine.Evaluate(rec, vals)
	if decision.Status != domain.MatchAuto || decision.MatchedGameID == nil {
		return &decision, nil, nil
	}
	g, err := st.Games.GetByID(ctx, *decision.MatchedGameID)
	if err != nil {
		return &decision, nil, err
	}
	return &decision, g, nil
}

// slugQueryTerms collects the lowercase slug forms used for candidate
// lookup, including de-suffixed bases.
func slugQueryTerms(rec *domain.ProcessedGame) []string {
	seen := make(map[string]struct{}, 4)
	var out []string
	for _, s := range []string{rec.SlugCandidate, rec.OriginalSlugCandidate, normalize.Slugify(rec.Name)} {
		if s == "" {
			continue
		}
		for _, term := range []string{strings.ToLower(s), matching.SlugBase(strings.ToLower(s))} {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			out = append(out, term)
		}
	}
	return out
}

func nameQueryTerms(rec *domain.ProcessedGame) []string {
	names := []string{strings.ToLower(rec.Name)}
	if rec.OriginalName != "" && !strings.EqualFold(rec.OriginalName, rec.Name) {
		names = append(names, strings.ToLower(rec.OriginalName))
	}
	return names
}

// createGame resolves slugs and inserts the new games row.
func (o *Orchestrator) createGame(ctx context.Context, st storage.Stores, rec *domain.ProcessedGame) (*domain.Game, error) {
	resolver := slugs.NewResolver(st.Games, slugs.WithClock(o.clock))
	slug, originalSlug, err := resolver.Resolve(ctx, slugs.Request{
		NameCandidate:         firstNonEmpty(rec.SlugCandidate, rec.Name),
		OriginalNameCandidate: firstNonEmpty(rec.OriginalSlugCandidate, rec.OriginalName),
		Fallbacks:             identifierFallbacks(rec),
	})
	if err != nil {
		return nil, fmt.Errorf("resolve slugs: %w", err)
	}

	now := o.clock.Now().UTC()
	game := &domain.Game{
		StoreID:         rec.StoreID,
		MetaID:          rec.MetaID,
		Name:            rec.Name,
		OriginalName:    firstNonEmpty(rec.OriginalName, rec.Name),
		Slug:            slug,
		OriginalSlug:    originalSlug,
		GameType:        rec.GameType,
		ParentStoreID:   rec.ParentStoreID,
		ParentMetaID:    rec.ParentMetaID,
		ReleaseDate:     rec.ReleaseDate,
		ReleaseDateRaw:  rec.ReleaseDateRaw,
		ReleaseStatus:   rec.ReleaseStatus,
		ComingSoon:      rec.ComingSoon,
		PopularityScore: rec.PopularityScore,
		FollowersCache:  rec.Followers,
		Platforms:       rec.Platforms,
	}
	if rec.DataSource == domain.DataSourceStore {
		game.StoreLastRefreshAt = &now
	}
	return st.Games.Insert(ctx, game)
}

// updateGame patches the existing row. Mutable fields overwrite;
// identifiers only fill nulls; the DLC flag never downgrades.
func (o *Orchestrator) updateGame(ctx context.Context, st storage.Stores, rec *domain.ProcessedGame, g *domain.Game) (*domain.Game, error) {
	g.Name = rec.Name
	if rec.OriginalName != "" {
		g.OriginalName = rec.OriginalName
	}

	if g.StoreID == nil {
		g.StoreID = rec.StoreID
	}
	if g.MetaID == nil {
		g.MetaID = rec.MetaID
	}
	if g.ParentStoreID == nil {
		g.ParentStoreID = rec.ParentStoreID
	}
	if g.ParentMetaID == nil {
		g.ParentMetaID = rec.ParentMetaID
	}

	if rec.IsDLC() {
		g.GameType = domain.GameTypeDLC
	}

	if rec.ReleaseDate != nil {
		g.ReleaseDate = rec.ReleaseDate
	}
	if rec.ReleaseDateRaw != "" {
		g.ReleaseDateRaw = rec.ReleaseDateRaw
	}
	if rec.ReleaseStatus != domain.ReleaseStatusUnknown || g.ReleaseStatus == "" {
		g.ReleaseStatus = rec.ReleaseStatus
	}
	g.ComingSoon = rec.ComingSoon

	// Followers-derived popularity wins whenever followers are known.
	switch {
	case rec.Followers != nil:
		g.PopularityScore = rec.PopularityScore
		g.FollowersCache = rec.Followers
	case g.FollowersCache == nil:
		g.PopularityScore = rec.PopularityScore
	}

	g.Platforms = mergePlatforms(g.Platforms, rec.Platforms)

	if rec.DataSource == domain.DataSourceStore {
		now := o.clock.Now().UTC()
		g.StoreLastRefreshAt = &now
	}

	if err := st.Games.Update(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// mergePlatforms unions the stored summary with the incoming one.
func mergePlatforms(a, b domain.PlatformSummary) domain.PlatformSummary {
	out := domain.PlatformSummary{PC: a.PC || b.PC}
	out.Consoles = append(out.Consoles, a.Consoles...)
	for _, c := range b.Consoles {
		if !out.HasConsole(c) {
			out.Consoles = append(out.Consoles, c)
		}
	}
	return out
}

// upsertDetail creates or patches the game_details row. The trailer
// resolver only runs at creation time for records without a video URL.
func (o *Orchestrator) upsertDetail(ctx context.Context, st storage.Stores, gameID int64, rec *domain.ProcessedGame) error {
	d, err := st.Details.GetByGameID(ctx, gameID)
	if errors.Is(err, storage.ErrNotFound) {
		d = &domain.GameDetail{GameID: gameID}
		applyDetail(d, rec)
		if d.VideoURL == nil {
			url, trErr := o.trailers.ResolveTrailer(ctx, rec.Name)
			if trErr != nil {
				o.logger.Debug().Err(trErr).Str("name", rec.Name).Msg("trailer lookup failed")
			} else {
				d.VideoURL = url
			}
		}
		_, err = st.Details.Insert(ctx, d)
		return err
	}
	if err != nil {
		return err
	}

	applyDetail(d, rec)
	return st.Details.Update(ctx, d)
}

// applyDetail overwrites detail fields the record actually carries.
func applyDetail(d *domain.GameDetail, rec *domain.ProcessedGame) {
	if len(rec.Screenshots) > 0 {
		d.Screenshots = rec.Screenshots
	}
	if rec.VideoURL != nil {
		d.VideoURL = rec.VideoURL
	}
	if rec.Description != nil {
		d.Description = rec.Description
	}
	if rec.Website != nil {
		d.Website = rec.Website
	}
	if len(rec.Genres) > 0 {
		d.Genres = rec.Genres
	}
	if len(rec.Tags) > 0 {
		d.Tags = rec.Tags
	}
	if rec.SupportedLanguages != nil {
		d.SupportedLanguages = rec.SupportedLanguages
	}
	if rec.HeaderImage != nil {
		d.HeaderImage = rec.HeaderImage
	}
	if rec.MetacriticScore != nil {
		d.MetacriticScore = rec.MetacriticScore
	}
	if rec.OpencriticScore != nil {
		d.OpencriticScore = rec.OpencriticScore
	}
	if rec.ReviewCount != nil {
		d.ReviewCount = rec.ReviewCount
	}
	if rec.Rating != nil {
		d.Rating = rec.Rating
	}
}

// upsertReleases updates matching release rows and inserts the rest.
// Rows are never deleted.
func (o *Orchestrator) upsertReleases(ctx context.Context, st storage.Stores, gameID int64, rec *domain.ProcessedGame) error {
	for _, in := range rec.Releases {
		existing, err := st.Releases.Find(ctx, gameID, in.Platform, in.Store, in.StoreAppID)
		if errors.Is(err, storage.ErrNotFound) {
			_, err = st.Releases.Insert(ctx, &domain.GameRelease{
				GameID:      gameID,
				Platform:    in.Platform,
				Store:       in.Store,
				StoreAppID:  in.StoreAppID,
				ReleaseDate: in.ReleaseDate,
				Status:      in.Status,
				PriceCents:  in.PriceCents,
				IsFree:      in.IsFree,
				Followers:   in.Followers,
				DataSource:  rec.DataSource,
			})
			if err != nil {
				return fmt.Errorf("insert release: %w", err)
			}
			continue
		}
		if err != nil {
			return err
		}

		if in.ReleaseDate != nil {
			existing.ReleaseDate = in.ReleaseDate
		}
		existing.Status = in.Status
		if in.PriceCents != nil {
			existing.PriceCents = in.PriceCents
		}
		existing.IsFree = in.IsFree
		if in.Followers != nil {
			existing.Followers = in.Followers
		}
		if err := st.Releases.Update(ctx, existing); err != nil {
			return fmt.Errorf("update release: %w", err)
		}
	}
	return nil
}

// upsertCompanies resolves each company reference to a row and links it.
// Insert races surface as duplicate key; the row is re-read and reused.
func (o *Orchestrator) upsertCompanies(ctx context.Context, st storage.Stores, gameID int64, rec *domain.ProcessedGame) error {
	for _, ref := range rec.Companies {
		company, err := o.resolveCompany(ctx, st, ref)
		if err != nil {
			return fmt.Errorf("resolve company %q: %w", ref.Name, err)
		}
		if err := st.Roles.Upsert(ctx, gameID, company.ID, ref.Role); err != nil {
			return fmt.Errorf("link company %q: %w", ref.Name, err)
		}
	}
	return nil
}

func (o *Orchestrator) resolveCompany(ctx context.Context, st storage.Stores, ref domain.CompanyRef) (*domain.Company, error) {
	c, err := st.Companies.GetBySlug(ctx, ref.Slug)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	c, err = st.Companies.GetByName(ctx, ref.Name)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	slug, err := o.freeCompanySlug(ctx, st, ref.Slug)
	if err != nil {
		return nil, err
	}
	c, err = st.Companies.Insert(ctx, &domain.Company{Name: ref.Name, Slug: slug})
	if errors.Is(err, storage.ErrDuplicateKey) {
		// Lost an insert race inside another run; the row exists now.
		if c, rerr := st.Companies.GetBySlug(ctx, slug); rerr == nil {
			return c, nil
		}
		return st.Companies.GetByName(ctx, ref.Name)
	}
	return c, err
}

// freeCompanySlug walks numeric suffixes until the slug is unused.
func (o *Orchestrator) freeCompanySlug(ctx context.Context, st storage.Stores, base string) (string, error) {
	base = normalize.Slugify(base)
	if base == "" {
		return "", fmt.Errorf("empty company slug")
	}
	candidate := base
	for attempt := 2; attempt <= companySuffixAttempts; attempt++ {
		taken, err := st.Companies.SlugTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		suffix := fmt.Sprintf("-%d", attempt)
		candidate = normalize.TruncateSlug(base, normalize.MaxSlugLen-len(suffix)) + suffix
	}
	return "", fmt.Errorf("no free company slug for %q", base)
}

// insertItem writes the in-transaction pipeline_items row.
func (o *Orchestrator) insertItem(ctx context.Context, st storage.Stores, rec *domain.ProcessedGame, opts SaveOptions, res SaveResult) error {
	if opts.RunID == "" {
		return nil
	}
	return st.Items.Insert(ctx, &domain.PipelineItem{
		RunID:      opts.RunID,
		TargetType: rec.TargetType(),
		TargetID:   rec.TargetID(),
		Action:     res.Action,
		Status:     domain.ItemStatusSuccess,
		Reason:     itemReason(res),
	})
}

func identifierFallbacks(rec *domain.ProcessedGame) []string {
	var out []string
	if rec.StoreID != nil {
		out = append(out, fmt.Sprintf("store-%d", *rec.StoreID))
	}
	if rec.MetaID != nil {
		out = append(out, fmt.Sprintf("meta-%d", *rec.MetaID))
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
