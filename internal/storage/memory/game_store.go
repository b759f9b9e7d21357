package memory

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// GameStore is an in-memory implementation of storage.GameStore.
type GameStore struct {
	s *session
}

// Compile-time interface check.
var _ storage.GameStore = (*GameStore)(nil)

// Insert adds a new game, enforcing the same unique constraints as the
// Postgres schema.
func (st *GameStore) Insert(_ context.Context, g *domain.Game) (*domain.Game, error) {
	if g == nil || g.Name == "" || g.Slug == "" {
		return nil, storage.ErrInvalidInput
	}
	if !g.HasIdentifier() {
		return nil, fmt.Errorf("%w: game without external identifier", storage.ErrInvalidInput)
	}

	defer st.s.acquire()()
	state := st.s.state()

	for _, other := range state.games {
		if violatesGameUnique(g, other) {
			return nil, fmt.Errorf("insert game: %w", storage.ErrDuplicateKey)
		}
	}

	state.nextGameID++
	now := st.s.now()
	inserted := copyGame(g)
	inserted.ID = state.nextGameID
	inserted.CreatedAt = now
	inserted.UpdatedAt = now
	state.games[inserted.ID] = inserted
	return copyGame(inserted), nil
}

// Update overwrites an existing game row.
func (st *GameStore) Update(_ context.Context, g *domain.Game) error {
	if g == nil || g.ID == 0 {
		return storage.ErrInvalidInput
	}

	defer st.s.acquire()()
	state := st.s.state()

	existing, ok := state.games[g.ID]
	if !ok {
		return storage.ErrNotFound
	}
	for id, other := range state.games {
		if id == g.ID {
			continue
		}
		if violatesGameUnique(g, other) {
			return fmt.Errorf("update game: %w", storage.ErrDuplicateKey)
		}
	}

	updated := copyGame(g)
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = st.s.now()
	state.games[g.ID] = updated
	return nil
}

// GetByID retrieves a game by internal ID.
func (st *GameStore) GetByID(_ context.Context, id int64) (*domain.Game, error) {
	defer st.s.acquire()()

	g, ok := st.s.state().games[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return copyGame(g), nil
}

// GetByStoreID retrieves a game by its Store identifier.
func (st *GameStore) GetByStoreID(_ context.Context, storeID int64) (*domain.Game, error) {
	defer st.s.acquire()()

	for _, g := range st.s.state().games {
		if g.StoreID != nil && *g.StoreID == storeID {
			return copyGame(g), nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByMetaID retrieves a game by its Meta identifier.
func (st *GameStore) GetByMetaID(_ context.Context, metaID int64) (*domain.Game, error) {
	defer st.s.acquire()()

	for _, g := range st.s.state().games {
		if g.MetaID != nil && *g.MetaID == metaID {
			return copyGame(g), nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetBySlug retrieves a game matching either slug column case-insensitively.
func (st *GameStore) GetBySlug(_ context.Context, slug string) (*domain.Game, error) {
	defer st.s.acquire()()

	needle := strings.ToLower(slug)
	for _, g := range st.s.state().games {
		if strings.ToLower(g.Slug) == needle || strings.ToLower(g.OriginalSlug) == needle {
			return copyGame(g), nil
		}
	}
	return nil, storage.ErrNotFound
}

// SlugTaken reports whether any other game uses the slug on either column.
func (st *GameStore) SlugTaken(_ context.Context, slug string, excludeID int64) (bool, error) {
	defer st.s.acquire()()

	needle := strings.ToLower(slug)
	for id, g := range st.s.state().games {
		if id == excludeID {
			continue
		}
		if strings.ToLower(g.Slug) == needle || strings.ToLower(g.OriginalSlug) == needle {
			return true, nil
		}
	}
	return false, nil
}

// ListMatchCandidates retrieves cross-source match candidates with their
// company slugs and PC release flag resolved.
func (st *GameStore) ListMatchCandidates(_ context.Context, q storage.CandidateQuery) ([]*domain.MatchCandidate, error) {
	if len(q.Slugs) == 0 && len(q.Names) == 0 {
		return nil, nil
	}

	defer st.s.acquire()()
	state := st.s.state()

	slugs := toLowerSet(q.Slugs)
	names := toLowerSet(q.Names)

	var matched []*domain.Game
	for _, g := range state.games {
		if q.MissingStoreID && g.StoreID != nil {
			continue
		}
		if q.MissingMetaID && g.MetaID != nil {
			continue
		}
		_, slugHit := slugs[strings.ToLower(g.Slug)]
		if !slugHit {
			_, slugHit = slugs[strings.ToLower(g.OriginalSlug)]
		}
		_, nameHit := names[strings.ToLower(g.Name)]
		if !nameHit {
			_, nameHit = names[strings.ToLower(g.OriginalName)]
		}
		if slugHit || nameHit {
			matched = append(matched, g)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].PopularityScore != matched[j].PopularityScore {
			return matched[i].PopularityScore > matched[j].PopularityScore
		}
		return matched[i].ID < matched[j].ID
	})

	limit := q.Limit
	if limit <= 0 {
		limit = 25
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*domain.MatchCandidate, 0, len(matched))
	for _, g := range matched {
		out = append(out, st.buildCandidate(state, g))
	}
	return out, nil
}

func (st *GameStore) buildCandidate(state *state, g *domain.Game) *domain.MatchCandidate {
	c := &domain.MatchCandidate{
		GameID:       g.ID,
		StoreID:      g.StoreID,
		MetaID:       g.MetaID,
		Name:         g.Name,
		OriginalName: g.OriginalName,
		Slug:         g.Slug,
		OriginalSlug: g.OriginalSlug,
		ReleaseDate:  g.ReleaseDate,
		IsDLC:        g.IsDLC(),
		HasPCRelease: g.Platforms.PC,
	}
	for _, link := range state.roles {
		if link.GameID != g.ID {
			continue
		}
		if co, ok := state.companies[link.CompanyID]; ok {
			c.CompanySlugs = append(c.CompanySlugs, co.Slug)
		}
	}
	sort.Strings(c.CompanySlugs)
	c.CompanySlugs = dedupeSorted(c.CompanySlugs)
	for _, d := range state.details {
		if d.GameID == g.ID {
			c.Genres = append([]string(nil), d.Genres...)
			break
		}
	}
	for _, r := range state.releases {
		if r.GameID == g.ID && r.Platform == domain.PlatformPC {
			c.HasPCRelease = true
			break
		}
	}
	return c
}

// ListStoreIDs retrieves all non-null store identifiers.
func (st *GameStore) ListStoreIDs(_ context.Context) ([]int64, error) {
	defer st.s.acquire()()

	var ids []int64
	for _, g := range st.s.state().games {
		if g.StoreID != nil {
			ids = append(ids, *g.StoreID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ListRefreshWindow retrieves coming-soon games and games releasing
// within [now-7d, now+90d], least recently refreshed first.
func (st *GameStore) ListRefreshWindow(_ context.Context, now time.Time, limit int) ([]*domain.Game, error) {
	defer st.s.acquire()()

	from := now.AddDate(0, 0, -7)
	to := now.AddDate(0, 0, 90)

	var matched []*domain.Game
	for _, g := range st.s.state().games {
		inWindow := g.ReleaseDate != nil && !g.ReleaseDate.Before(from) && !g.ReleaseDate.After(to)
		if g.ComingSoon || inWindow {
			matched = append(matched, g)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch {
		case a.StoreLastRefreshAt == nil && b.StoreLastRefreshAt != nil:
			return true
		case a.StoreLastRefreshAt != nil && b.StoreLastRefreshAt == nil:
			return false
		case a.StoreLastRefreshAt != nil && !a.StoreLastRefreshAt.Equal(*b.StoreLastRefreshAt):
			return a.StoreLastRefreshAt.Before(*b.StoreLastRefreshAt)
		case a.PopularityScore != b.PopularityScore:
			return a.PopularityScore > b.PopularityScore
		}
		return a.ID < b.ID
	})

	return copyLimited(matched, limit), nil
}

// ListMissingDetails retrieves base games with popularity >= 40 lacking
// a detail row or any release row.
func (st *GameStore) ListMissingDetails(_ context.Context, limit int) ([]*domain.Game, error) {
	defer st.s.acquire()()
	state := st.s.state()

	hasDetail := make(map[int64]bool)
	for _, d := range state.details {
		hasDetail[d.GameID] = true
	}
	hasRelease := make(map[int64]bool)
	for _, r := range state.releases {
		hasRelease[r.GameID] = true
	}

	var matched []*domain.Game
	for _, g := range state.games {
		if g.GameType != domain.GameTypeGame || g.PopularityScore < domain.DetailPopularityThreshold {
			continue
		}
		if !hasDetail[g.ID] || !hasRelease[g.ID] {
			matched = append(matched, g)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].PopularityScore != matched[j].PopularityScore {
			return matched[i].PopularityScore > matched[j].PopularityScore
		}
		return matched[i].ID < matched[j].ID
	})

	return copyLimited(matched, limit), nil
}

// ListFullRefresh pages through games with a store ID, a detail and at
// least one release, by ascending internal ID.
func (st *GameStore) ListFullRefresh(_ context.Context, afterID int64, limit int) ([]*domain.Game, error) {
	defer st.s.acquire()()
	state := st.s.state()

	hasDetail := make(map[int64]bool)
	for _, d := range state.details {
		hasDetail[d.GameID] = true
	}
	hasRelease := make(map[int64]bool)
	for _, r := range state.releases {
		hasRelease[r.GameID] = true
	}

	var matched []*domain.Game
	for _, g := range state.games {
		if g.ID > afterID && g.StoreID != nil && hasDetail[g.ID] && hasRelease[g.ID] {
			matched = append(matched, g)
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	return copyLimited(matched, limit), nil
}

var collisionSuffixRe = regexp.MustCompile(`-[2-9]$`)

// ListSlugCollisionPairs finds slug pairs that differ only by a trailing
// "-N" collision suffix.
func (st *GameStore) ListSlugCollisionPairs(_ context.Context, limit int) ([]storage.SlugCollisionPair, error) {
	defer st.s.acquire()()
	state := st.s.state()

	bySlug := make(map[string]*domain.Game, len(state.games))
	for _, g := range state.games {
		bySlug[g.Slug] = g
	}

	var pairs []storage.SlugCollisionPair
	for _, dup := range state.games {
		if !collisionSuffixRe.MatchString(dup.Slug) {
			continue
		}
		base := dup.Slug[:len(dup.Slug)-2]
		if keep, ok := bySlug[base]; ok {
			pairs = append(pairs, storage.SlugCollisionPair{
				KeepID:   keep.ID,
				DropID:   dup.ID,
				BaseSlug: base,
			})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].KeepID != pairs[j].KeepID {
			return pairs[i].KeepID < pairs[j].KeepID
		}
		return pairs[i].DropID < pairs[j].DropID
	})
	if limit > 0 && len(pairs) > limit {
		pairs = pairs[:limit]
	}
	return pairs, nil
}

// Delete removes a game and cascades to its child rows.
func (st *GameStore) Delete(_ context.Context, id int64) error {
	defer st.s.acquire()()
	state := st.s.state()

	if _, ok := state.games[id]; !ok {
		return storage.ErrNotFound
	}
	delete(state.games, id)
	for did, d := range state.details {
		if d.GameID == id {
			delete(state.details, did)
		}
	}
	for rid, r := range state.releases {
		if r.GameID == id {
			delete(state.releases, rid)
		}
	}
	for lid, l := range state.roles {
		if l.GameID == id {
			delete(state.roles, lid)
		}
	}
	return nil
}

func violatesGameUnique(g, other *domain.Game) bool {
	if g.StoreID != nil && other.StoreID != nil && *g.StoreID == *other.StoreID {
		return true
	}
	if g.MetaID != nil && other.MetaID != nil && *g.MetaID == *other.MetaID {
		return true
	}
	slugs := []string{strings.ToLower(g.Slug), strings.ToLower(g.OriginalSlug)}
	for _, s := range slugs {
		if s == strings.ToLower(other.Slug) || s == strings.ToLower(other.OriginalSlug) {
			return true
		}
	}
	return false
}

func toLowerSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[strings.ToLower(v)] = struct{}{}
		}
	}
	return set
}

func dedupeSorted(values []string) []string {
	out := values[:0]
	var last string
	for i, v := range values {
		if i == 0 || v != last {
			out = append(out, v)
		}
		last = v
	}
	return out
}

func copyLimited(games []*domain.Game, limit int) []*domain.Game {
	if limit > 0 && len(games) > limit {
		games = games[:limit]
	}
	out := make([]*domain.Game, len(games))
	for i, g := range games {
		out[i] = copyGame(g)
	}
	return out
}
