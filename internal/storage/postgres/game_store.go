package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// GameStore implements storage.GameStore using PostgreSQL.
type GameStore struct {
	q DBTX
}

// NewGameStore creates a new GameStore.
func NewGameStore(q DBTX) *GameStore {
	return &GameStore{q: q}
}

// Compile-time interface check.
var _ storage.GameStore = (*GameStore)(nil)

const gameColumns = `
	id, store_id, meta_id, name, original_name, slug, original_slug,
	game_type, parent_store_id, parent_meta_id, release_date,
	release_date_raw, release_status, coming_soon, popularity_score,
	followers_cache, platforms, store_last_refresh_at, created_at, updated_at
`

// Insert adds a new game and returns it with ID and timestamps set.
func (s *GameStore) Insert(ctx context.Context, g *domain.Game) (*domain.Game, error) {
	if g == nil || g.Name == "" || g.Slug == "" {
		return nil, storage.ErrInvalidInput
	}
	if !g.HasIdentifier() {
		return nil, fmt.Errorf("%w: game without external identifier", storage.ErrInvalidInput)
	}

	platforms, err := json.Marshal(g.Platforms)
	if err != nil {
		return nil, fmt.Errorf("marshal platforms: %w", err)
	}

	query := `
		INSERT INTO games (
			store_id, meta_id, name, original_name, slug, original_slug,
			game_type, parent_store_id, parent_meta_id, release_date,
			release_date_raw, release_status, coming_soon, popularity_score,
			followers_cache, platforms, store_last_refresh_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at
	`

	row := s.q.QueryRow(ctx, query,
		g.StoreID,
		g.MetaID,
		g.Name,
		g.OriginalName,
		g.Slug,
		g.OriginalSlug,
		string(g.GameType),
		g.ParentStoreID,
		g.ParentMetaID,
		g.ReleaseDate,
		g.ReleaseDateRaw,
		string(g.ReleaseStatus),
		g.ComingSoon,
		g.PopularityScore,
		g.FollowersCache,
		platforms,
		g.StoreLastRefreshAt,
	)

	inserted := *g
	if err := row.Scan(&inserted.ID, &inserted.CreatedAt, &inserted.UpdatedAt); err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("insert game: %w", storage.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("insert game: %w", err)
	}
	return &inserted, nil
}

// Update overwrites the mutable columns of an existing game.
func (s *GameStore) Update(ctx context.Context, g *domain.Game) error {
	if g == nil || g.ID == 0 {
		return storage.ErrInvalidInput
	}

	platforms, err := json.Marshal(g.Platforms)
	if err != nil {
		return fmt.Errorf("marshal platforms: %w", err)
	}

	query := `
		UPDATE games SET
			store_id = $2, meta_id = $3, name = $4, original_name = $5,
			slug = $6, original_slug = $7, game_type = $8,
			parent_store_id = $9, parent_meta_id = $10, release_date = $11,
			release_date_raw = $12, release_status = $13, coming_soon = $14,
			popularity_score = $15, followers_cache = $16, platforms = $17,
			store_last_refresh_at = $18, updated_at = now()
		WHERE id = $1
	`

	tag, err := s.q.Exec(ctx, query,
		g.ID,
		g.StoreID,
		g.MetaID,
		g.Name,
		g.OriginalName,
		g.Slug,
		g.OriginalSlug,
		string(g.GameType),
		g.ParentStoreID,
		g.ParentMetaID,
		g.ReleaseDate,
		g.ReleaseDateRaw,
		string(g.ReleaseStatus),
		g.ComingSoon,
		g.PopularityScore,
		g.FollowersCache,
		platforms,
		g.StoreLastRefreshAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("update game: %w", storage.ErrDuplicateKey)
		}
		return fmt.Errorf("update game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetByID retrieves a game by internal ID.
func (s *GameStore) GetByID(ctx context.Context, id int64) (*domain.Game, error) {
	return s.getOne(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id)
}

// GetByStoreID retrieves a game by its Store identifier.
func (s *GameStore) GetByStoreID(ctx context.Context, storeID int64) (*domain.Game, error) {
	return s.getOne(ctx, `SELECT `+gameColumns+` FROM games WHERE store_id = $1`, storeID)
}

// GetByMetaID retrieves a game by its Meta identifier.
func (s *GameStore) GetByMetaID(ctx context.Context, metaID int64) (*domain.Game, error) {
	return s.getOne(ctx, `SELECT `+gameColumns+` FROM games WHERE meta_id = $1`, metaID)
}

// GetBySlug retrieves a game matching either slug column case-insensitively.
func (s *GameStore) GetBySlug(ctx context.Context, slug string) (*domain.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE lower(slug) = lower($1) OR lower(original_slug) = lower($1)
	`
	return s.getOne(ctx, query, slug)
}

// SlugTaken reports whether any other game uses the slug on either column.
func (s *GameStore) SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM games
			WHERE (lower(slug) = lower($1) OR lower(original_slug) = lower($1))
			  AND id <> $2
		)
	`
	var taken bool
	if err := s.q.QueryRow(ctx, query, slug, excludeID).Scan(&taken); err != nil {
		return false, fmt.Errorf("check slug taken: %w", err)
	}
	return taken, nil
}

// ListMatchCandidates retrieves cross-source match candidates with their
// company slugs and PC release flag resolved.
func (s *GameStore) ListMatchCandidates(ctx context.Context, q storage.CandidateQuery) ([]*domain.MatchCandidate, error) {
	if len(q.Slugs) == 0 && len(q.Names) == 0 {
		return nil, nil
	}

	var conds []string
	args := []any{}
	if len(q.Slugs) > 0 {
		args = append(args, q.Slugs)
		p := fmt.Sprintf("$%d", len(args))
		conds = append(conds, fmt.Sprintf("lower(g.slug) = ANY(%s) OR lower(g.original_slug) = ANY(%s)", p, p))
	}
	if len(q.Names) > 0 {
		args = append(args, q.Names)
		p := fmt.Sprintf("$%d", len(args))
		conds = append(conds, fmt.Sprintf("lower(g.name) = ANY(%s) OR lower(g.original_name) = ANY(%s)", p, p))
	}

	where := "(" + strings.Join(conds, " OR ") + ")"
	if q.MissingStoreID {
		where += " AND g.store_id IS NULL"
	}
	if q.MissingMetaID {
		where += " AND g.meta_id IS NULL"
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 25
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT
			g.id, g.store_id, g.meta_id, g.name, g.original_name,
			g.slug, g.original_slug, g.release_date,
			g.game_type = 'dlc',
			COALESCE((
				SELECT array_agg(c.slug ORDER BY c.slug)
				FROM game_company_roles r
				JOIN companies c ON c.id = r.company_id
				WHERE r.game_id = g.id
			), '{}'),
			COALESCE((
				SELECT array_agg(DISTINCT d.genre)
				FROM (SELECT unnest(gd.genres) AS genre FROM game_details gd WHERE gd.game_id = g.id) d
			), '{}'),
			EXISTS (
				SELECT 1 FROM game_releases gr
				WHERE gr.game_id = g.id AND gr.platform = 'pc'
			) OR (g.platforms->>'pc')::boolean
		FROM games g
		WHERE %s
		ORDER BY g.popularity_score DESC, g.id ASC
		LIMIT $%d
	`, where, len(args))

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list match candidates: %w", err)
	}
	defer rows.Close()

	var out []*domain.MatchCandidate
	for rows.Next() {
		var c domain.MatchCandidate
		err := rows.Scan(
			&c.GameID,
			&c.StoreID,
			&c.MetaID,
			&c.Name,
			&c.OriginalName,
			&c.Slug,
			&c.OriginalSlug,
			&c.ReleaseDate,
			&c.IsDLC,
			&c.CompanySlugs,
			&c.Genres,
			&c.HasPCRelease,
		)
		if err != nil {
			return nil, fmt.Errorf("scan match candidate row: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate match candidate rows: %w", err)
	}
	return out, nil
}

// ListStoreIDs retrieves all non-null store identifiers.
func (s *GameStore) ListStoreIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.q.Query(ctx, `SELECT store_id FROM games WHERE store_id IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list store ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan store id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate store ids: %w", err)
	}
	return ids, nil
}

// ListRefreshWindow retrieves coming-soon games and games releasing
// within [now-7d, now+90d], least recently refreshed first.
func (s *GameStore) ListRefreshWindow(ctx context.Context, now time.Time, limit int) ([]*domain.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games
		WHERE coming_soon = TRUE
		   OR (release_date IS NOT NULL AND release_date BETWEEN $1 AND $2)
		ORDER BY store_last_refresh_at ASC NULLS FIRST, popularity_score DESC, id ASC
		LIMIT $3
	`
	return s.getMany(ctx, query, now.AddDate(0, 0, -7), now.AddDate(0, 0, 90), limit)
}

// ListMissingDetails retrieves base games with popularity >= 40 lacking
// a detail row or any release row.
func (s *GameStore) ListMissingDetails(ctx context.Context, limit int) ([]*domain.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games g
		WHERE g.game_type = 'game'
		  AND g.popularity_score >= 40
		  AND (
			NOT EXISTS (SELECT 1 FROM game_details d WHERE d.game_id = g.id)
			OR NOT EXISTS (SELECT 1 FROM game_releases r WHERE r.game_id = g.id)
		  )
		ORDER BY g.popularity_score DESC, g.id ASC
		LIMIT $1
	`
	return s.getMany(ctx, query, limit)
}

// ListFullRefresh pages through games with a store ID, a detail and at
// least one release, by ascending internal ID.
func (s *GameStore) ListFullRefresh(ctx context.Context, afterID int64, limit int) ([]*domain.Game, error) {
	query := `
		SELECT ` + gameColumns + `
		FROM games g
		WHERE g.id > $1
		  AND g.store_id IS NOT NULL
		  AND EXISTS (SELECT 1 FROM game_details d WHERE d.game_id = g.id)
		  AND EXISTS (SELECT 1 FROM game_releases r WHERE r.game_id = g.id)
		ORDER BY g.id ASC
		LIMIT $2
	`
	return s.getMany(ctx, query, afterID, limit)
}

// ListSlugCollisionPairs finds slug pairs that differ only by a trailing
// "-N" collision suffix.
func (s *GameStore) ListSlugCollisionPairs(ctx context.Context, limit int) ([]storage.SlugCollisionPair, error) {
	query := `
		SELECT keep.id, dup.id, keep.slug
		FROM games keep
		JOIN games dup ON dup.slug ~ ('^' || keep.slug || '-[2-9]$')
		ORDER BY keep.id ASC, dup.id ASC
		LIMIT $1
	`
	rows, err := s.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list slug collision pairs: %w", err)
	}
	defer rows.Close()

	var pairs []storage.SlugCollisionPair
	for rows.Next() {
		var p storage.SlugCollisionPair
		if err := rows.Scan(&p.KeepID, &p.DropID, &p.BaseSlug); err != nil {
			return nil, fmt.Errorf("scan slug collision pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slug collision pairs: %w", err)
	}
	return pairs, nil
}

// Delete removes a game row; child rows follow via ON DELETE CASCADE.
func (s *GameStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM games WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *GameStore) getOne(ctx context.Context, query string, args ...any) (*domain.Game, error) {
	g, err := scanGame(s.q.QueryRow(ctx, query, args...))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get game: %w", err)
	}
	return g, nil
}

func (s *GameStore) getMany(ctx context.Context, query string, args ...any) ([]*domain.Game, error) {
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var games []*domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate game rows: %w", err)
	}
	return games, nil
}

// scanGame scans a single row into a Game.
func scanGame(row pgx.Row) (*domain.Game, error) {
	var g domain.Game
	var gameType, releaseStatus string
	var platforms []byte

	err := row.Scan(
		&g.ID,
		&g.StoreID,
		&g.MetaID,
		&g.Name,
		&g.OriginalName,
		&g.Slug,
		&g.OriginalSlug,
		&gameType,
		&g.ParentStoreID,
		&g.ParentMetaID,
		&g.ReleaseDate,
		&g.ReleaseDateRaw,
		&releaseStatus,
		&g.ComingSoon,
		&g.PopularityScore,
		&g.FollowersCache,
		&platforms,
		&g.StoreLastRefreshAt,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.GameType = domain.GameType(gameType)
	g.ReleaseStatus = domain.ReleaseStatus(releaseStatus)
	if len(platforms) > 0 {
		if err := json.Unmarshal(platforms, &g.Platforms); err != nil {
			return nil, fmt.Errorf("unmarshal platforms: %w", err)
		}
	}
	return &g, nil
}
