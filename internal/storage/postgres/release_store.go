package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// GameReleaseStore implements storage.GameReleaseStore using PostgreSQL.
type GameReleaseStore struct {
	q DBTX
}

// NewGameReleaseStore creates a new GameReleaseStore.
func NewGameReleaseStore(q DBTX) *GameReleaseStore {
	return &GameReleaseStore{q: q}
}

// Compile-time interface check.
var _ storage.GameReleaseStore = (*GameReleaseStore)(nil)

const releaseColumns = `
	id, game_id, platform, store, store_app_id, release_date, status,
	price_cents, is_free, followers, data_source, created_at, updated_at
`

// GetByGame retrieves all releases of a game.
func (s *GameReleaseStore) GetByGame(ctx context.Context, gameID int64) ([]*domain.GameRelease, error) {
	query := `
		SELECT ` + releaseColumns + `
		FROM game_releases
		WHERE game_id = $1
		ORDER BY platform ASC, store ASC, id ASC
	`
	rows, err := s.q.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("get releases by game: %w", err)
	}
	defer rows.Close()

	return scanReleases(rows)
}

// Find retrieves the release matching the logical unique key.
func (s *GameReleaseStore) Find(ctx context.Context, gameID int64, platform domain.Platform, store domain.Storefront, storeAppID *string) (*domain.GameRelease, error) {
	appID := ""
	if storeAppID != nil {
		appID = *storeAppID
	}

	query := `
		SELECT ` + releaseColumns + `
		FROM game_releases
		WHERE game_id = $1 AND platform = $2 AND store = $3
		  AND COALESCE(store_app_id, '') = $4
	`
	row := s.q.QueryRow(ctx, query, gameID, string(platform), string(store), appID)
	r, err := scanRelease(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find release: %w", err)
	}
	return r, nil
}

// Insert adds a release row.
func (s *GameReleaseStore) Insert(ctx context.Context, r *domain.GameRelease) (*domain.GameRelease, error) {
	if r == nil || r.GameID == 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO game_releases (
			game_id, platform, store, store_app_id, release_date, status,
			price_cents, is_free, followers, data_source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`

	row := s.q.QueryRow(ctx, query,
		r.GameID,
		string(r.Platform),
		string(r.Store),
		r.StoreAppID,
		r.ReleaseDate,
		string(r.Status),
		r.PriceCents,
		r.IsFree,
		r.Followers,
		string(r.DataSource),
	)

	inserted := *r
	if err := row.Scan(&inserted.ID, &inserted.CreatedAt, &inserted.UpdatedAt); err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("insert release: %w", storage.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("insert release: %w", err)
	}
	return &inserted, nil
}

// Update overwrites the mutable columns of a release row.
func (s *GameReleaseStore) Update(ctx context.Context, r *domain.GameRelease) error {
	if r == nil || r.ID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE game_releases SET
			release_date = $2, status = $3, price_cents = $4, is_free = $5,
			followers = $6, data_source = $7, updated_at = now()
		WHERE id = $1
	`
	tag, err := s.q.Exec(ctx, query,
		r.ID,
		r.ReleaseDate,
		string(r.Status),
		r.PriceCents,
		r.IsFree,
		r.Followers,
		string(r.DataSource),
	)
	if err != nil {
		return fmt.Errorf("update release: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Repoint moves releases from one game to another, skipping rows that
// would collide with an existing key on the target.
func (s *GameReleaseStore) Repoint(ctx context.Context, fromGameID, toGameID int64) error {
	query := `
		UPDATE game_releases src SET game_id = $2, updated_at = now()
		WHERE src.game_id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM game_releases dst
			WHERE dst.game_id = $2
			  AND dst.platform = src.platform
			  AND dst.store = src.store
			  AND COALESCE(dst.store_app_id, '') = COALESCE(src.store_app_id, '')
		  )
	`
	if _, err := s.q.Exec(ctx, query, fromGameID, toGameID); err != nil {
		return fmt.Errorf("repoint releases: %w", err)
	}
	return nil
}

// scanRelease scans a single row into a GameRelease.
func scanRelease(row pgx.Row) (*domain.GameRelease, error) {
	var r domain.GameRelease
	var platform, store, status, dataSource string

	err := row.Scan(
		&r.ID,
		&r.GameID,
		&platform,
		&store,
		&r.StoreAppID,
		&r.ReleaseDate,
		&status,
		&r.PriceCents,
		&r.IsFree,
		&r.Followers,
		&dataSource,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Platform = domain.Platform(platform)
	r.Store = domain.Storefront(store)
	r.Status = domain.ReleaseStatus(status)
	r.DataSource = domain.DataSource(dataSource)
	return &r, nil
}

// scanReleases scans multiple rows into a slice of GameRelease.
func scanReleases(rows pgx.Rows) ([]*domain.GameRelease, error) {
	var releases []*domain.GameRelease
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, fmt.Errorf("scan release row: %w", err)
		}
		releases = append(releases, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate release rows: %w", err)
	}
	return releases, nil
}
