package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// GameDetailStore implements storage.GameDetailStore using PostgreSQL.
type GameDetailStore struct {
	q DBTX
}

// NewGameDetailStore creates a new GameDetailStore.
func NewGameDetailStore(q DBTX) *GameDetailStore {
	return &GameDetailStore{q: q}
}

// Compile-time interface check.
var _ storage.GameDetailStore = (*GameDetailStore)(nil)

const detailColumns = `
	id, game_id, screenshots, video_url, description, website, genres,
	tags, supported_languages, header_image, metacritic_score,
	opencritic_score, review_count, rating, created_at, updated_at
`

// GetByGameID retrieves the detail row of a game.
func (s *GameDetailStore) GetByGameID(ctx context.Context, gameID int64) (*domain.GameDetail, error) {
	row := s.q.QueryRow(ctx, `SELECT `+detailColumns+` FROM game_details WHERE game_id = $1`, gameID)
	d, err := scanDetail(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get detail by game: %w", err)
	}
	return d, nil
}

// Insert adds a detail row. Returns ErrDuplicateKey if the game already
// has one.
func (s *GameDetailStore) Insert(ctx context.Context, d *domain.GameDetail) (*domain.GameDetail, error) {
	if d == nil || d.GameID == 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO game_details (
			game_id, screenshots, video_url, description, website, genres,
			tags, supported_languages, header_image, metacritic_score,
			opencritic_score, review_count, rating
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at, updated_at
	`

	row := s.q.QueryRow(ctx, query,
		d.GameID,
		d.Screenshots,
		d.VideoURL,
		d.Description,
		d.Website,
		d.Genres,
		d.Tags,
		d.SupportedLanguages,
		d.HeaderImage,
		d.MetacriticScore,
		d.OpencriticScore,
		d.ReviewCount,
		d.Rating,
	)

	inserted := *d
	if err := row.Scan(&inserted.ID, &inserted.CreatedAt, &inserted.UpdatedAt); err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("insert detail: %w", storage.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("insert detail: %w", err)
	}
	return &inserted, nil
}

// Update overwrites an existing detail row.
func (s *GameDetailStore) Update(ctx context.Context, d *domain.GameDetail) error {
	if d == nil || d.ID == 0 {
		return storage.ErrInvalidInput
	}

	query := `
		UPDATE game_details SET
			screenshots = $2, video_url = $3, description = $4, website = $5,
			genres = $6, tags = $7, supported_languages = $8, header_image = $9,
			metacritic_score = $10, opencritic_score = $11, review_count = $12,
			rating = $13, updated_at = now()
		WHERE id = $1
	`

	tag, err := s.q.Exec(ctx, query,
		d.ID,
		d.Screenshots,
		d.VideoURL,
		d.Description,
		d.Website,
		d.Genres,
		d.Tags,
		d.SupportedLanguages,
		d.HeaderImage,
		d.MetacriticScore,
		d.OpencriticScore,
		d.ReviewCount,
		d.Rating,
	)
	if err != nil {
		return fmt.Errorf("update detail: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Repoint moves the detail of fromGameID to toGameID. No-op when the
// source has no detail or the target already has one.
func (s *GameDetailStore) Repoint(ctx context.Context, fromGameID, toGameID int64) error {
	query := `
		UPDATE game_details SET game_id = $2, updated_at = now()
		WHERE game_id = $1
		  AND NOT EXISTS (SELECT 1 FROM game_details WHERE game_id = $2)
	`
	if _, err := s.q.Exec(ctx, query, fromGameID, toGameID); err != nil {
		return fmt.Errorf("repoint detail: %w", err)
	}
	return nil
}

// scanDetail scans a single row into a GameDetail.
func scanDetail(row pgx.Row) (*domain.GameDetail, error) {
	var d domain.GameDetail
	err := row.Scan(
		&d.ID,
		&d.GameID,
		&d.Screenshots,
		&d.VideoURL,
		&d.Description,
		&d.Website,
		&d.Genres,
		&d.Tags,
		&d.SupportedLanguages,
		&d.HeaderImage,
		&d.MetacriticScore,
		&d.OpencriticScore,
		&d.ReviewCount,
		&d.Rating,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
