package postgres

import (
	"context"
	"fmt"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// GameCompanyRoleStore implements storage.GameCompanyRoleStore using
// PostgreSQL.
type GameCompanyRoleStore struct {
	q DBTX
}

// NewGameCompanyRoleStore creates a new GameCompanyRoleStore.
func NewGameCompanyRoleStore(q DBTX) *GameCompanyRoleStore {
	return &GameCompanyRoleStore{q: q}
}

// Compile-time interface check.
var _ storage.GameCompanyRoleStore = (*GameCompanyRoleStore)(nil)

// Upsert links a game to a company in a role; an existing link is left
// untouched.
func (s *GameCompanyRoleStore) Upsert(ctx context.Context, gameID, companyID int64, role domain.CompanyRole) error {
	if gameID == 0 || companyID == 0 || !role.IsValid() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO game_company_roles (game_id, company_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (game_id, company_id, role) DO NOTHING
	`
	if _, err := s.q.Exec(ctx, query, gameID, companyID, string(role)); err != nil {
		return fmt.Errorf("upsert company role: %w", err)
	}
	return nil
}

// ListByGame retrieves all role links of a game.
func (s *GameCompanyRoleStore) ListByGame(ctx context.Context, gameID int64) ([]*domain.GameCompanyRole, error) {
	query := `
		SELECT id, game_id, company_id, role, created_at
		FROM game_company_roles
		WHERE game_id = $1
		ORDER BY id ASC
	`
	rows, err := s.q.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("list company roles: %w", err)
	}
	defer rows.Close()

	var links []*domain.GameCompanyRole
	for rows.Next() {
		var l domain.GameCompanyRole
		var role string
		if err := rows.Scan(&l.ID, &l.GameID, &l.CompanyID, &role, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan company role row: %w", err)
		}
		l.Role = domain.CompanyRole(role)
		links = append(links, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate company role rows: %w", err)
	}
	return links, nil
}

// Repoint moves role links from one game to another, dropping links
// that already exist on the target.
func (s *GameCompanyRoleStore) Repoint(ctx context.Context, fromGameID, toGameID int64) error {
	del := `
		DELETE FROM game_company_roles src
		WHERE src.game_id = $1
		  AND EXISTS (
			SELECT 1 FROM game_company_roles dst
			WHERE dst.game_id = $2
			  AND dst.company_id = src.company_id
			  AND dst.role = src.role
		  )
	`
	if _, err := s.q.Exec(ctx, del, fromGameID, toGameID); err != nil {
		return fmt.Errorf("repoint company roles: %w", err)
	}

	upd := `UPDATE game_company_roles SET game_id = $2 WHERE game_id = $1`
	if _, err := s.q.Exec(ctx, upd, fromGameID, toGameID); err != nil {
		return fmt.Errorf("repoint company roles: %w", err)
	}
	return nil
}
