package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// CompanyStore implements storage.CompanyStore using PostgreSQL.
type CompanyStore struct {
	q DBTX
}

// NewCompanyStore creates a new CompanyStore.
func NewCompanyStore(q DBTX) *CompanyStore {
	return &CompanyStore{q: q}
}

// Compile-time interface check.
var _ storage.CompanyStore = (*CompanyStore)(nil)

const companyColumns = `id, name, slug, created_at, updated_at`

// GetBySlug retrieves a company by slug, case-insensitively.
func (s *CompanyStore) GetBySlug(ctx context.Context, slug string) (*domain.Company, error) {
	row := s.q.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE lower(slug) = lower($1)`, slug)
	return scanCompanyOrNotFound(row, "get company by slug")
}

// GetByName retrieves a company by name, case-insensitively.
func (s *CompanyStore) GetByName(ctx context.Context, name string) (*domain.Company, error) {
	row := s.q.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE lower(name) = lower($1)`, name)
	return scanCompanyOrNotFound(row, "get company by name")
}

// Insert adds a company. Returns ErrDuplicateKey when the slug or name
// is already taken; callers re-read and continue.
func (s *CompanyStore) Insert(ctx context.Context, c *domain.Company) (*domain.Company, error) {
	if c == nil || c.Name == "" || c.Slug == "" {
		return nil, storage.ErrInvalidInput
	}

	query := `
		INSERT INTO companies (name, slug)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`
	inserted := *c
	if err := s.q.QueryRow(ctx, query, c.Name, c.Slug).Scan(&inserted.ID, &inserted.CreatedAt, &inserted.UpdatedAt); err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("insert company: %w", storage.ErrDuplicateKey)
		}
		return nil, fmt.Errorf("insert company: %w", err)
	}
	return &inserted, nil
}

// SlugTaken reports whether any company uses the slug.
func (s *CompanyStore) SlugTaken(ctx context.Context, slug string) (bool, error) {
	var taken bool
	err := s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM companies WHERE lower(slug) = lower($1))`, slug).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check company slug taken: %w", err)
	}
	return taken, nil
}

func scanCompanyOrNotFound(row pgx.Row, op string) (*domain.Company, error) {
	var c domain.Company
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &c, nil
}
