package memory

import (
	"context"
	"fmt"
	"strings"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// CompanyStore is an in-memory implementation of storage.CompanyStore.
type CompanyStore struct {
	s *session
}

// Compile-time interface check.
var _ storage.CompanyStore = (*CompanyStore)(nil)

// GetBySlug retrieves a company by slug, case-insensitively.
func (st *CompanyStore) GetBySlug(_ context.Context, slug string) (*domain.Company, error) {
	defer st.s.acquire()()

	needle := strings.ToLower(slug)
	for _, c := range st.s.state().companies {
		if strings.ToLower(c.Slug) == needle {
			cp := *c
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetByName retrieves a company by name, case-insensitively.
func (st *CompanyStore) GetByName(_ context.Context, name string) (*domain.Company, error) {
	defer st.s.acquire()()

	needle := strings.ToLower(name)
	for _, c := range st.s.state().companies {
		if strings.ToLower(c.Name) == needle {
			cp := *c
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// Insert adds a company, enforcing slug and name uniqueness.
func (st *CompanyStore) Insert(_ context.Context, c *domain.Company) (*domain.Company, error) {
	if c == nil || c.Name == "" || c.Slug == "" {
		return nil, storage.ErrInvalidInput
	}

	defer st.s.acquire()()
	state := st.s.state()

	for _, existing := range state.companies {
		if strings.EqualFold(existing.Slug, c.Slug) || strings.EqualFold(existing.Name, c.Name) {
			return nil, fmt.Errorf("insert company: %w", storage.ErrDuplicateKey)
		}
	}

	state.nextCompanyID++
	now := st.s.now()
	inserted := *c
	inserted.ID = state.nextCompanyID
	inserted.CreatedAt = now
	inserted.UpdatedAt = now
	state.companies[inserted.ID] = &inserted

	cp := inserted
	return &cp, nil
}

// SlugTaken reports whether any company uses the slug.
func (st *CompanyStore) SlugTaken(_ context.Context, slug string) (bool, error) {
	defer st.s.acquire()()

	for _, c := range st.s.state().companies {
		if strings.EqualFold(c.Slug, slug) {
			return true, nil
		}
	}
	return false, nil
}
