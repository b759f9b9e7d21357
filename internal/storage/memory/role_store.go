package memory

import (
	"context"
	"sort"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// GameCompanyRoleStore is an in-memory implementation of
// storage.GameCompanyRoleStore.
type GameCompanyRoleStore struct {
	s *session
}

// Compile-time interface check.
var _ storage.GameCompanyRoleStore = (*GameCompanyRoleStore)(nil)

// Upsert links a game to a company in a role; an existing link is left
// untouched.
func (st *GameCompanyRoleStore) Upsert(_ context.Context, gameID, companyID int64, role domain.CompanyRole) error {
	if gameID == 0 || companyID == 0 || !role.IsValid() {
		return storage.ErrInvalidInput
	}

	defer st.s.acquire()()
	state := st.s.state()

	for _, l := range state.roles {
		if l.GameID == gameID && l.CompanyID == companyID && l.Role == role {
			return nil
		}
	}

	state.nextRoleID++
	state.roles[state.nextRoleID] = &domain.GameCompanyRole{
		ID:        state.nextRoleID,
		GameID:    gameID,
		CompanyID: companyID,
		Role:      role,
		CreatedAt: st.s.now(),
	}
	return nil
}

// ListByGame retrieves all role links of a game.
func (st *GameCompanyRoleStore) ListByGame(_ context.Context, gameID int64) ([]*domain.GameCompanyRole, error) {
	defer st.s.acquire()()

	var out []*domain.GameCompanyRole
	for _, l := range st.s.state().roles {
		if l.GameID == gameID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Repoint moves role links from one game to another, dropping links
// that already exist on the target.
func (st *GameCompanyRoleStore) Repoint(_ context.Context, fromGameID, toGameID int64) error {
	defer st.s.acquire()()
	state := st.s.state()

	type key struct {
		company int64
		role    domain.CompanyRole
	}
	taken := make(map[key]bool)
	for _, l := range state.roles {
		if l.GameID == toGameID {
			taken[key{l.CompanyID, l.Role}] = true
		}
	}
	for id, l := range state.roles {
		if l.GameID != fromGameID {
			continue
		}
		if taken[key{l.CompanyID, l.Role}] {
			delete(state.roles, id)
			continue
		}
		l.GameID = toGameID
	}
	return nil
}
