package memory

import (
	"context"
	"fmt"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// GameDetailStore is an in-memory implementation of storage.GameDetailStore.
type GameDetailStore struct {
	s *session
}

// Compile-time interface check.
var _ storage.GameDetailStore = (*GameDetailStore)(nil)

// GetByGameID retrieves the detail row of a game.
func (st *GameDetailStore) GetByGameID(_ context.Context, gameID int64) (*domain.GameDetail, error) {
	defer st.s.acquire()()

	for _, d := range st.s.state().details {
		if d.GameID == gameID {
			return copyDetail(d), nil
		}
	}
	return nil, storage.ErrNotFound
}

// Insert adds a detail row. Returns ErrDuplicateKey if the game already
// has one.
func (st *GameDetailStore) Insert(_ context.Context, d *domain.GameDetail) (*domain.GameDetail, error) {
	if d == nil || d.GameID == 0 {
		return nil, storage.ErrInvalidInput
	}

	defer st.s.acquire()()
	state := st.s.state()

	for _, existing := range state.details {
		if existing.GameID == d.GameID {
			return nil, fmt.Errorf("insert detail: %w", storage.ErrDuplicateKey)
		}
	}

	state.nextDetailID++
	now := st.s.now()
	inserted := copyDetail(d)
	inserted.ID = state.nextDetailID
	inserted.CreatedAt = now
	inserted.UpdatedAt = now
	state.details[inserted.ID] = inserted
	return copyDetail(inserted), nil
}

// Update overwrites an existing detail row.
func (st *GameDetailStore) Update(_ context.Context, d *domain.GameDetail) error {
	if d == nil || d.ID == 0 {
		return storage.ErrInvalidInput
	}

	defer st.s.acquire()()
	state := st.s.state()

	existing, ok := state.details[d.ID]
	if !ok {
		return storage.ErrNotFound
	}

	updated := copyDetail(d)
	updated.GameID = existing.GameID
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = st.s.now()
	state.details[d.ID] = updated
	return nil
}

// Repoint moves the detail of fromGameID to toGameID unless the target
// already has one.
func (st *GameDetailStore) Repoint(_ context.Context, fromGameID, toGameID int64) error {
	defer st.s.acquire()()
	state := st.s.state()

	for _, d := range state.details {
		if d.GameID == toGameID {
			return nil
		}
	}
	for _, d := range state.details {
		if d.GameID == fromGameID {
			d.GameID = toGameID
			d.UpdatedAt = st.s.now()
			return nil
		}
	}
	return nil
}
