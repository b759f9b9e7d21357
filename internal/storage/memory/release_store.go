package memory

import (
	"context"
	"fmt"
	"sort"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// GameReleaseStore is an in-memory implementation of storage.GameReleaseStore.
type GameReleaseStore struct {
	s *session
}

// Compile-time interface check.
var _ storage.GameReleaseStore = (*GameReleaseStore)(nil)

// GetByGame retrieves all releases of a game.
func (st *GameReleaseStore) GetByGame(_ context.Context, gameID int64) ([]*domain.GameRelease, error) {
	defer st.s.acquire()()

	var out []*domain.GameRelease
	for _, r := range st.s.state().releases {
		if r.GameID == gameID {
			out = append(out, copyRelease(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		if out[i].Store != out[j].Store {
			return out[i].Store < out[j].Store
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Find retrieves the release matching the logical unique key.
func (st *GameReleaseStore) Find(_ context.Context, gameID int64, platform domain.Platform, store domain.Storefront, storeAppID *string) (*domain.GameRelease, error) {
	defer st.s.acquire()()

	key := releaseKey(platform, store, storeAppID)
	for _, r := range st.s.state().releases {
		if r.GameID == gameID && releaseKey(r.Platform, r.Store, r.StoreAppID) == key {
			return copyRelease(r), nil
		}
	}
	return nil, storage.ErrNotFound
}

// Insert adds a release row.
func (st *GameReleaseStore) Insert(_ context.Context, r *domain.GameRelease) (*domain.GameRelease, error) {
	if r == nil || r.GameID == 0 {
		return nil, storage.ErrInvalidInput
	}

	defer st.s.acquire()()
	state := st.s.state()

	key := releaseKey(r.Platform, r.Store, r.StoreAppID)
	for _, existing := range state.releases {
		if existing.GameID == r.GameID && releaseKey(existing.Platform, existing.Store, existing.StoreAppID) == key {
			return nil, fmt.Errorf("insert release: %w", storage.ErrDuplicateKey)
		}
	}

	state.nextReleaseID++
	now := st.s.now()
	inserted := copyRelease(r)
	inserted.ID = state.nextReleaseID
	inserted.CreatedAt = now
	inserted.UpdatedAt = now
	state.releases[inserted.ID] = inserted
	return copyRelease(inserted), nil
}

// Update overwrites the mutable columns of a release row.
func (st *GameReleaseStore) Update(_ context.Context, r *domain.GameRelease) error {
	if r == nil || r.ID == 0 {
		return storage.ErrInvalidInput
	}

	defer st.s.acquire()()
	state := st.s.state()

	existing, ok := state.releases[r.ID]
	if !ok {
		return storage.ErrNotFound
	}

	existing.ReleaseDate = r.ReleaseDate
	existing.Status = r.Status
	existing.PriceCents = r.PriceCents
	existing.IsFree = r.IsFree
	existing.Followers = r.Followers
	existing.DataSource = r.DataSource
	existing.UpdatedAt = st.s.now()
	return nil
}

// Repoint moves releases from one game to another, skipping rows that
// would collide with an existing key on the target.
func (st *GameReleaseStore) Repoint(_ context.Context, fromGameID, toGameID int64) error {
	defer st.s.acquire()()
	state := st.s.state()

	taken := make(map[string]bool)
	for _, r := range state.releases {
		if r.GameID == toGameID {
			taken[releaseKey(r.Platform, r.Store, r.StoreAppID)] = true
		}
	}
	for _, r := range state.releases {
		if r.GameID != fromGameID {
			continue
		}
		if taken[releaseKey(r.Platform, r.Store, r.StoreAppID)] {
			continue
		}
		r.GameID = toGameID
		r.UpdatedAt = st.s.now()
	}
	return nil
}

func releaseKey(platform domain.Platform, store domain.Storefront, storeAppID *string) string {
	appID := ""
	if storeAppID != nil {
		appID = *storeAppID
	}
	return string(platform) + "|" + string(store) + "|" + appID
}
