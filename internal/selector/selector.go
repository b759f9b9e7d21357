// Package selector decides which catalog targets each pipeline command
// processes: refresh-window candidates, brand-new store IDs, detail
// backfills and full-refresh pages. New-ID selection subtracts both the
// catalog and the persisted exclusion bitmap.
package selector

import (
	"context"
	"fmt"
	"sort"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// AppLister enumerates every app ID the store source currently offers.
type AppLister interface {
	ListAppIDs(ctx context.Context) ([]int64, error)
}

// Selector computes target sets for the pipeline commands.
type Selector struct {
	stores storage.Stores
	apps   AppLister
	clock  clockwork.Clock
	logger zerolog.Logger
}

// Option configures a Selector.
type Option func(*Selector)

// WithClock injects the selector's clock.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Selector) {
		s.clock = clock
	}
}

// WithLogger injects the selector's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Selector) {
		s.logger = logger
	}
}

// New creates a Selector. apps may be nil when the caller never selects
// new store IDs.
func New(stores storage.Stores, apps AppLister, opts ...Option) *Selector {
	s := &Selector{
		stores: stores,
		apps:   apps,
		clock:  clockwork.NewRealClock(),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RefreshWindow returns games that are coming soon or release within
// [now-7d, now+90d], least recently refreshed first.
func (s *Selector) RefreshWindow(ctx context.Context, limit int) ([]*domain.Game, error) {
	return s.stores.Games.ListRefreshWindow(ctx, s.clock.Now().UTC(), limit)
}

// NewStoreIDs returns store IDs present upstream but absent from both
// the catalog and the exclusion bitmap, highest ID first.
func (s *Selector) NewStoreIDs(ctx context.Context, limit int, exclusions *Bitset) ([]int64, error) {
	if s.apps == nil {
		return nil, fmt.Errorf("no store catalog configured")
	}

	upstream, err := s.apps.ListAppIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list store app ids: %w", err)
	}
	existing, err := s.stores.Games.ListStoreIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list known store ids: %w", err)
	}
	known := make(map[int64]struct{}, len(existing))
	for _, id := range existing {
		known[id] = struct{}{}
	}

	var fresh []int64
	for _, id := range upstream {
		if _, ok := known[id]; ok {
			continue
		}
		if exclusions != nil && exclusions.Contains(id) {
			continue
		}
		fresh = append(fresh, id)
	}

	// Newest store IDs first: higher IDs are more recent products.
	sort.Slice(fresh, func(i, j int) bool { return fresh[i] > fresh[j] })
	if limit > 0 && len(fresh) > limit {
		fresh = fresh[:limit]
	}

	s.logger.Debug().
		Int("upstream", len(upstream)).
		Int("known", len(known)).
		Int("selected", len(fresh)).
		Msg("selected new store ids")
	return fresh, nil
}

// BackfillMissingDetails returns popular base games lacking a detail or
// any release row.
func (s *Selector) BackfillMissingDetails(ctx context.Context, limit int) ([]*domain.Game, error) {
	return s.stores.Games.ListMissingDetails(ctx, limit)
}

// FullRefresh returns one keyset page of fully-ingested games.
func (s *Selector) FullRefresh(ctx context.Context, afterID int64, limit int) ([]*domain.Game, error) {
	return s.stores.Games.ListFullRefresh(ctx, afterID, limit)
}

// LoadExclusions reads the persisted exclusion bitmap.
func (s *Selector) LoadExclusions(ctx context.Context) (*Bitset, error) {
	words, err := s.stores.Exclusions.LoadWords(ctx)
	if err != nil {
		return nil, fmt.Errorf("load exclusion bitmap: %w", err)
	}
	return FromWords(words), nil
}

// PersistExclusions ORs newly discovered exclusions into storage.
func (s *Selector) PersistExclusions(ctx context.Context, added *Bitset) error {
	if added == nil || added.Len() == 0 {
		return nil
	}
	if err := s.stores.Exclusions.MergeWords(ctx, added.Words()); err != nil {
		return fmt.Errorf("persist exclusion bitmap: %w", err)
	}
	s.logger.Info().Int("added", added.Len()).Msg("persisted new exclusions")
	return nil
}
