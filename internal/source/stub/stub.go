// Package stub provides in-memory catalog sources for tests: canned
// payloads, per-id failure injection and call counting. Safe for
// concurrent use by batch workers.
package stub

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"game-catalog-pipeline/internal/source"
	"game-catalog-pipeline/internal/source/meta"
	"game-catalog-pipeline/internal/source/store"
)

// StoreCatalog is an in-memory stand-in for the storefront client.
type StoreCatalog struct {
	mu      sync.Mutex
	apps    map[int64]*store.AppDetails
	errs    map[int64]error
	listErr error
	fetches map[int64]int
}

func NewStoreCatalog() *StoreCatalog {
	return &StoreCatalog{
		apps:    make(map[int64]*store.AppDetails),
		errs:    make(map[int64]error),
		fetches: make(map[int64]int),
	}
}

// AddApp registers an app, keyed by its AppID.
func (s *StoreCatalog) AddApp(d *store.AppDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[d.AppID] = d
}

// FailApp makes FetchApp return err for one id.
func (s *StoreCatalog) FailApp(id int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[id] = err
}

// FailList makes ListApps return err.
func (s *StoreCatalog) FailList(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listErr = err
}

func (s *StoreCatalog) ListApps(ctx context.Context) ([]store.AppEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listErr != nil {
		return nil, s.listErr
	}
	entries := make([]store.AppEntry, 0, len(s.apps))
	for id, d := range s.apps {
		entries = append(entries, store.AppEntry{AppID: id, Name: d.Name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].AppID < entries[j].AppID })
	return entries, nil
}

func (s *StoreCatalog) FetchApp(ctx context.Context, appID int64) (*store.AppDetails, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fetches[appID]++
	if err, ok := s.errs[appID]; ok {
		return nil, err
	}
	d, ok := s.apps[appID]
	if !ok {
		return nil, &source.Error{
			Kind:   source.KindNotFound,
			Source: store.SourceName,
			Err:    errors.New("no such app"),
		}
	}
	copied := *d
	return &copied, nil
}

// Fetches reports how many times one id was requested.
func (s *StoreCatalog) Fetches(appID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches[appID]
}

// MetaCatalog is an in-memory stand-in for the aggregator client.
type MetaCatalog struct {
	mu      sync.Mutex
	games   map[int64]*meta.Game
	window  []meta.Game
	errs    map[int64]error
	fetches map[int64]int
}

func NewMetaCatalog() *MetaCatalog {
	return &MetaCatalog{
		games:   make(map[int64]*meta.Game),
		errs:    make(map[int64]error),
		fetches: make(map[int64]int),
	}
}

// AddGame registers a game, keyed by its ID. Registered games are also
// visible to SearchByName and, unless SetWindow was called, FetchWindow.
func (m *MetaCatalog) AddGame(g *meta.Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[g.ID] = g
}

// FailGame makes FetchGame return err for one id.
func (m *MetaCatalog) FailGame(id int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[id] = err
}

// SetWindow pins the FetchWindow result.
func (m *MetaCatalog) SetWindow(games []meta.Game) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.window = games
}

func (m *MetaCatalog) FetchGame(ctx context.Context, id int64) (*meta.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fetches[id]++
	if err, ok := m.errs[id]; ok {
		return nil, err
	}
	g, ok := m.games[id]
	if !ok {
		return nil, &source.Error{
			Kind:   source.KindNotFound,
			Source: meta.SourceName,
			Err:    errors.New("no such game"),
		}
	}
	copied := *g
	return &copied, nil
}

func (m *MetaCatalog) SearchByName(ctx context.Context, name string) ([]meta.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []meta.Game
	needle := strings.ToLower(name)
	for _, g := range m.games {
		if strings.Contains(strings.ToLower(g.Name), needle) {
			out = append(out, *g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MetaCatalog) FetchWindow(ctx context.Context, filter source.WindowFilter) ([]meta.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	games := m.window
	if games == nil {
		for _, g := range m.games {
			games = append(games, *g)
		}
		sort.Slice(games, func(i, j int) bool { return games[i].ID < games[j].ID })
	}
	if filter.Limit > 0 && len(games) > filter.Limit {
		games = games[:filter.Limit]
	}
	out := make([]meta.Game, len(games))
	copy(out, games)
	return out, nil
}

// Fetches reports how many times one id was requested.
func (m *MetaCatalog) Fetches(id int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[id]
}
