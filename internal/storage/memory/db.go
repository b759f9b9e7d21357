// Package memory provides in-memory implementations of the storage
// interfaces for tests and dry wiring. A single mutex serializes all
// access; InTx snapshots the state and restores it when the function
// fails, mirroring the rollback semantics of the Postgres runner.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"game-catalog-pipeline/internal/domain"
	"game-catalog-pipeline/internal/storage"
)

// DB holds all in-memory tables behind one lock.
type DB struct {
	mu    sync.Mutex
	state *state
	clock clockwork.Clock

	txCalls int
	failAt  int
	failErr error
}

type state struct {
	games      map[int64]*domain.Game
	details    map[int64]*domain.GameDetail
	releases   map[int64]*domain.GameRelease
	companies  map[int64]*domain.Company
	roles      map[int64]*domain.GameCompanyRole
	runs       map[string]*domain.PipelineRun
	items      []*domain.PipelineItem
	exclusions map[int64]int64

	nextGameID    int64
	nextDetailID  int64
	nextReleaseID int64
	nextCompanyID int64
	nextRoleID    int64
	nextItemID    int64
}

func newState() *state {
	return &state{
		games:      make(map[int64]*domain.Game),
		details:    make(map[int64]*domain.GameDetail),
		releases:   make(map[int64]*domain.GameRelease),
		companies:  make(map[int64]*domain.Company),
		roles:      make(map[int64]*domain.GameCompanyRole),
		runs:       make(map[string]*domain.PipelineRun),
		exclusions: make(map[int64]int64),
	}
}

func (s *state) clone() *state {
	c := newState()
	for id, g := range s.games {
		c.games[id] = copyGame(g)
	}
	for id, d := range s.details {
		c.details[id] = copyDetail(d)
	}
	for id, r := range s.releases {
		c.releases[id] = copyRelease(r)
	}
	for id, co := range s.companies {
		cp := *co
		c.companies[id] = &cp
	}
	for id, r := range s.roles {
		cp := *r
		c.roles[id] = &cp
	}
	for id, r := range s.runs {
		cp := *r
		c.runs[id] = &cp
	}
	c.items = make([]*domain.PipelineItem, len(s.items))
	for i, it := range s.items {
		cp := *it
		c.items[i] = &cp
	}
	for w, bits := range s.exclusions {
		c.exclusions[w] = bits
	}
	c.nextGameID = s.nextGameID
	c.nextDetailID = s.nextDetailID
	c.nextReleaseID = s.nextReleaseID
	c.nextCompanyID = s.nextCompanyID
	c.nextRoleID = s.nextRoleID
	c.nextItemID = s.nextItemID
	return c
}

// Option configures a DB.
type Option func(*DB)

// WithClock injects the clock used for created_at/updated_at stamps.
func WithClock(clock clockwork.Clock) Option {
	return func(db *DB) {
		db.clock = clock
	}
}

// NewDB creates an empty in-memory database.
func NewDB(opts ...Option) *DB {
	db := &DB{
		state: newState(),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Compile-time interface check.
var _ storage.TxRunner = (*DB)(nil)

// ErrInjected lets tests force a rollback mid-transaction.
var ErrInjected = errors.New("injected failure")

// InjectTxFailure makes the k-th subsequent InTx call (1-based) roll
// back and return err after its function has run. Test hook.
func (db *DB) InjectTxFailure(k int, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.txCalls = 0
	db.failAt = k
	db.failErr = err
}

// Stores returns auto-commit stores; each call locks independently.
func (db *DB) Stores() storage.Stores {
	return db.stores(&session{db: db, locking: true})
}

// InTx runs fn against a consistent view; any error restores the
// pre-transaction snapshot.
func (db *DB) InTx(ctx context.Context, fn func(storage.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	db.txCalls++
	snapshot := db.state.clone()
	if err := fn(db.stores(&session{db: db, locking: false})); err != nil {
		db.state = snapshot
		return err
	}
	if db.failErr != nil && db.txCalls == db.failAt {
		db.state = snapshot
		return db.failErr
	}
	return nil
}

func (db *DB) stores(s *session) storage.Stores {
	return storage.Stores{
		Games:      &GameStore{s},
		Details:    &GameDetailStore{s},
		Releases:   &GameReleaseStore{s},
		Companies:  &CompanyStore{s},
		Roles:      &GameCompanyRoleStore{s},
		Runs:       &PipelineRunStore{s},
		Items:      &PipelineItemStore{s},
		Exclusions: &ExclusionStore{s},
	}
}

// session binds stores to the DB. Auto-commit sessions lock per call;
// inside InTx the runner already holds the lock.
type session struct {
	db      *DB
	locking bool
}

func (s *session) acquire() func() {
	if !s.locking {
		return func() {}
	}
	s.db.mu.Lock()
	return s.db.mu.Unlock
}

func (s *session) now() time.Time {
	return s.db.clock.Now().UTC()
}

func (s *session) state() *state {
	return s.db.state
}

func copyGame(g *domain.Game) *domain.Game {
	c := *g
	c.Platforms.Consoles = append([]domain.Platform(nil), g.Platforms.Consoles...)
	return &c
}

func copyDetail(d *domain.GameDetail) *domain.GameDetail {
	c := *d
	c.Screenshots = append([]string(nil), d.Screenshots...)
	c.Genres = append([]string(nil), d.Genres...)
	c.Tags = append([]string(nil), d.Tags...)
	return &c
}

func copyRelease(r *domain.GameRelease) *domain.GameRelease {
	c := *r
	return &c
}
