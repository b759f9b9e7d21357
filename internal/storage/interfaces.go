package storage

import (
	"context"
	"time"

	"game-catalog-pipeline/internal/domain"
)

// CandidateQuery selects games from the opposite source that could match
// an incoming record. Slugs and names must be lowercased by the caller;
// the release window only ranks, it never widens the candidate set.
type CandidateQuery struct {
	// Slugs is matched against lower(slug) and lower(original_slug).
	Slugs []string
	// Names is matched against lower(name) and lower(original_name).
	Names []string
	// MissingStoreID restricts to rows whose store_id is null.
	MissingStoreID bool
	// MissingMetaID restricts to rows whose meta_id is null.
	MissingMetaID bool
	// Limit caps the result set, highest popularity first.
	Limit int
}

// SlugCollisionPair is a suffixed-slug duplicate found by the
// merge-duplicates scan: Drop carries Keep's slug plus a "-N" suffix.
type SlugCollisionPair struct {
	KeepID   int64
	DropID   int64
	BaseSlug string
}

// GameStore provides access to games storage.
type GameStore interface {
	// Insert adds a new game and returns it with ID and timestamps set.
	// Returns ErrDuplicateKey on any unique violation.
	Insert(ctx context.Context, g *domain.Game) (*domain.Game, error)

	// Update overwrites the mutable columns of an existing game.
	// Returns ErrNotFound if the row does not exist.
	Update(ctx context.Context, g *domain.Game) error

	// GetByID retrieves a game by internal ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Game, error)

	// GetByStoreID retrieves a game by its Store identifier.
	GetByStoreID(ctx context.Context, storeID int64) (*domain.Game, error)

	// GetByMetaID retrieves a game by its Meta identifier.
	GetByMetaID(ctx context.Context, metaID int64) (*domain.Game, error)

	// GetBySlug retrieves a game whose slug or original slug equals the
	// given value case-insensitively.
	GetBySlug(ctx context.Context, slug string) (*domain.Game, error)

	// SlugTaken reports whether any game other than excludeID uses the
	// slug, case-insensitively, on either slug column. Pass excludeID 0
	// to check against all rows.
	SlugTaken(ctx context.Context, slug string, excludeID int64) (bool, error)

	// ListMatchCandidates retrieves cross-source match candidates with
	// their company slugs and PC release flag resolved.
	ListMatchCandidates(ctx context.Context, q CandidateQuery) ([]*domain.MatchCandidate, error)

	// ListStoreIDs retrieves all non-null store identifiers.
	ListStoreIDs(ctx context.Context) ([]int64, error)

	// ListRefreshWindow retrieves games that are coming soon or release
	// within [now-7d, now+90d], ordered by (store_last_refresh_at NULLS
	// FIRST, popularity DESC).
	ListRefreshWindow(ctx context.Context, now time.Time, limit int) ([]*domain.Game, error)

	// ListMissingDetails retrieves base games with popularity >= 40 that
	// lack a detail row or have no release rows.
	ListMissingDetails(ctx context.Context, limit int) ([]*domain.Game, error)

	// ListFullRefresh retrieves games with a store ID, a detail and at
	// least one release, keyset-paginated by internal ID.
	ListFullRefresh(ctx context.Context, afterID int64, limit int) ([]*domain.Game, error)

	// ListSlugCollisionPairs finds pairs where one slug is the other
	// plus a small numeric suffix, for the merge-duplicates scan.
	ListSlugCollisionPairs(ctx context.Context, limit int) ([]SlugCollisionPair, error)

	// Delete removes a game row. Only the merge operation calls this;
	// child rows follow via cascade.
	Delete(ctx context.Context, id int64) error
}

// GameDetailStore provides access to game_details storage.
type GameDetailStore interface {
	// GetByGameID retrieves the detail row of a game. Returns
	// ErrNotFound if the game has none.
	GetByGameID(ctx context.Context, gameID int64) (*domain.GameDetail, error)

	// Insert adds a detail row. Returns ErrDuplicateKey if the game
	// already has one.
	Insert(ctx context.Context, d *domain.GameDetail) (*domain.GameDetail, error)

	// Update overwrites an existing detail row.
	Update(ctx context.Context, d *domain.GameDetail) error

	// Repoint moves the detail of fromGameID to toGameID. No-op when
	// the source has no detail or the target already has one.
	Repoint(ctx context.Context, fromGameID, toGameID int64) error
}

// GameReleaseStore provides access to game_releases storage. Rows are
// unique per (game_id, platform, store, coalesce(store_app_id, '')) and
// never deleted by the pipeline.
type GameReleaseStore interface {
	// GetByGame retrieves all releases of a game.
	GetByGame(ctx context.Context, gameID int64) ([]*domain.GameRelease, error)

	// Find retrieves the release matching the logical unique key.
	// Returns ErrNotFound when absent.
	Find(ctx context.Context, gameID int64, platform domain.Platform, store domain.Storefront, storeAppID *string) (*domain.GameRelease, error)

	// Insert adds a release row. Returns ErrDuplicateKey on key clash.
	Insert(ctx context.Context, r *domain.GameRelease) (*domain.GameRelease, error)

	// Update overwrites the mutable columns of a release row.
	Update(ctx context.Context, r *domain.GameRelease) error

	// Repoint moves releases from one game to another, skipping rows
	// that would violate the unique key on the target.
	Repoint(ctx context.Context, fromGameID, toGameID int64) error
}

// CompanyStore provides access to companies storage.
type CompanyStore interface {
	// GetBySlug retrieves a company by slug, case-insensitively.
	GetBySlug(ctx context.Context, slug string) (*domain.Company, error)

	// GetByName retrieves a company by name, case-insensitively.
	GetByName(ctx context.Context, name string) (*domain.Company, error)

	// Insert adds a company. Returns ErrDuplicateKey when the slug or
	// name is already taken.
	Insert(ctx context.Context, c *domain.Company) (*domain.Company, error)

	// SlugTaken reports whether any company uses the slug.
	SlugTaken(ctx context.Context, slug string) (bool, error)
}

// GameCompanyRoleStore provides access to game_company_roles storage.
type GameCompanyRoleStore interface {
	// Upsert links a game to a company in a role; existing links are
	// left untouched.
	Upsert(ctx context.Context, gameID, companyID int64, role domain.CompanyRole) error

	// ListByGame retrieves all role links of a game.
	ListByGame(ctx context.Context, gameID int64) ([]*domain.GameCompanyRole, error)

	// Repoint moves role links from one game to another, dropping links
	// that already exist on the target.
	Repoint(ctx context.Context, fromGameID, toGameID int64) error
}

// PipelineRunStore provides access to pipeline_runs storage.
type PipelineRunStore interface {
	// Insert adds a new run row. Returns ErrDuplicateKey if the run ID exists.
	Insert(ctx context.Context, r *domain.PipelineRun) error

	// Finalize writes the terminal status, counters and summary message.
	Finalize(ctx context.Context, runID string, status domain.RunStatus, total, completed, failed int, finishedAt time.Time, message *string) error

	// GetByID retrieves a run by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, runID string) (*domain.PipelineRun, error)
}

// PipelineItemStore provides access to pipeline_items storage. Items are
// append-only.
type PipelineItemStore interface {
	// Insert adds an item row.
	Insert(ctx context.Context, it *domain.PipelineItem) error

	// ListByRun retrieves all items of a run in insertion order.
	ListByRun(ctx context.Context, runID string) ([]*domain.PipelineItem, error)
}

// ExclusionStore provides access to the steam_exclusion_bitmap table, a
// sparse bitmap of Store IDs known to be uninteresting. IDs are packed
// 64 per row: word w holds IDs [w*64, w*64+63].
type ExclusionStore interface {
	// LoadWords retrieves the whole bitmap as word index -> bits.
	LoadWords(ctx context.Context) (map[int64]int64, error)

	// MergeWords ORs the given words into the persisted bitmap.
	MergeWords(ctx context.Context, words map[int64]int64) error
}

// Stores bundles every per-entity store over one database handle. Inside
// InTx all stores share the enclosing transaction.
type Stores struct {
	Games      GameStore
	Details    GameDetailStore
	Releases   GameReleaseStore
	Companies  CompanyStore
	Roles      GameCompanyRoleStore
	Runs       PipelineRunStore
	Items      PipelineItemStore
	Exclusions ExclusionStore
}

// TxRunner runs a function inside a single database transaction. One
// game save is exactly one InTx call; a failed record never rolls back
// other records.
type TxRunner interface {
	// InTx begins a transaction, passes tx-bound stores to fn, and
	// commits when fn returns nil. Any error rolls back and is returned;
	// deadlocks surface as ErrDeadlock so callers can retry.
	InTx(ctx context.Context, fn func(Stores) error) error

	// Stores returns auto-commit stores over the shared handle.
	Stores() Stores
}
